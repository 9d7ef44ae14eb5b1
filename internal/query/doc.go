// Package query translates filter specifications into ordered scans over
// the best-matching store index and streams matching records.
//
// Index selection prefers the (domain, time) ordering when origins are
// constrained, then the (level, time) ordering when levels are constrained,
// falling back to the plain time ordering. Multiple constrained values merge
// per-segment scans by timestamp. The remaining predicates (levels, domains,
// sessions, time range, case-insensitive text search, and an optional CEL
// expression) run in memory, and offset/limit apply to the filtered result
// set.
package query
