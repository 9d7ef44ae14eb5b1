package query

import (
	"fmt"

	"github.com/iammultiman/logvault/internal/record"
)

// Filter describes one read query. Zero values mean "unconstrained" except
// Limit, which is required.
type Filter struct {
	// Text is a case-insensitive substring match against Message. Applied
	// after index-based filters; never used to choose the index.
	Text string
	// Levels restricts to the given severities.
	Levels []record.Level
	// Domains restricts to the given origin domains.
	Domains []string
	// Sessions restricts to the given session ids.
	Sessions []string
	// Since and Until bound the timestamp range inclusively, in ms since
	// epoch. Zero means unbounded on that side.
	Since int64
	Until int64
	// Expr is an optional CEL expression evaluated against each candidate
	// record after all other filters.
	Expr string
	// Ascending flips the default newest-first ordering.
	Ascending bool
	// Limit caps how many records are materialized. Required, positive.
	Limit int
	// Offset skips that many matches of the filtered result set first.
	Offset int
}

func (f *Filter) validate() error {
	if f.Limit <= 0 {
		return &record.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if f.Offset < 0 {
		return &record.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	if f.Since < 0 || f.Until < 0 {
		return &record.ValidationError{Field: "time_range", Reason: "must not be negative"}
	}
	if f.Until > 0 && f.Since > f.Until {
		return &record.ValidationError{Field: "time_range", Reason: "since is after until"}
	}
	for _, l := range f.Levels {
		if !l.Valid() {
			return &record.ValidationError{Field: "levels", Reason: fmt.Sprintf("unknown level %q", l)}
		}
	}
	for _, d := range f.Domains {
		if d == "" {
			return &record.ValidationError{Field: "domains", Reason: "empty domain"}
		}
	}
	for _, s := range f.Sessions {
		if s == "" {
			return &record.ValidationError{Field: "sessions", Reason: "empty session id"}
		}
	}
	return nil
}
