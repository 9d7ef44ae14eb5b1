// Package usage computes storage consumption summaries over the record
// store and the host filesystem, and grades them against configurable
// thresholds. It only ever reads; deletion belongs to the retention engine.
package usage
