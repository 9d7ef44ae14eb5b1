// Package scheduler runs retention cleanups on a fixed cadence and on
// demand, guaranteeing at most one cleanup pass executes at a time.
package scheduler
