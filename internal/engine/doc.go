// Package engine is the composition root: it opens storage and wires the
// record store, query engine, usage accountant, retention engine and
// cleanup scheduler into one handle with a single Close.
package engine
