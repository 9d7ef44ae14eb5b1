// Package retention enforces storage bounds over the record store. A policy
// bounds age, total size, and record count independently; cleanup always
// removes oldest records first and runs the three passes in that fixed
// order, throttled so foreground reads and writes stay responsive.
package retention
