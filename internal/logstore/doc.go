// Package logstore implements the durable index store for log records.
//
// # Overview
//
// Records are persisted in Pebble under a byte-wise sortable keyspace:
//   - rec/{id}                           (framed canonical record)
//   - idx/ts/{ts_be8}/{id}               (time ordering)
//   - idx/dom/{domain}/{ts_be8}/{id}     ((domain, time) ordering)
//   - idx/lvl/{level}/{ts_be8}/{id}      ((level, time) ordering)
//   - idx/sess/{session}/{ts_be8}/{id}   (session grouping)
//   - meta/count, meta/bytes             (store-wide counters)
//
// Every mutation (upsert, batch upsert, delete, bulk delete) commits the
// record, all four orderings, and the counters in a single Pebble batch, so
// a crash can never leave the primary updated but an index stale. Bulk
// deletes loop over bounded batches rather than building one unbounded
// transaction.
//
// Index entries carry the record's estimated size so retention and usage
// accounting can work off index scans without decoding records.
package logstore
