package logstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iammultiman/logvault/internal/record"
	pebblestore "github.com/iammultiman/logvault/internal/storage/pebble"
)

// DefaultBatchLimit bounds how many records a single delete transaction
// touches. Large deletes loop over bounded batches rather than building one
// unbounded transaction.
const DefaultBatchLimit = 512

// Store is the durable index store: primary records plus four secondary
// orderings, kept consistent with every mutation through a single Pebble
// batch per operation.
type Store struct {
	db     *pebblestore.DB
	logger *zap.Logger

	mu sync.Mutex // serializes mutations; reads go through snapshot iterators
}

// Open wraps an opened Pebble database as a record store.
func Open(db *pebblestore.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("logstore")}
}

func indexKeys(r *record.Record) [][]byte {
	return [][]byte{
		KeyTimeIndex(r.Timestamp, r.ID),
		KeyDomainIndex(r.OriginDomain, r.Timestamp, r.ID),
		KeyLevelIndex(string(r.Level), r.Timestamp, r.ID),
		KeySessionIndex(r.SessionID, r.Timestamp, r.ID),
	}
}

func (s *Store) readCounter(key []byte) (int64, error) {
	v, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(v) < 8 {
		return 0, nil
	}
	return int64(binary.BigEndian.Uint64(v[:8])), nil
}

func setCounter(b *pebble.Batch, key []byte, v int64) error {
	if v < 0 {
		v = 0
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return b.Set(key, buf[:], nil)
}

// loadByID reads and decodes one record. Returns ErrNotFound for misses and
// UnavailableError for storage faults or corrupt values.
func (s *Store) loadByID(id string) (*record.Record, int, error) {
	v, err := s.db.Get(KeyRecord(id))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, unavailable("get", err)
	}
	payload, err := record.DecodeValue(v)
	if err != nil {
		return nil, 0, unavailable("get", err)
	}
	r, err := record.FromCanonical(payload)
	if err != nil {
		return nil, 0, unavailable("get", err)
	}
	return r, len(payload), nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, _, err := s.loadByID(id)
	return r, err
}

// Put validates and upserts a single record. All four orderings and the
// store counters are updated in the same batch as the record itself.
func (s *Store) Put(ctx context.Context, r *record.Record) (string, error) {
	ids, err := s.PutBatch(ctx, []*record.Record{r})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// PutBatch validates and upserts records as one transaction: either every
// record lands or none do. Validation runs before any write.
func (s *Store) PutBatch(ctx context.Context, recs []*record.Record) ([]string, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range recs {
		r.Normalize()
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readCounter(metaCountKey)
	if err != nil {
		return nil, unavailable("put", err)
	}
	total, err := s.readCounter(metaBytesKey)
	if err != nil {
		return nil, unavailable("put", err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	ids := make([]string, len(recs))
	// Track in-batch upserts so a duplicate id inside one batch replaces the
	// earlier occurrence instead of double-counting.
	prior := make(map[string]*record.Record, len(recs))
	priorSize := make(map[string]int, len(recs))

	for i, r := range recs {
		old, oldSize := prior[r.ID], priorSize[r.ID]
		if old == nil {
			loaded, loadedSize, lerr := s.loadByID(r.ID)
			if lerr != nil && !errors.Is(lerr, ErrNotFound) {
				return nil, lerr
			}
			old, oldSize = loaded, loadedSize
		}

		canonical, cerr := r.Canonical()
		if cerr != nil {
			return nil, &record.ValidationError{Field: "metadata", Reason: cerr.Error()}
		}

		if old != nil {
			for _, k := range indexKeys(old) {
				if err := b.Delete(k, nil); err != nil {
					return nil, unavailable("put", err)
				}
			}
			total -= int64(oldSize)
		} else {
			count++
		}

		if err := b.Set(KeyRecord(r.ID), record.EncodeValue(canonical), nil); err != nil {
			return nil, unavailable("put", err)
		}
		var sizeVal [4]byte
		binary.BigEndian.PutUint32(sizeVal[:], uint32(len(canonical)))
		for _, k := range indexKeys(r) {
			if err := b.Set(k, sizeVal[:], nil); err != nil {
				return nil, unavailable("put", err)
			}
		}
		total += int64(len(canonical))

		prior[r.ID] = r
		priorSize[r.ID] = len(canonical)
		ids[i] = r.ID
	}

	if err := setCounter(b, metaCountKey, count); err != nil {
		return nil, unavailable("put", err)
	}
	if err := setCounter(b, metaBytesKey, total); err != nil {
		return nil, unavailable("put", err)
	}
	if err := s.db.CommitBatch(b); err != nil {
		return nil, unavailable("put", err)
	}
	return ids, nil
}

// deleteIDs removes the given records (and their index entries and counter
// deltas) in one batch. Missing ids are skipped. Caller bounds the id count.
func (s *Store) deleteIDs(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readCounter(metaCountKey)
	if err != nil {
		return 0, unavailable("delete", err)
	}
	total, err := s.readCounter(metaBytesKey)
	if err != nil {
		return 0, unavailable("delete", err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	deleted := 0
	// Batch deletes are invisible to loadByID until commit, so a repeated id
	// would reload the committed record and decrement the counters twice.
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, size, lerr := s.loadByID(id)
		if lerr != nil {
			if errors.Is(lerr, ErrNotFound) {
				continue
			}
			return 0, lerr
		}
		if err := b.Delete(KeyRecord(id), nil); err != nil {
			return 0, unavailable("delete", err)
		}
		for _, k := range indexKeys(r) {
			if err := b.Delete(k, nil); err != nil {
				return 0, unavailable("delete", err)
			}
		}
		count--
		total -= int64(size)
		deleted++
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := setCounter(b, metaCountKey, count); err != nil {
		return 0, unavailable("delete", err)
	}
	if err := setCounter(b, metaBytesKey, total); err != nil {
		return 0, unavailable("delete", err)
	}
	if err := s.db.CommitBatch(b); err != nil {
		return 0, unavailable("delete", err)
	}
	return deleted, nil
}

// Delete removes one record. Returns true if it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := s.deleteIDs([]string{id})
	return n > 0, err
}

// DeleteMany removes the given ids in bounded batches and reports how many
// records actually existed and were removed.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for len(ids) > 0 {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		chunk := ids
		if len(chunk) > DefaultBatchLimit {
			chunk = chunk[:DefaultBatchLimit]
		}
		n, err := s.deleteIDs(chunk)
		deleted += n
		if err != nil {
			return deleted, err
		}
		ids = ids[len(chunk):]
	}
	return deleted, nil
}

type indexHit struct {
	key  []byte
	ts   int64
	id   string
	size int
}

// scanIndex collects up to limit hits from an index range. prefix is the
// logical index prefix used for key parsing; lower/upper default to the
// prefix bounds.
func (s *Store) scanIndex(prefix, lower, upper []byte, limit int) ([]indexHit, error) {
	if lower == nil {
		lower = prefix
	}
	if upper == nil {
		upper = prefixUpperBound(prefix)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, unavailable("scan", err)
	}
	defer iter.Close()

	var hits []indexHit
	for ok := iter.First(); ok && (limit <= 0 || len(hits) < limit); ok = iter.Next() {
		ts, id, size, parsed := parseIndexEntry(prefix, iter.Key(), iter.Value())
		if !parsed {
			continue
		}
		hits = append(hits, indexHit{
			key:  append([]byte(nil), iter.Key()...),
			ts:   ts,
			id:   id,
			size: size,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, unavailable("scan", err)
	}
	return hits, nil
}

// deleteHits removes the records behind the given index hits. Index entries
// whose backing record is gone are dropped directly so repeated scans make
// progress instead of spinning on stale entries.
func (s *Store) deleteHits(hits []indexHit) (int, error) {
	if len(hits) == 0 {
		return 0, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	n, err := s.deleteIDs(ids)
	if err != nil || n > 0 {
		return n, err
	}

	s.logger.Warn("dropping stale index entries without backing records",
		zap.Int("entries", len(hits)))
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer b.Close()
	for _, h := range hits {
		if err := b.Delete(h.key, nil); err != nil {
			return 0, unavailable("delete", err)
		}
	}
	if err := s.db.CommitBatch(b); err != nil {
		return 0, unavailable("delete", err)
	}
	return 0, nil
}

func (s *Store) deleteByIndex(ctx context.Context, prefix []byte) (int, error) {
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		hits, err := s.scanIndex(prefix, nil, nil, DefaultBatchLimit)
		if err != nil {
			return deleted, err
		}
		if len(hits) == 0 {
			return deleted, nil
		}
		n, err := s.deleteHits(hits)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
}

// DeleteByDomain removes every record attributed to the given origin domain.
func (s *Store) DeleteByDomain(ctx context.Context, domain string) (int, error) {
	n, err := s.deleteByIndex(ctx, prefixDomainIndex(domain))
	if n > 0 {
		s.logger.Info("deleted records by domain", zap.String("domain", domain), zap.Int("count", n))
	}
	return n, err
}

// DeleteBySession removes every record belonging to the given session.
func (s *Store) DeleteBySession(ctx context.Context, session string) (int, error) {
	n, err := s.deleteByIndex(ctx, prefixSessionIndex(session))
	if n > 0 {
		s.logger.Info("deleted records by session", zap.String("session", session), zap.Int("count", n))
	}
	return n, err
}

// Clear drops every record, every index entry, and resets the counters in a
// single batch.
func (s *Store) Clear(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	for _, pfx := range [][]byte{[]byte("idx/"), recPrefix} {
		if err := b.DeleteRange(pfx, prefixUpperBound(pfx), nil); err != nil {
			return false, unavailable("clear", err)
		}
	}
	if err := setCounter(b, metaCountKey, 0); err != nil {
		return false, unavailable("clear", err)
	}
	if err := setCounter(b, metaBytesKey, 0); err != nil {
		return false, unavailable("clear", err)
	}
	if err := s.db.CommitBatch(b); err != nil {
		return false, unavailable("clear", err)
	}
	s.logger.Info("cleared all records")
	return true, nil
}

// Compact asks the storage engine to reclaim space across the record and
// index keyspaces. Worth calling after a large trim; deletes only write
// tombstones until compaction catches up.
func (s *Store) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, pfx := range [][]byte{[]byte("idx/"), recPrefix} {
		if err := s.db.CompactRange(pfx, prefixUpperBound(pfx)); err != nil {
			return unavailable("compact", err)
		}
	}
	return nil
}

// Count returns the total record count from the maintained counter.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := s.readCounter(metaCountKey)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return v, nil
}

// TotalBytes returns the estimated total size of stored records from the
// maintained counter.
func (s *Store) TotalBytes(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := s.readCounter(metaBytesKey)
	if err != nil {
		return 0, unavailable("bytes", err)
	}
	return v, nil
}

// OldestByTime returns the n oldest records by timestamp, straight off the
// time index.
func (s *Store) OldestByTime(ctx context.Context, n int) ([]*record.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := s.scanIndex(prefixTimeIndex(), nil, nil, n)
	if err != nil {
		return nil, err
	}
	recs := make([]*record.Record, 0, len(hits))
	for _, h := range hits {
		r, _, lerr := s.loadByID(h.id)
		if lerr != nil {
			if errors.Is(lerr, ErrNotFound) {
				continue
			}
			return nil, lerr
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// DeleteOlderThan removes every record with timestamp < cutoffMs through an
// indexed range scan, committing bounded batches. limiter, when non-nil,
// paces batch commits.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoffMs int64, batchLimit int, limiter *rate.Limiter) (int, error) {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	prefix := prefixTimeIndex()
	// Exclusive upper bound: the smallest possible key at the cutoff
	// timestamp, so only entries strictly older than the cutoff match.
	upper := KeyTimeIndex(cutoffMs, "")

	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		hits, err := s.scanIndex(prefix, prefix, upper, batchLimit)
		if err != nil {
			return deleted, err
		}
		if len(hits) == 0 {
			return deleted, nil
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return deleted, err
			}
		}
		n, err := s.deleteHits(hits)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
}

// DeleteOldestUntilBytes removes oldest-first records until the maintained
// total size fits maxBytes. Terminates when under budget or the store is
// empty.
func (s *Store) DeleteOldestUntilBytes(ctx context.Context, maxBytes int64, batchLimit int, limiter *rate.Limiter) (int, error) {
	if maxBytes < 0 {
		return 0, nil
	}
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		total, err := s.TotalBytes(ctx)
		if err != nil {
			return deleted, err
		}
		if total <= maxBytes {
			return deleted, nil
		}
		hits, err := s.scanIndex(prefixTimeIndex(), nil, nil, batchLimit)
		if err != nil {
			return deleted, err
		}
		if len(hits) == 0 {
			return deleted, nil
		}
		// Take only as many oldest entries as projected to get under budget.
		cut := len(hits)
		projected := total
		for i, h := range hits {
			projected -= int64(h.size)
			if projected <= maxBytes {
				cut = i + 1
				break
			}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return deleted, err
			}
		}
		n, err := s.deleteHits(hits[:cut])
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
}

// DeleteOldest removes exactly n oldest records (fewer if the store runs
// out), oldest-first in bounded batches.
func (s *Store) DeleteOldest(ctx context.Context, n int, batchLimit int, limiter *rate.Limiter) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	deleted := 0
	for deleted < n {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		limit := batchLimit
		if rem := n - deleted; rem < limit {
			limit = rem
		}
		hits, err := s.scanIndex(prefixTimeIndex(), nil, nil, limit)
		if err != nil {
			return deleted, err
		}
		if len(hits) == 0 {
			return deleted, nil
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return deleted, err
			}
		}
		m, err := s.deleteHits(hits)
		deleted += m
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// DomainStats aggregates per-origin usage.
type DomainStats struct {
	Count int64
	Bytes int64
}

// PerDomainStats walks the (domain, time) index and aggregates count and
// estimated bytes per origin domain.
func (s *Store) PerDomainStats(ctx context.Context) (map[string]DomainStats, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: domIdxPrefix,
		UpperBound: prefixUpperBound(domIdxPrefix),
	})
	if err != nil {
		return nil, unavailable("stats", err)
	}
	defer iter.Close()

	stats := make(map[string]DomainStats)
	seen := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		seen++
		if seen%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rest := iter.Key()[len(domIdxPrefix):]
		i := bytes.IndexByte(rest, sep)
		if i <= 0 {
			continue
		}
		domain := string(rest[:i])
		size := int64(0)
		if v := iter.Value(); len(v) >= 4 {
			size = int64(binary.BigEndian.Uint32(v[:4]))
		}
		ds := stats[domain]
		ds.Count++
		ds.Bytes += size
		stats[domain] = ds
	}
	if err := iter.Error(); err != nil {
		return nil, unavailable("stats", err)
	}
	return stats, nil
}
