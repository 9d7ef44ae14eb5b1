package logstore

import (
	"math"

	"github.com/cockroachdb/pebble"
)

// IndexEntry is one position in a secondary ordering: the record's timestamp,
// its id, and its estimated size.
type IndexEntry struct {
	Timestamp int64
	ID        string
	Size      int
}

// Cursor walks one index ordering in ascending or descending timestamp
// order, bounded by an inclusive [since, until] range. It observes a
// consistent view of the index as of its creation; a single scan never
// yields the same entry twice.
type Cursor struct {
	iter   *pebble.Iterator
	prefix []byte
	asc    bool
	valid  bool
}

func (s *Store) newCursor(prefix []byte, sinceMs, untilMs int64, asc bool) (*Cursor, error) {
	lower := prefix
	if sinceMs > 0 {
		lower = appendBE8(append([]byte(nil), prefix...), uint64(sinceMs))
	}
	var upper []byte
	if untilMs > 0 && untilMs < math.MaxInt64 {
		upper = appendBE8(append([]byte(nil), prefix...), uint64(untilMs+1))
	} else {
		upper = prefixUpperBound(prefix)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, unavailable("query", err)
	}
	c := &Cursor{iter: iter, prefix: prefix, asc: asc}
	if asc {
		c.valid = iter.First()
	} else {
		c.valid = iter.Last()
	}
	return c, nil
}

// TimeCursor scans the plain timestamp ordering.
func (s *Store) TimeCursor(sinceMs, untilMs int64, asc bool) (*Cursor, error) {
	return s.newCursor(prefixTimeIndex(), sinceMs, untilMs, asc)
}

// DomainCursor scans one domain's (domain, timestamp) ordering.
func (s *Store) DomainCursor(domain string, sinceMs, untilMs int64, asc bool) (*Cursor, error) {
	return s.newCursor(prefixDomainIndex(domain), sinceMs, untilMs, asc)
}

// LevelCursor scans one level's (level, timestamp) ordering.
func (s *Store) LevelCursor(level string, sinceMs, untilMs int64, asc bool) (*Cursor, error) {
	return s.newCursor(prefixLevelIndex(level), sinceMs, untilMs, asc)
}

// Valid reports whether the cursor is positioned on an entry.
func (c *Cursor) Valid() bool { return c.valid }

// Entry parses the current position. Only meaningful while Valid.
func (c *Cursor) Entry() (IndexEntry, bool) {
	if !c.valid {
		return IndexEntry{}, false
	}
	ts, id, size, ok := parseIndexEntry(c.prefix, c.iter.Key(), c.iter.Value())
	if !ok {
		return IndexEntry{}, false
	}
	return IndexEntry{Timestamp: ts, ID: id, Size: size}, true
}

// Advance moves to the next entry in scan order.
func (c *Cursor) Advance() {
	if !c.valid {
		return
	}
	if c.asc {
		c.valid = c.iter.Next()
	} else {
		c.valid = c.iter.Prev()
	}
}

// Close releases the underlying iterator.
func (c *Cursor) Close() error { return c.iter.Close() }
