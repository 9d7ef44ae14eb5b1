package query

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iammultiman/logvault/internal/logstore"
	"github.com/iammultiman/logvault/internal/record"
)

// Engine answers read queries by scanning the best-matching index ordering
// and applying the remaining filters in memory. It has no side effects.
type Engine struct {
	store  *logstore.Store
	logger *zap.Logger
}

// New builds a query engine over the given store.
func New(store *logstore.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger.Named("query")}
}

// Query returns the records matching the filter, newest-first unless the
// filter requests ascending order. Offset and Limit apply to the filtered
// result set, not the raw index scan.
func (e *Engine) Query(ctx context.Context, f Filter) ([]*record.Record, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	expr, err := newCELFilter(f.Expr)
	if err != nil {
		return nil, &record.ValidationError{Field: "expr", Reason: err.Error()}
	}

	cursors, err := e.openCursors(f)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, c := range cursors {
			_ = c.Close()
		}
	}()

	out := make([]*record.Record, 0, f.Limit)
	skipped := 0
	scanned := 0
	for {
		scanned++
		if scanned%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		entry, cur := nextEntry(cursors, f.Ascending)
		if cur == nil {
			break
		}
		cur.Advance()

		r, gerr := e.store.Get(ctx, entry.ID)
		if gerr != nil {
			// a record deleted between index scan and load is not an error
			if errors.Is(gerr, logstore.ErrNotFound) {
				continue
			}
			return nil, gerr
		}
		if !matches(f, r) || !expr.Eval(r) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, r)
		if len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// openCursors picks the index orderings that best match the filter: the
// (domain, time) index when origins are constrained, else the (level, time)
// index when levels are constrained, else the plain time index.
func (e *Engine) openCursors(f Filter) ([]*logstore.Cursor, error) {
	var cursors []*logstore.Cursor
	fail := func(err error) ([]*logstore.Cursor, error) {
		for _, c := range cursors {
			_ = c.Close()
		}
		return nil, err
	}

	switch {
	case len(f.Domains) > 0:
		for _, d := range dedupe(f.Domains) {
			c, err := e.store.DomainCursor(d, f.Since, f.Until, f.Ascending)
			if err != nil {
				return fail(err)
			}
			cursors = append(cursors, c)
		}
	case len(f.Levels) > 0:
		seen := map[record.Level]bool{}
		for _, l := range f.Levels {
			if seen[l] {
				continue
			}
			seen[l] = true
			c, err := e.store.LevelCursor(string(l), f.Since, f.Until, f.Ascending)
			if err != nil {
				return fail(err)
			}
			cursors = append(cursors, c)
		}
	default:
		c, err := e.store.TimeCursor(f.Since, f.Until, f.Ascending)
		if err != nil {
			return fail(err)
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

// nextEntry picks the cursor whose head comes next in the requested order:
// smallest timestamp ascending, largest descending. Each record lives under
// exactly one (domain, time) or (level, time) segment, so merged scans never
// yield duplicates.
func nextEntry(cursors []*logstore.Cursor, asc bool) (logstore.IndexEntry, *logstore.Cursor) {
	var best logstore.IndexEntry
	var bestCur *logstore.Cursor
	for _, c := range cursors {
		entry, ok := c.Entry()
		if !ok {
			continue
		}
		if bestCur == nil ||
			(asc && entry.Timestamp < best.Timestamp) ||
			(!asc && entry.Timestamp > best.Timestamp) {
			best, bestCur = entry, c
		}
	}
	return best, bestCur
}

func matches(f Filter, r *record.Record) bool {
	if len(f.Levels) > 0 && !containsLevel(f.Levels, r.Level) {
		return false
	}
	if len(f.Domains) > 0 && !containsString(f.Domains, r.OriginDomain) {
		return false
	}
	if len(f.Sessions) > 0 && !containsString(f.Sessions, r.SessionID) {
		return false
	}
	if f.Since > 0 && r.Timestamp < f.Since {
		return false
	}
	if f.Until > 0 && r.Timestamp > f.Until {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(r.Message), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

func containsLevel(ls []record.Level, l record.Level) bool {
	for _, v := range ls {
		if v == l {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
