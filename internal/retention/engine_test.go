package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iammultiman/logvault/internal/logstore"
	"github.com/iammultiman/logvault/internal/record"
	pebblestore "github.com/iammultiman/logvault/internal/storage/pebble"
	"github.com/iammultiman/logvault/internal/usage"
)

func newTestEngine(t *testing.T) (*Engine, *logstore.Store) {
	t.Helper()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: dir,
		Fsync:   pebblestore.FsyncModeNever,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := logstore.Open(db, zap.NewNop())
	acct := usage.New(store, dir, zap.NewNop())
	// unthrottled to keep tests fast
	return New(store, acct, zap.NewNop(), Options{BatchesPerSecond: -1}), store
}

func seedAt(t *testing.T, store *logstore.Store, base time.Time, n int) {
	t.Helper()
	var recs []*record.Record
	for i := 0; i < n; i++ {
		recs = append(recs, &record.Record{
			ID:           fmt.Sprintf("r%03d", i),
			Timestamp:    base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Level:        record.LevelInfo,
			Message:      "message payload for sizing",
			OriginDomain: "example.com",
			SessionID:    "s1",
		})
	}
	_, err := store.PutBatch(context.Background(), recs)
	require.NoError(t, err)
}

func TestCleanupNoOpPolicy(t *testing.T) {
	e, store := newTestEngine(t)
	seedAt(t, store, time.Now().Add(-time.Hour), 5)

	res, err := e.PerformCleanup(context.Background(), Policy{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalDeleted)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestCleanupAgePass(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now()
	// 4 records older than 24h, 3 newer
	seedOld := []*record.Record{}
	for i := 0; i < 4; i++ {
		seedOld = append(seedOld, &record.Record{
			ID: fmt.Sprintf("old%d", i), Timestamp: now.Add(-48 * time.Hour).Add(time.Duration(i) * time.Minute).UnixMilli(),
			Level: record.LevelInfo, Message: "m", OriginDomain: "example.com", SessionID: "s",
		})
	}
	for i := 0; i < 3; i++ {
		seedOld = append(seedOld, &record.Record{
			ID: fmt.Sprintf("new%d", i), Timestamp: now.Add(-time.Hour).Add(time.Duration(i) * time.Minute).UnixMilli(),
			Level: record.LevelInfo, Message: "m", OriginDomain: "example.com", SessionID: "s",
		})
	}
	_, err := store.PutBatch(context.Background(), seedOld)
	require.NoError(t, err)

	res, err := e.PerformCleanup(context.Background(), Policy{MaxAge: durationPtr(24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 4, res.AgeDeleted)
	assert.Equal(t, 4, res.TotalDeleted)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestCleanupCountPassKeepsNewest(t *testing.T) {
	e, store := newTestEngine(t)
	seedAt(t, store, time.Now().Add(-time.Hour), 10)

	res, err := e.PerformCleanup(context.Background(), Policy{MaxRecords: int64Ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 6, res.CountDeleted)

	left, err := store.OldestByTime(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, left, 4)
	// survivors are exactly the 4 newest
	assert.Equal(t, "r006", left[0].ID)
	assert.Equal(t, "r009", left[3].ID)
}

func TestCleanupSizePass(t *testing.T) {
	e, store := newTestEngine(t)
	seedAt(t, store, time.Now().Add(-time.Hour), 20)

	before, err := store.TotalBytes(context.Background())
	require.NoError(t, err)
	budget := before / 2

	res, err := e.PerformCleanup(context.Background(), Policy{MaxTotalBytes: int64Ptr(budget)})
	require.NoError(t, err)
	assert.Positive(t, res.SizeDeleted)

	after, err := store.TotalBytes(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, after, budget)
}

func TestCleanupConvergesAndIsIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	seedAt(t, store, time.Now().Add(-time.Hour), 30)

	policy := Policy{
		MaxAge:     durationPtr(24 * time.Hour),
		MaxRecords: int64Ptr(10),
	}
	res1, err := e.PerformCleanup(context.Background(), policy)
	require.NoError(t, err)
	assert.Equal(t, 20, res1.TotalDeleted)
	require.NotNil(t, res1.FinalUsage)
	assert.EqualValues(t, 10, res1.FinalUsage.TotalCount)

	// second run under the same policy deletes nothing
	res2, err := e.PerformCleanup(context.Background(), policy)
	require.NoError(t, err)
	assert.Zero(t, res2.TotalDeleted)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, count)
}

func TestCleanupEmptyStore(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.PerformCleanup(context.Background(), Balanced())
	require.NoError(t, err)
	assert.Zero(t, res.TotalDeleted)
}

func TestCleanupRejectsInvalidPolicy(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.PerformCleanup(context.Background(), Policy{MaxRecords: int64Ptr(0)})
	require.Error(t, err)
}

func TestPresetsAreOrdered(t *testing.T) {
	c, b, a := Conservative(), Balanced(), Aggressive()
	assert.Greater(t, *c.MaxAge, *b.MaxAge)
	assert.Greater(t, *b.MaxAge, *a.MaxAge)
	assert.Greater(t, *c.MaxTotalBytes, *b.MaxTotalBytes)
	assert.Greater(t, *b.MaxTotalBytes, *a.MaxTotalBytes)
	assert.Greater(t, *c.MaxRecords, *b.MaxRecords)
	assert.Greater(t, *b.MaxRecords, *a.MaxRecords)
	assert.Equal(t, Balanced(), Preset("balanced"))
	assert.Equal(t, Balanced(), Preset("bogus"))
}
