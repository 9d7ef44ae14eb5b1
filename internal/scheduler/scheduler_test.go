package scheduler

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
	"github.com/iammultiman/logvault/internal/retention"
	pebblestore "github.com/iammultiman/logvault/internal/storage/pebble"
)

func newTestScheduler(t *testing.T) (*Scheduler, *logstore.Store) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := logstore.Open(db, zap.NewNop())
	engine := retention.New(store, nil, zap.NewNop(), retention.Options{BatchesPerSecond: -1})
	return New(engine, zap.NewNop()), store
}

// newThrottledScheduler paces deletes hard (one record per batch) so a
// cleanup pass stays in flight long enough to race against Stop.
func newThrottledScheduler(t *testing.T, batchesPerSecond float64) (*Scheduler, *logstore.Store) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := logstore.Open(db, zap.NewNop())
	engine := retention.New(store, nil, zap.NewNop(), retention.Options{
		BatchLimit:       1,
		BatchesPerSecond: batchesPerSecond,
	})
	return New(engine, zap.NewNop()), store
}

func seedN(t *testing.T, store *logstore.Store, n int) {
	t.Helper()
	var recs []*record.Record
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		recs = append(recs, &record.Record{
			ID:           fmt.Sprintf("r%03d", i),
			Timestamp:    base.Add(time.Duration(i) * time.Second).UnixMilli(),
			Level:        record.LevelInfo,
			Message:      "m",
			OriginDomain: "example.com",
			SessionID:    "s",
		})
	}
	_, err := store.PutBatch(context.Background(), recs)
	require.NoError(t, err)
}

func maxRecords(n int64) retention.Policy {
	return retention.Policy{MaxRecords: &n}
}

func TestRunNowAppliesCurrentPolicy(t *testing.T) {
	s, store := newTestScheduler(t)
	seedN(t, store, 10)
	require.NoError(t, s.UpdatePolicy(maxRecords(4)))

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.TotalDeleted)

	st := s.Status()
	assert.False(t, st.IsRunning)
	assert.Equal(t, 6, st.LastDeleted)
	assert.False(t, st.LastRun.IsZero())
	assert.Empty(t, st.LastError)
}

func TestStartStopLifecycle(t *testing.T) {
	s, _ := newTestScheduler(t)

	require.NoError(t, s.Start(time.Minute, maxRecords(100)))
	st := s.Status()
	assert.True(t, st.IsRunning)
	assert.Equal(t, time.Minute, st.Interval)

	// starting again just updates settings
	require.NoError(t, s.Start(2*time.Minute, maxRecords(50)))
	st = s.Status()
	assert.True(t, st.IsRunning)
	assert.Equal(t, 2*time.Minute, st.Interval)

	s.Stop()
	assert.False(t, s.Status().IsRunning)
	s.Stop() // idempotent
}

func TestPeriodicRunFires(t *testing.T) {
	s, store := newTestScheduler(t)
	seedN(t, store, 10)

	require.NoError(t, s.Start(20*time.Millisecond, maxRecords(4)))
	defer s.Stop()

	require.Eventually(t, func() bool {
		count, err := store.Count(context.Background())
		return err == nil && count == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopWaitsOutInFlightCleanup(t *testing.T) {
	s, store := newThrottledScheduler(t, 100)
	seedN(t, store, 40)

	// 39 excess records at one record per ~10ms batch keeps the pass in
	// flight for a few hundred ms
	require.NoError(t, s.Start(10*time.Millisecond, maxRecords(1)))

	ctx := context.Background()
	require.Eventually(t, func() bool {
		count, err := store.Count(ctx)
		return err == nil && count < 40
	}, 2*time.Second, 5*time.Millisecond, "cleanup pass never started")

	// Stop mid-pass: it must block until the pass completes, not abort it
	s.Stop()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "in-flight cleanup must run to completion")

	st := s.Status()
	assert.False(t, st.IsRunning)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 39, st.LastDeleted)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	s, _ := newTestScheduler(t)

	s.runMu.Lock()
	_, err := s.RunNow(context.Background())
	s.runMu.Unlock()
	require.ErrorIs(t, err, ErrCleanupInProgress)

	// after the in-flight run finishes, RunNow succeeds again
	_, err = s.RunNow(context.Background())
	require.NoError(t, err)
}

func TestStartRejectsInvalidPolicy(t *testing.T) {
	s, _ := newTestScheduler(t)
	bad := int64(0)
	err := s.Start(time.Minute, retention.Policy{MaxRecords: &bad})
	require.Error(t, err)
	assert.False(t, s.Status().IsRunning)
}

func TestUpdatePolicyTakesEffectOnNextRun(t *testing.T) {
	s, store := newTestScheduler(t)
	seedN(t, store, 10)

	require.NoError(t, s.UpdatePolicy(maxRecords(8)))
	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalDeleted)

	require.NoError(t, s.UpdatePolicy(maxRecords(5)))
	res, err = s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalDeleted)
}
