package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/iammultiman/logvault/internal/config"
	"github.com/iammultiman/logvault/internal/query"
	"github.com/iammultiman/logvault/internal/record"
)

func testConfig(t *testing.T, cleanup bool) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Fsync = "never"
	cfg.Cleanup.Enabled = cleanup
	cfg.Cleanup.Interval = cfgpkg.Duration(time.Hour)
	return cfg
}

func TestOpenWiresComponents(t *testing.T) {
	e, err := Open(Options{Config: testConfig(t, false), Logger: zap.NewNop()})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.CheckHealth(ctx))

	id, err := e.Store().Put(ctx, &record.Record{
		Timestamp: time.Now().UnixMilli(),
		Level:     record.LevelError,
		Message:   "boom",
		OriginURL: "https://example.com/app",
		SessionID: "s1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := e.Queries().Query(ctx, query.Filter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "example.com", got[0].OriginDomain)

	snap, err := e.Usage().Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.TotalCount)

	res, err := e.Scheduler().RunNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.TotalDeleted)
}

func TestOpenStartsSchedulerWhenEnabled(t *testing.T) {
	e, err := Open(Options{Config: testConfig(t, true)})
	require.NoError(t, err)

	st := e.Scheduler().Status()
	assert.True(t, st.IsRunning)
	assert.Equal(t, time.Hour, st.Interval)

	require.NoError(t, e.Close())
	assert.False(t, e.Scheduler().Status().IsRunning)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Storage.Fsync = "sometimes"
	_, err := Open(Options{Config: cfg})
	require.Error(t, err)
}

func TestReopenSeesPersistedRecords(t *testing.T) {
	cfg := testConfig(t, false)

	e, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = e.Store().Put(ctx, &record.Record{
		ID:           "persist-1",
		Timestamp:    time.Now().UnixMilli(),
		Level:        record.LevelInfo,
		Message:      "survives restart",
		OriginDomain: "example.com",
		SessionID:    "s1",
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	defer e2.Close()

	r, err := e2.Store().Get(ctx, "persist-1")
	require.NoError(t, err)
	assert.Equal(t, "survives restart", r.Message)

	count, err := e2.Store().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
