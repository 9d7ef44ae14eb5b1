package pebblestore

import (
	"errors"
	"testing"
	"time"
)

type testMetrics struct {
	read        int
	commits     int
	commitBytes int
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) { m.read += bytes }
func (m *testMetrics) ObserveCommit(d time.Duration, bytes int) {
	m.commits++
	m.commitBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestCRUD(t *testing.T) {
	db, metrics := newTestDB(t)

	key := []byte("k1")
	val := []byte("v1")
	if err := db.Set(key, val); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("got %q want %q", got, val)
	}

	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}

	b := db.NewBatch()
	if err := b.Delete(key, nil); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if err := db.CommitBatch(b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()
	if _, err := db.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBatchCommitMetrics(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewBatch()
	if err := b.Set([]byte("a"), []byte("1"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Set([]byte("b"), []byte("2"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := db.CommitBatch(b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()

	if metrics.commits != 1 {
		t.Fatalf("want 1 batch commit, got %d", metrics.commits)
	}
	if metrics.commitBytes <= 0 {
		t.Fatalf("expected positive commit bytes")
	}
}

func TestIteratorSeesConsistentView(t *testing.T) {
	db, _ := newTestDB(t)

	key := []byte("k2")
	if err := db.Set(key, []byte("old")); err != nil {
		t.Fatalf("set: %v", err)
	}

	it, err := db.NewIter(nil)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	defer it.Close()

	// mutate after the iterator is created
	if err := db.Set(key, []byte("new")); err != nil {
		t.Fatalf("set: %v", err)
	}

	if !it.First() {
		t.Fatalf("expected one key")
	}
	if string(it.Value()) != "old" {
		t.Fatalf("iterator saw %q want %q", it.Value(), "old")
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("db saw %q want %q", got, "new")
	}
}
