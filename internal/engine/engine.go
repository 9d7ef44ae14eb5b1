package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	cfgpkg "github.com/iammultiman/logvault/internal/config"
	"github.com/iammultiman/logvault/internal/logstore"
	"github.com/iammultiman/logvault/internal/query"
	"github.com/iammultiman/logvault/internal/retention"
	"github.com/iammultiman/logvault/internal/scheduler"
	pebblestore "github.com/iammultiman/logvault/internal/storage/pebble"
	"github.com/iammultiman/logvault/internal/usage"
)

// Options for building the Engine.
type Options struct {
	Config cfgpkg.Config
	Logger *zap.Logger
	// Metrics observes storage reads and commits. Optional.
	Metrics pebblestore.MetricsHook
}

// Engine wires storage, the record store, and the facades for a single-node
// instance. The cleanup scheduler starts only when configured.
type Engine struct {
	db         *pebblestore.DB
	config     cfgpkg.Config
	logger     *zap.Logger
	store      *logstore.Store
	queries    *query.Engine
	accountant *usage.Accountant
	retention  *retention.Engine
	sched      *scheduler.Scheduler
}

// Open initializes the underlying storage and wires all components. When
// cleanup is enabled in the configuration the scheduler starts immediately.
func Open(opts Options) (*Engine, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       cfg.DataDir,
		Fsync:         fsyncMode(cfg.Storage.Fsync),
		FsyncInterval: cfg.Storage.FsyncInterval.Std(),
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	store := logstore.Open(db, logger)
	acct := usage.New(store, db.DataDir(), logger)
	ret := retention.New(store, acct, logger, retention.Options{})
	sched := scheduler.New(ret, logger)

	e := &Engine{
		db:         db,
		config:     cfg,
		logger:     logger,
		store:      store,
		queries:    query.New(store, logger),
		accountant: acct,
		retention:  ret,
		sched:      sched,
	}

	if cfg.Cleanup.Enabled {
		if err := sched.Start(cfg.Cleanup.Interval.Std(), cfg.Cleanup.ResolvedPolicy()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close stops the scheduler and releases the underlying storage.
func (e *Engine) Close() error {
	if e.sched != nil {
		e.sched.Stop()
	}
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// CheckHealth performs a simple health check against the storage layer.
func (e *Engine) CheckHealth(ctx context.Context) error {
	if e.db == nil {
		return errors.New("db not open")
	}
	it, err := e.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return ctx.Err()
}

// Store exposes the record store.
func (e *Engine) Store() *logstore.Store { return e.store }

// Queries exposes the read-side query engine.
func (e *Engine) Queries() *query.Engine { return e.queries }

// Usage exposes the storage usage accountant.
func (e *Engine) Usage() *usage.Accountant { return e.accountant }

// Retention exposes the retention engine for one-off cleanups.
func (e *Engine) Retention() *retention.Engine { return e.retention }

// Scheduler exposes the cleanup scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Config returns the engine configuration.
func (e *Engine) Config() cfgpkg.Config { return e.config }

func fsyncMode(s string) pebblestore.FsyncMode {
	switch s {
	case "always":
		return pebblestore.FsyncModeAlways
	case "never":
		return pebblestore.FsyncModeNever
	default:
		return pebblestore.FsyncModeInterval
	}
}
