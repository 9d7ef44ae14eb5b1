package retention

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iammultiman/logvault/internal/logstore"
	"github.com/iammultiman/logvault/internal/usage"
)

// Result summarizes one cleanup run.
type Result struct {
	AgeDeleted   int             `json:"age_deleted"`
	SizeDeleted  int             `json:"size_deleted"`
	CountDeleted int             `json:"count_deleted"`
	TotalDeleted int             `json:"total_deleted"`
	Duration     time.Duration   `json:"duration"`
	FinalUsage   *usage.Snapshot `json:"final_usage"`
}

// Options tunes cleanup pacing. Zero values pick defaults.
type Options struct {
	// BatchLimit caps records removed per storage batch.
	BatchLimit int
	// BatchesPerSecond throttles batch deletion; <=0 disables throttling.
	BatchesPerSecond float64
}

const defaultBatchesPerSecond = 50

// compactAfterDeletes is the trim size past which a cleanup asks the
// storage engine to compact the trimmed keyspace, so large trims reclaim
// disk instead of leaving tombstones behind.
const compactAfterDeletes = 10 * logstore.DefaultBatchLimit

// Engine enforces a retention policy over the store in fixed pass order:
// age first, then total size, then record count. Each pass shrinks the
// store, so later passes see the earlier passes' effect and a run converges
// in a single invocation.
type Engine struct {
	store      *logstore.Store
	accountant *usage.Accountant
	logger     *zap.Logger
	batchLimit int
	limiter    *rate.Limiter
}

// New builds a retention engine. The accountant is optional; without it the
// result carries no final usage snapshot.
func New(store *logstore.Store, accountant *usage.Accountant, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = logstore.DefaultBatchLimit
	}
	var limiter *rate.Limiter
	if opts.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	} else if opts.BatchesPerSecond == 0 {
		limiter = rate.NewLimiter(defaultBatchesPerSecond, 1)
	}
	return &Engine{
		store:      store,
		accountant: accountant,
		logger:     logger.Named("retention"),
		batchLimit: opts.BatchLimit,
		limiter:    limiter,
	}
}

// PerformCleanup applies the policy's bounded axes in order and reports what
// was deleted. An all-nil policy is a no-op. Partial progress survives an
// error or cancellation; deletions are never rolled back.
func (e *Engine) PerformCleanup(ctx context.Context, policy Policy) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{}
	if !policy.Enabled() {
		e.logger.Debug("cleanup skipped, no bounded axis")
		res.FinalUsage = e.snapshot(ctx)
		return res, nil
	}

	if policy.MaxAge != nil {
		cutoff := time.Now().Add(-*policy.MaxAge).UnixMilli()
		n, err := e.store.DeleteOlderThan(ctx, cutoff, e.batchLimit, e.limiter)
		res.AgeDeleted = n
		res.TotalDeleted += n
		if err != nil {
			return res, err
		}
	}

	if policy.MaxTotalBytes != nil {
		n, err := e.store.DeleteOldestUntilBytes(ctx, *policy.MaxTotalBytes, e.batchLimit, e.limiter)
		res.SizeDeleted = n
		res.TotalDeleted += n
		if err != nil {
			return res, err
		}
	}

	if policy.MaxRecords != nil {
		count, err := e.store.Count(ctx)
		if err != nil {
			return res, err
		}
		if excess := count - *policy.MaxRecords; excess > 0 {
			n, derr := e.store.DeleteOldest(ctx, int(excess), e.batchLimit, e.limiter)
			res.CountDeleted = n
			res.TotalDeleted += n
			if derr != nil {
				return res, derr
			}
		}
	}

	if res.TotalDeleted >= compactAfterDeletes {
		if cerr := e.store.Compact(ctx); cerr != nil {
			e.logger.Warn("post-cleanup compaction failed", zap.Error(cerr))
		}
	}

	res.Duration = time.Since(start)
	res.FinalUsage = e.snapshot(ctx)
	e.logger.Info("cleanup complete",
		zap.Int("age_deleted", res.AgeDeleted),
		zap.Int("size_deleted", res.SizeDeleted),
		zap.Int("count_deleted", res.CountDeleted),
		zap.Int("total_deleted", res.TotalDeleted),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (e *Engine) snapshot(ctx context.Context) *usage.Snapshot {
	if e.accountant == nil {
		return nil
	}
	snap, err := e.accountant.Snapshot(ctx)
	if err != nil {
		e.logger.Warn("post-cleanup usage snapshot failed", zap.Error(err))
		return nil
	}
	return snap
}
