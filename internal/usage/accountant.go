package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iammultiman/logvault/internal/logstore"
)

// Quota describes the host filesystem's capacity for the store's data
// directory. Known distinguishes "0% used" from "quota unobtainable".
type Quota struct {
	Known          bool    `json:"known"`
	TotalBytes     int64   `json:"total_bytes"`
	UsedBytes      int64   `json:"used_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// OriginUsage is the per-domain breakdown entry.
type OriginUsage struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Snapshot is a point-in-time computed summary of storage consumption. It is
// derived, never persisted.
type Snapshot struct {
	TakenAt    time.Time              `json:"taken_at"`
	TotalCount int64                  `json:"total_count"`
	TotalBytes int64                  `json:"total_bytes"`
	PerOrigin  map[string]OriginUsage `json:"per_origin"`
	Quota      Quota                  `json:"quota"`
}

// StatusLevel grades storage pressure.
type StatusLevel string

const (
	StatusOK       StatusLevel = "ok"
	StatusWarning  StatusLevel = "warning"
	StatusCritical StatusLevel = "critical"
)

// criticalThresholdPercent is the fixed quota usage at which status becomes
// critical regardless of the caller's warning threshold.
const criticalThresholdPercent = 90.0

// Status is the result of a threshold check. It reports; it never deletes.
type Status struct {
	Usage        *Snapshot   `json:"usage"`
	Level        StatusLevel `json:"level"`
	NeedsCleanup bool        `json:"needs_cleanup"`
}

// Recommendation is advisory output for a caller-facing UI.
type Recommendation struct {
	ShouldCleanup    bool     `json:"should_cleanup"`
	Reasons          []string `json:"reasons"`
	SuggestedActions []string `json:"suggested_actions"`
}

// Accountant computes storage usage snapshots and advisory status over the
// index store and the host filesystem.
type Accountant struct {
	store   *logstore.Store
	dataDir string
	logger  *zap.Logger

	// quotaFn probes the host quota; replaceable in tests.
	quotaFn func(path string) Quota
}

// New builds an accountant for the store persisted under dataDir.
func New(store *logstore.Store, dataDir string, logger *zap.Logger) *Accountant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accountant{
		store:   store,
		dataDir: dataDir,
		logger:  logger.Named("usage"),
		quotaFn: probeQuota,
	}
}

// Snapshot computes the current usage summary. The store scan and the host
// quota probe run concurrently; an unobtainable quota degrades to
// Quota{Known: false} rather than failing the snapshot.
func (a *Accountant) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{TakenAt: time.Now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := a.store.Count(gctx)
		if err != nil {
			return err
		}
		total, err := a.store.TotalBytes(gctx)
		if err != nil {
			return err
		}
		per, err := a.store.PerDomainStats(gctx)
		if err != nil {
			return err
		}
		snap.TotalCount = count
		snap.TotalBytes = total
		snap.PerOrigin = make(map[string]OriginUsage, len(per))
		for d, s := range per {
			snap.PerOrigin[d] = OriginUsage{Count: s.Count, Bytes: s.Bytes}
		}
		return nil
	})
	g.Go(func() error {
		snap.Quota = a.quotaFn(a.dataDir)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !snap.Quota.Known {
		a.logger.Debug("host quota unobtainable; reporting unknown")
	}
	return snap, nil
}

// CheckStatus grades current usage against the caller's warning threshold
// and the fixed critical threshold. NeedsCleanup turns true from warning up.
func (a *Accountant) CheckStatus(ctx context.Context, warningThresholdPercent float64) (*Status, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{Usage: snap, Level: StatusOK}
	if snap.Quota.Known {
		switch {
		case snap.Quota.UsedPercent >= criticalThresholdPercent:
			st.Level = StatusCritical
		case snap.Quota.UsedPercent >= warningThresholdPercent:
			st.Level = StatusWarning
		}
	}
	st.NeedsCleanup = st.Level != StatusOK
	return st, nil
}

// RecommendActions derives heuristic cleanup advice from a snapshot.
// Advisory only; safe on an empty store.
func (a *Accountant) RecommendActions(snap *Snapshot) *Recommendation {
	rec := &Recommendation{}
	if snap == nil {
		return rec
	}

	if snap.Quota.Known && snap.Quota.UsedPercent > 80 {
		rec.ShouldCleanup = true
		rec.Reasons = append(rec.Reasons,
			fmt.Sprintf("%.0f%% of the %s quota is used", snap.Quota.UsedPercent, humanize.IBytes(uint64(snap.Quota.TotalBytes))))
		rec.SuggestedActions = append(rec.SuggestedActions,
			"run a cleanup with a stricter retention policy")
	}

	if snap.TotalCount > 0 {
		for domain, ou := range snap.PerOrigin {
			if ou.Count*2 > snap.TotalCount {
				rec.ShouldCleanup = true
				rec.Reasons = append(rec.Reasons,
					fmt.Sprintf("origin %s accounts for %d of %d records", domain, ou.Count, snap.TotalCount))
				rec.SuggestedActions = append(rec.SuggestedActions,
					fmt.Sprintf("consider deleting records for %s", domain))
				break
			}
		}
	}

	if snap.TotalBytes > 256<<20 {
		rec.ShouldCleanup = true
		rec.Reasons = append(rec.Reasons,
			fmt.Sprintf("store holds %s of records", humanize.IBytes(uint64(snap.TotalBytes))))
		rec.SuggestedActions = append(rec.SuggestedActions,
			"lower the size budget in the retention policy")
	}
	return rec
}
