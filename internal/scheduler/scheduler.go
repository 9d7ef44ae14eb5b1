package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iammultiman/logvault/internal/retention"
)

// ErrCleanupInProgress is returned when a run is requested while another
// cleanup pass is still executing. The caller should retry later; runs are
// never queued.
var ErrCleanupInProgress = errors.New("scheduler: cleanup already in progress")

// DefaultInterval is the periodic cleanup cadence when none is configured.
const DefaultInterval = time.Hour

// Status is a point-in-time view of the scheduler.
type Status struct {
	IsRunning    bool             `json:"is_running"`
	Interval     time.Duration    `json:"interval"`
	Policy       retention.Policy `json:"policy"`
	LastRun      time.Time        `json:"last_run"`
	LastDeleted  int              `json:"last_deleted"`
	LastError    string           `json:"last_error,omitempty"`
	NextRunAfter time.Time        `json:"next_run_after"`
}

// Scheduler drives periodic retention cleanups on a ticker and serializes
// them with manual RunNow requests: at most one cleanup executes at a time,
// and a tick that lands mid-run is skipped, not queued.
type Scheduler struct {
	engine *retention.Engine
	logger *zap.Logger

	runMu sync.Mutex // held for the duration of a cleanup pass

	mu       sync.Mutex // guards the fields below
	running  bool
	interval time.Duration
	policy   retention.Policy
	lastRun  time.Time
	lastDel  int
	lastErr  error
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a stopped scheduler around the retention engine.
func New(engine *retention.Engine, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine: engine,
		logger: logger.Named("scheduler"),
	}
}

// Start launches the periodic loop. Starting an already-running scheduler
// only updates its interval and policy. interval <= 0 picks DefaultInterval.
func (s *Scheduler) Start(interval time.Duration, policy retention.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.policy = policy
	if s.running {
		s.logger.Info("scheduler already running, settings updated",
			zap.Duration("interval", interval))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(ctx, s.done)

	s.logger.Info("scheduler started",
		zap.Duration("interval", interval),
		zap.String("policy", policy.String()))
	return nil
}

// Stop halts the periodic loop and waits for any in-flight cleanup to
// finish. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// RunNow triggers an immediate cleanup with the current policy, bypassing
// the ticker. It fails with ErrCleanupInProgress if a pass is mid-flight.
func (s *Scheduler) RunNow(ctx context.Context) (*retention.Result, error) {
	if !s.runMu.TryLock() {
		return nil, ErrCleanupInProgress
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	policy := s.policy
	s.mu.Unlock()

	return s.run(ctx, policy)
}

// UpdatePolicy swaps the policy used by subsequent runs. A cleanup already
// in flight keeps the policy it started with.
func (s *Scheduler) UpdatePolicy(policy retention.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
	s.logger.Info("retention policy updated", zap.String("policy", policy.String()))
	return nil
}

// Status reports the scheduler's current settings and last outcome.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		IsRunning:   s.running,
		Interval:    s.interval,
		Policy:      s.policy,
		LastRun:     s.lastRun,
		LastDeleted: s.lastDel,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.running && !s.lastRun.IsZero() {
		st.NextRunAfter = s.lastRun.Add(s.interval)
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A pending tick may win the select over ctx.Done after Stop.
			if ctx.Err() != nil {
				return
			}
			if !s.runMu.TryLock() {
				s.logger.Warn("skipping scheduled cleanup, previous run still in progress")
				continue
			}
			s.mu.Lock()
			policy := s.policy
			if s.interval != interval {
				interval = s.interval
				ticker.Reset(interval)
			}
			s.mu.Unlock()

			// The pass runs under its own context: Stop cancels the loop
			// context to prevent future runs, but an in-flight cleanup runs
			// to completion and Stop waits for it.
			if _, err := s.run(context.Background(), policy); err != nil {
				s.logger.Error("scheduled cleanup failed", zap.Error(err))
			}
			s.runMu.Unlock()
		}
	}
}

func (s *Scheduler) run(ctx context.Context, policy retention.Policy) (*retention.Result, error) {
	res, err := s.engine.PerformCleanup(ctx, policy)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	if res != nil {
		s.lastDel = res.TotalDeleted
	}
	s.mu.Unlock()
	return res, err
}
