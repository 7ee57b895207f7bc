// Package supervisor periodically sweeps the work queue for exclusions
// claimed by a worker that never completed them, reclaiming each as timed
// out. Grounded on the deadlock-detector's periodic monitor goroutine, but
// reworked around the Store's own process_status view rather than an
// in-memory task registry: a worker crash here loses no state the
// supervisor needs, since the queue row itself is authoritative.
package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nutrisolve/nutrisolve/internal/store"
)

// Config bundles a Supervisor's fixed inputs.
type Config struct {
	Store         store.Store
	Deadline      time.Duration
	CheckInterval time.Duration
	Logger        *zap.Logger
}

// Supervisor runs a ticker-driven sweep reclaiming stale in-progress
// exclusion rows.
type Supervisor struct {
	cfg Config
}

// New constructs a Supervisor. A non-positive CheckInterval defaults to a
// fifth of Deadline, bounded below by one second.
func New(cfg Config) *Supervisor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = cfg.Deadline / 5
		if cfg.CheckInterval < time.Second {
			cfg.CheckInterval = time.Second
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Supervisor{cfg: cfg}
}

// Run sweeps at CheckInterval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep reclaims every in-progress record whose start_time predates the
// configured deadline. It logs the stale worker ids before reclaiming their
// rows so that a claim lost to a transient delay and one lost to a genuine
// crash are both visible.
func (s *Supervisor) sweep(ctx context.Context) {
	deadline := time.Now().Add(-s.cfg.Deadline)

	stale, err := s.cfg.Store.TimedOutWorkers(ctx, deadline)
	if err != nil {
		s.cfg.Logger.Error("timed_out_workers query failed", zap.Error(err))
		return
	}
	if len(stale) > 0 {
		s.cfg.Logger.Warn("workers exceeded deadline", zap.Strings("workers", stale), zap.Duration("deadline", s.cfg.Deadline))
	}

	records, err := s.cfg.Store.ProcessStatus(ctx)
	if err != nil {
		s.cfg.Logger.Error("process_status query failed", zap.Error(err))
		return
	}

	for _, rec := range records {
		if rec.StartTime == nil || !rec.StartTime.Before(deadline) {
			continue
		}
		if err := s.cfg.Store.Complete(ctx, rec.Exclusion, true, nil); err != nil {
			s.cfg.Logger.Error("reclaiming timed-out exclusion failed",
				zap.Ints("exclusion", rec.Exclusion), zap.Error(err))
			continue
		}
		s.cfg.Logger.Info("reclaimed timed-out exclusion",
			zap.Ints("exclusion", rec.Exclusion), zap.String("claimed_by", rec.ClaimedBy))
	}
}
