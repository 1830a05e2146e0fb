package orchestrator

import (
	"context"
	"time"

	"github.com/caseflow-systems/caseflow-import/internal/logging"
)

// Scheduler triggers pull syncs on a fixed interval. Ticks that land while a
// source is still syncing are dropped by the single-flight guard in
// SyncSource rather than queued.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	logger   *logging.Logger
}

func NewScheduler(orch *Orchestrator, interval time.Duration, logger *logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{orch: orch, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. The first sync happens after one full
// interval, not at startup, so a crash-looping process does not hammer
// upstream APIs.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sync scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.orch.SyncAll(ctx)
		}
	}
}
