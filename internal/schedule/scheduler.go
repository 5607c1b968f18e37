// Package schedule triggers periodic price sweeps.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"snatcher/internal/scrape"
)

// Sweeper is the orchestrator surface the scheduler drives.
type Sweeper interface {
	RunSweep(ctx context.Context) ([]scrape.Outcome, error)
}

// Scheduler invokes the sweeper immediately and then on a fixed interval.
type Scheduler struct {
	logger   *slog.Logger
	sweeper  Sweeper
	interval time.Duration
}

// New creates a Scheduler.
func New(logger *slog.Logger, sweeper Sweeper, interval time.Duration) *Scheduler {
	return &Scheduler{logger: logger, sweeper: sweeper, interval: interval}
}

// Run blocks until ctx is cancelled. An in-flight sweep always finishes
// before Run returns, so sessions get released on shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.sweeper.RunSweep(ctx); err != nil {
		s.logger.Error("sweep aborted", "error", err)
	}
}
