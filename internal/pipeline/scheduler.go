package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Cycler runs one automated reading cycle.
type Cycler interface {
	AutomatedCycle(ctx context.Context) (CycleResult, error)
}

// Scheduler triggers an automated cycle on a fixed interval.
type Scheduler struct {
	cycler     Cycler
	interval   time.Duration
	runOnStart bool
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewScheduler creates a Scheduler. A nil clock uses the real clock.
func NewScheduler(c Cycler, interval time.Duration, runOnStart bool, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		cycler:     c,
		interval:   interval,
		runOnStart: runOnStart,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run blocks, running a cycle every interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval.String(), "run_on_start", s.runOnStart)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.runCycle(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := s.clock.Now()
	result, err := s.cycler.AutomatedCycle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("automated cycle failed", "error", err)
		return
	}
	s.logger.Info("automated cycle complete",
		"tanks", result.Tanks,
		"persisted", result.Persisted,
		"published", result.Published,
		"failed", result.Failed,
		"duration", s.clock.Since(start).String(),
	)
}
