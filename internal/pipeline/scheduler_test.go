package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCycler struct {
	calls chan struct{}
	err   error
}

func (c *countingCycler) AutomatedCycle(context.Context) (pipeline.CycleResult, error) {
	c.calls <- struct{}{}
	return pipeline.CycleResult{Tanks: 1, Persisted: 1}, c.err
}

func waitForCycle(t *testing.T, c *countingCycler) {
	t.Helper()
	select {
	case <-c.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle")
	}
}

func runScheduler(t *testing.T, s *pipeline.Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return cancel, done
}

func TestScheduler_RunsEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cycler := &countingCycler{calls: make(chan struct{}, 4)}
	metrics := observability.NewMetricsForTesting()
	s := pipeline.NewScheduler(cycler, 30*time.Minute, false, clock, slog.Default(), metrics)

	cancel, done := runScheduler(t, s)

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SchedulerRunning), 0)

	select {
	case <-cycler.calls:
		t.Fatal("cycle ran before the first interval")
	default:
	}

	clock.Advance(30 * time.Minute)
	waitForCycle(t, cycler)
	clock.Advance(30 * time.Minute)
	waitForCycle(t, cycler)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, testutil.ToFloat64(metrics.SchedulerRunning))
}

func TestScheduler_RunOnStart(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cycler := &countingCycler{calls: make(chan struct{}, 4), err: errors.New("list tanks: boom")}
	s := pipeline.NewScheduler(cycler, time.Hour, true, clock, slog.Default(), observability.NewMetricsForTesting())

	cancel, done := runScheduler(t, s)
	waitForCycle(t, cycler)

	cancel()
	require.NoError(t, <-done, "a failing cycle does not stop the scheduler")
}
