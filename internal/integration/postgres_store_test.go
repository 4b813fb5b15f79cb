//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/postgres"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/pipeline"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/simulator"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/stream"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	clock := clockwork.NewFakeClockAt(time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC))
	store, err := postgres.Open(ctx, startPostgres(ctx, t), clock)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are idempotent")
	require.NoError(t, store.CheckReadiness(ctx))

	tanks := domain.DemoTanks()
	require.NoError(t, store.SeedTanks(ctx, tanks))
	clock.Advance(time.Hour)
	require.NoError(t, store.SeedTanks(ctx, tanks[:1]), "re-seeding upserts")

	n, err := store.CountTanks(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(tanks), n)

	got, err := store.GetTank(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, tanks[0].Capacity, got.Capacity)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	_, err = store.GetTank(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := store.ListTanks(ctx)
	require.NoError(t, err)
	require.Len(t, listed, len(tanks))
	assert.Equal(t, "T1", listed[0].ID)

	_, err = store.LatestReading(ctx, "T1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first, err := store.SaveReading(ctx, domain.Reading{TankID: "T1", FuelHeight: 2, FuelLevelPercentage: 50})
	require.NoError(t, err)
	second, err := store.SaveReading(ctx, domain.Reading{TankID: "T1", FuelHeight: 2.1, FuelLevelPercentage: 52.5})
	require.NoError(t, err, "same timestamp as the first reading")

	latest, err := store.LatestReading(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, second, latest, "insertion order breaks timestamp ties")

	history, err := store.Readings(ctx, "T1", 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.Reading{second, first}, history)

	_, err = store.SaveReading(ctx, domain.Reading{TankID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestPostgresPipeline runs automated cycles against the real store.
func TestPostgresPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := postgres.Open(ctx, startPostgres(ctx, t), nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.SeedTanks(ctx, domain.DemoTanks()))

	metrics := observability.NewMetricsForTesting()
	dist := stream.NewDistributor(64, metrics)
	defer dist.Close()
	sub := dist.Subscribe()

	svc := pipeline.New(store, simulator.NewSeeded(9, discardLogger()), dist, discardLogger(), metrics)
	require.NoError(t, svc.InitializeAll(ctx))

	for range 3 {
		result, err := svc.AutomatedCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Persisted)
		assert.Zero(t, result.Failed)
	}

	history, err := store.Readings(ctx, "T2", 0)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.NotEmpty(t, sub.C())

	_, err = svc.ManualTrigger(ctx, "NON-EXISTENT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
