package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := simulate(context.Background(), 10, 7, 30*time.Minute, logger)
	require.NoError(t, err)

	assert.Equal(t, 40, r.persisted)
	require.Len(t, r.final, 4)

	var observations, events int
	for _, n := range r.statuses {
		observations += n
	}
	for _, n := range r.published {
		events += n
	}
	assert.Equal(t, 40, observations)
	assert.GreaterOrEqual(t, events, 4, "every tank publishes its initial reading")
	assert.LessOrEqual(t, events, 44)

	for _, tr := range r.final {
		assert.Equal(t, start.Add(10*30*time.Minute), tr.Reading.Timestamp)
	}

	var buf bytes.Buffer
	r.print(&buf)
	assert.Contains(t, buf.String(), "cycles: 10")
	assert.Contains(t, buf.String(), "Main Depot")
}

func TestSimulate_Deterministic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := simulate(context.Background(), 5, 3, time.Hour, logger)
	require.NoError(t, err)
	b, err := simulate(context.Background(), 5, 3, time.Hour, logger)
	require.NoError(t, err)

	for i := range a.final {
		assert.Equal(t, a.final[i].Reading.FuelLevelPercentage, b.final[i].Reading.FuelLevelPercentage)
	}
	assert.Equal(t, a.published, b.published)
}
