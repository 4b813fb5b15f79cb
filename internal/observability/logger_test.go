package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "debug", LogFormat: "text"})

	assert.Same(t, logger, slog.Default())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_DefaultsToInfo(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "verbose", LogFormat: "json"})

	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.ReadingsPersisted.Inc()
	m.TankFailures.WithLabelValues("tick").Inc()
	m.FuelPercentage.WithLabelValues("T1").Set(42)
	m.CacheLookups.WithLabelValues("tank", "hit").Inc()

	assert.NotNil(t, m.Subscribers)
	assert.NotNil(t, m.UpstreamState)
}
