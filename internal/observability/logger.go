package observability

import (
	"log/slog"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const serviceName = "fuel-tank-telemetry"

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT, tags
// every record with the service name, and installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	slog.SetDefault(logger)
	return logger
}
