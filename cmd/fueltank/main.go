package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/kafka"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/memory"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/postgres"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/rediscache"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/upstream"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/config"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/pipeline"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/simulator"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/stream"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// tankStore is what bootstrap needs beyond the pipeline's repository.
type tankStore interface {
	pipeline.Repository
	SeedTanks(ctx context.Context, tanks []domain.Tank) error
	CountTanks(ctx context.Context) (int, error)
}

// readiness is ready when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks readiness

	// Storage: PostgreSQL when DATABASE_URL is set, in-memory otherwise.
	var store tankStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if cfg.DBMigrate {
			if err := pg.Migrate(ctx); err != nil {
				logger.Error("failed to apply schema", "error", err)
				os.Exit(1)
			}
		}
		store = pg
		checks = append(checks, pg)
		logger.Info("using postgres repository")
	} else {
		store = memory.New(nil)
		logger.Info("using in-memory repository")
	}

	if cfg.SeedDemoTanks {
		if err := seedDemoTanks(ctx, store, logger); err != nil {
			logger.Error("failed to seed demo tanks", "error", err)
			os.Exit(1)
		}
	}

	var repo pipeline.Repository = store
	if cfg.TankCacheSize > 0 {
		repo = cache.NewTankCache(repo, cfg.TankCacheSize, metrics)
		logger.Info("tank cache enabled", "cache_size", cfg.TankCacheSize)
	}
	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		latest := rediscache.New(repo, client, cfg.RedisTTL, logger, metrics)
		repo = latest
		checks = append(checks, latest)
		logger.Info("redis latest-reading cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}

	dist := stream.NewDistributor(cfg.SubscriberBuffer, metrics)
	sim := simulator.NewSeeded(cfg.SimulatorSeed, logger)
	svc := pipeline.New(repo, sim, dist, logger, metrics)
	checks = append(readiness{svc}, checks...)

	// Kafka relay subscribes before initialization so first readings are relayed.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sub := dist.Subscribe()
		go writer.Relay(ctx, sub.C())
		logger.Info("kafka relay enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if err := svc.InitializeAll(ctx); err != nil {
		logger.Error("failed to initialize tanks", "error", err)
	}

	if cfg.UpstreamURL != "" {
		consumer := upstream.NewConsumer(cfg.UpstreamURL, cfg.UpstreamRetryInterval, dist, logger, metrics)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("upstream consumer stopped", "error", err)
			}
		}()
	}

	scheduler := pipeline.NewScheduler(svc, cfg.ReadingInterval, cfg.RunOnStart, nil, logger, metrics)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:              cfg.HTTPAddr,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
	}, svc, dist, checks, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Closing the distributor ends open streams so the server can drain.
	dist.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func seedDemoTanks(ctx context.Context, store tankStore, logger *slog.Logger) error {
	n, err := store.CountTanks(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("tanks already present, skipping demo seed", "tanks", n)
		return nil
	}
	tanks := domain.DemoTanks()
	if err := store.SeedTanks(ctx, tanks); err != nil {
		return err
	}
	logger.Info("seeded demo tanks", "tanks", len(tanks))
	return nil
}
