package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration
	CORSAllowedOrigin string

	// Storage. An empty DatabaseURL selects the in-memory repository.
	DatabaseURL   string
	DBMigrate     bool
	SeedDemoTanks bool
	TankCacheSize int

	// Latest-reading cache. An empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RedisTTL      time.Duration

	// Reading generation.
	ReadingInterval  time.Duration
	RunOnStart       bool
	SimulatorSeed    uint64
	SubscriberBuffer int

	// Kafka relay of live events.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Upstream SSE feed consumed in addition to local generation.
	UpstreamURL           string
	UpstreamRetryInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	readingInterval, err := parsePositiveDuration("READING_INTERVAL", "30m")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parsePositiveDuration("REDIS_TTL", "1h")
	if err != nil {
		return nil, err
	}
	upstreamRetry, err := parsePositiveDuration("UPSTREAM_RETRY_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}

	subscriberBuffer, err := parseInt("SUBSCRIBER_BUFFER", 16, 1, 4096)
	if err != nil {
		return nil, err
	}
	tankCacheSize, err := parseInt("TANK_CACHE_SIZE", 256, 0, 1_000_000)
	if err != nil {
		return nil, err
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SIMULATOR_SEED", "0"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SIMULATOR_SEED")
	}

	dbMigrate, err := parseBool("DB_MIGRATE", true)
	if err != nil {
		return nil, err
	}
	seedDemo, err := parseBool("SEED_DEMO_TANKS", true)
	if err != nil {
		return nil, err
	}
	runOnStart, err := parseBool("RUN_ON_START", true)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		CORSAllowedOrigin: sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGIN", "*"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMigrate:     dbMigrate,
		SeedDemoTanks: seedDemo,
		TankCacheSize: tankCacheSize,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisTTL:      redisTTL,

		ReadingInterval:  readingInterval,
		RunOnStart:       runOnStart,
		SimulatorSeed:    seed,
		SubscriberBuffer: subscriberBuffer,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "fuel-level-updates"),

		UpstreamURL:           os.Getenv("UPSTREAM_URL"),
		UpstreamRetryInterval: upstreamRetry,
	}

	// Cached readings would outlive an in-memory store across restarts.
	if cfg.RedisAddr != "" && cfg.DatabaseURL == "" {
		return nil, errors.New("REDIS_ADDR requires DATABASE_URL")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
