// Package rediscache keeps each tank's latest reading in Redis in front of
// the primary repository.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "fueltank:latest:"
	dialTimeout = 5 * time.Second
)

// Repository is the store being decorated.
type Repository interface {
	GetTank(ctx context.Context, id string) (domain.Tank, error)
	ListTanks(ctx context.Context) ([]domain.Tank, error)
	LatestReading(ctx context.Context, tankID string) (domain.Reading, error)
	Readings(ctx context.Context, tankID string, limit int) ([]domain.Reading, error)
	SaveReading(ctx context.Context, r domain.Reading) (domain.Reading, error)
}

// NewClient returns a go-redis client after validating the connection with PING.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// LatestCache serves LatestReading from Redis and writes every saved reading
// through. Redis failures are logged and fall back to the inner repository.
type LatestCache struct {
	Repository
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New wraps inner with a Redis latest-reading cache.
func New(inner Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *LatestCache {
	return &LatestCache{
		Repository: inner,
		client:     client,
		ttl:        ttl,
		logger:     logger,
		metrics:    metrics,
	}
}

func key(tankID string) string {
	return keyPrefix + tankID
}

func (c *LatestCache) LatestReading(ctx context.Context, tankID string) (domain.Reading, error) {
	data, err := c.client.Get(ctx, key(tankID)).Bytes()
	switch {
	case err == nil:
		var r domain.Reading
		if err := json.Unmarshal(data, &r); err == nil {
			c.metrics.CacheLookups.WithLabelValues("latest_reading", "hit").Inc()
			return r, nil
		}
		c.logger.Warn("discarding corrupt cached reading", "tank_id", tankID)
		if err := c.client.Del(ctx, key(tankID)).Err(); err != nil {
			c.logger.Warn("redis del failed", "tank_id", tankID, "error", err)
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("redis get failed", "tank_id", tankID, "error", err)
	}
	c.metrics.CacheLookups.WithLabelValues("latest_reading", "miss").Inc()

	r, err := c.Repository.LatestReading(ctx, tankID)
	if err != nil {
		return r, err
	}
	c.fill(ctx, r)
	return r, nil
}

func (c *LatestCache) SaveReading(ctx context.Context, r domain.Reading) (domain.Reading, error) {
	saved, err := c.Repository.SaveReading(ctx, r)
	if err != nil {
		return saved, err
	}
	c.store(ctx, saved)
	return saved, nil
}

// CheckReadiness pings Redis.
func (c *LatestCache) CheckReadiness(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// store overwrites the cached entry with a freshly saved reading.
func (c *LatestCache) store(ctx context.Context, r domain.Reading) {
	data, ok := c.encode(r)
	if !ok {
		return
	}
	if err := c.client.Set(ctx, key(r.TankID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "tank_id", r.TankID, "error", err)
	}
}

// fill caches a reading loaded after a miss. It never replaces an existing
// entry: a save that landed after the load has already written a newer one.
func (c *LatestCache) fill(ctx context.Context, r domain.Reading) {
	data, ok := c.encode(r)
	if !ok {
		return
	}
	if err := c.client.SetNX(ctx, key(r.TankID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis setnx failed", "tank_id", r.TankID, "error", err)
	}
}

func (c *LatestCache) encode(r domain.Reading) ([]byte, bool) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("marshal reading for cache", "tank_id", r.TankID, "error", err)
		return nil, false
	}
	return data, true
}
