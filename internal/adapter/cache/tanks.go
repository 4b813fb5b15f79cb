// Package cache decorates a repository with an in-process LRU of tank
// metadata. Tanks are read-only to the running service; ListTanks refreshes
// every entry it returns.
package cache

import (
	"context"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
)

// Repository is the store being decorated.
type Repository interface {
	GetTank(ctx context.Context, id string) (domain.Tank, error)
	ListTanks(ctx context.Context) ([]domain.Tank, error)
	LatestReading(ctx context.Context, tankID string) (domain.Reading, error)
	Readings(ctx context.Context, tankID string, limit int) ([]domain.Reading, error)
	SaveReading(ctx context.Context, r domain.Reading) (domain.Reading, error)
}

// TankCache serves GetTank from memory and passes everything else through.
type TankCache struct {
	Repository
	tanks   *lru[string, domain.Tank]
	metrics *observability.Metrics
}

// NewTankCache wraps inner with an LRU holding up to maxEntries tanks.
func NewTankCache(inner Repository, maxEntries int, metrics *observability.Metrics) *TankCache {
	return &TankCache{
		Repository: inner,
		tanks:      newLRU[string, domain.Tank](maxEntries),
		metrics:    metrics,
	}
}

func (c *TankCache) GetTank(ctx context.Context, id string) (domain.Tank, error) {
	if tank, ok := c.tanks.get(id); ok {
		c.metrics.CacheLookups.WithLabelValues("tank", "hit").Inc()
		return tank, nil
	}
	c.metrics.CacheLookups.WithLabelValues("tank", "miss").Inc()

	tank, err := c.Repository.GetTank(ctx, id)
	if err != nil {
		// Misses are not cached so a tank seeded later becomes visible.
		return tank, err
	}
	c.tanks.put(id, tank)
	return tank, nil
}

// ListTanks always reads through and refreshes the cached entries.
func (c *TankCache) ListTanks(ctx context.Context) ([]domain.Tank, error) {
	tanks, err := c.Repository.ListTanks(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tanks {
		c.tanks.put(t.ID, t)
	}
	return tanks, nil
}
