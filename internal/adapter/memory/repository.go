// Package memory provides an in-process tank and reading store. It backs the
// service when no database is configured and is used throughout the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Repository keeps tanks and their reading history in memory.
type Repository struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	tanks    map[string]domain.Tank
	readings map[string][]domain.Reading
}

// New creates an empty Repository. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{
		clock:    clock,
		tanks:    make(map[string]domain.Tank),
		readings: make(map[string][]domain.Reading),
	}
}

// SeedTanks inserts or updates tanks by id. CreatedAt is kept for existing tanks.
func (r *Repository) SeedTanks(_ context.Context, tanks []domain.Tank) error {
	for _, t := range tanks {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	for _, t := range tanks {
		if existing, ok := r.tanks[t.ID]; ok {
			t.CreatedAt = existing.CreatedAt
		} else if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		r.tanks[t.ID] = t
	}
	return nil
}

// CountTanks returns the number of stored tanks.
func (r *Repository) CountTanks(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tanks), nil
}

func (r *Repository) GetTank(_ context.Context, id string) (domain.Tank, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tanks[id]
	if !ok {
		return domain.Tank{}, domain.ErrNotFound
	}
	return t, nil
}

// ListTanks returns tanks ordered by creation time, then id.
func (r *Repository) ListTanks(_ context.Context) ([]domain.Tank, error) {
	r.mu.RLock()
	out := make([]domain.Tank, 0, len(r.tanks))
	for _, t := range r.tanks {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// LatestReading returns the most recently saved reading for a tank.
func (r *Repository) LatestReading(_ context.Context, tankID string) (domain.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.readings[tankID]
	if len(history) == 0 {
		return domain.Reading{}, domain.ErrNotFound
	}
	return history[len(history)-1], nil
}

// Readings returns up to limit readings for a tank, newest first. A limit of
// zero or less returns the whole history.
func (r *Repository) Readings(_ context.Context, tankID string, limit int) ([]domain.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.readings[tankID]
	n := len(history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Reading, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

// SaveReading stores a reading, assigning its ID and Timestamp.
func (r *Repository) SaveReading(_ context.Context, reading domain.Reading) (domain.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tanks[reading.TankID]; !ok {
		return domain.Reading{}, fmt.Errorf("save reading for tank %s: %w", reading.TankID, domain.ErrNotFound)
	}

	reading.ID = uuid.NewString()
	reading.Timestamp = r.clock.Now().UTC()
	r.readings[reading.TankID] = append(r.readings[reading.TankID], reading)
	return reading, nil
}
