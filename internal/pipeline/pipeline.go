package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
)

// Repository persists tanks and their readings.
type Repository interface {
	GetTank(ctx context.Context, id string) (domain.Tank, error)
	ListTanks(ctx context.Context) ([]domain.Tank, error)
	LatestReading(ctx context.Context, tankID string) (domain.Reading, error)
	// Readings returns up to limit readings, newest first; limit <= 0 means all.
	Readings(ctx context.Context, tankID string, limit int) ([]domain.Reading, error)
	// SaveReading assigns ID and Timestamp and returns the stored reading.
	SaveReading(ctx context.Context, r domain.Reading) (domain.Reading, error)
}

// Simulator produces raw sensor distances in centimeters.
type Simulator interface {
	NextDistance(tankID string, currentHeightM, tankHeightM float64) float64
	InitialFuelLevel(tankHeightM float64) float64
}

// Publisher receives live update events. Publish must not block.
type Publisher interface {
	Publish(event domain.FuelLevelEvent)
}

// CycleResult summarizes one automated cycle.
type CycleResult struct {
	Tanks     int
	Persisted int
	Published int
	Failed    int
}

// Service runs the simulate-derive-persist-publish pipeline for each tank.
type Service struct {
	repo      Repository
	sim       Simulator
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	locks     *keyedMutex
	ready     atomic.Bool
}

// New creates a Service with the given collaborators and observability.
func New(repo Repository, sim Simulator, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:      repo,
		sim:       sim,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
		locks:     newKeyedMutex(),
	}
}

// CheckReadiness returns nil once tanks have been initialized or a cycle has
// completed.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no reading cycle has completed yet")
	}
	return nil
}

// Initialize creates the first reading for a tank that has none and publishes
// it. If the tank already has a reading it is returned with created=false.
func (s *Service) Initialize(ctx context.Context, tank domain.Tank) (domain.Reading, bool, error) {
	unlock := s.locks.lock(tank.ID)
	defer unlock()

	existing, err := s.repo.LatestReading(ctx, tank.ID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Reading{}, false, fmt.Errorf("initialize tank %s: latest reading: %w", tank.ID, err)
	}

	distance := s.sim.InitialFuelLevel(tank.Height)
	saved, err := s.persist(ctx, tank, domain.DeriveReading(distance, tank))
	if err != nil {
		return domain.Reading{}, false, fmt.Errorf("initialize tank %s: %w", tank.ID, err)
	}

	s.publish(tank, saved)
	s.logger.Info("tank initialized",
		"tank_id", tank.ID,
		"percentage", saved.FuelLevelPercentage,
	)
	return saved, true, nil
}

// InitializeAll initializes every tank without a reading. Failures are
// logged per tank and do not stop the others.
func (s *Service) InitializeAll(ctx context.Context) error {
	tanks, err := s.repo.ListTanks(ctx)
	if err != nil {
		return fmt.Errorf("list tanks: %w", err)
	}

	var created int
	for _, tank := range tanks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, ok, err := s.Initialize(ctx, tank)
		if err != nil {
			s.metrics.TankFailures.WithLabelValues("initialize").Inc()
			s.logger.Error("initialize tank failed", "tank_id", tank.ID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	s.logger.Info("tanks initialized", "tanks", len(tanks), "created", created)
	s.ready.Store(true)
	return nil
}

// Tick generates, persists, and (when significant) publishes the next
// reading for a tank.
func (s *Service) Tick(ctx context.Context, tank domain.Tank) (domain.Reading, error) {
	r, _, err := s.tick(ctx, tank)
	return r, err
}

func (s *Service) tick(ctx context.Context, tank domain.Tank) (domain.Reading, bool, error) {
	unlock := s.locks.lock(tank.ID)
	defer unlock()

	var prev *domain.Reading
	currentHeight := tank.Height / 2

	latest, err := s.repo.LatestReading(ctx, tank.ID)
	switch {
	case err == nil:
		prev = &latest
		currentHeight = latest.FuelHeight
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Reading{}, false, fmt.Errorf("tick tank %s: latest reading: %w", tank.ID, err)
	}

	distance := s.sim.NextDistance(tank.ID, currentHeight, tank.Height)
	saved, err := s.persist(ctx, tank, domain.DeriveReading(distance, tank))
	if err != nil {
		return domain.Reading{}, false, fmt.Errorf("tick tank %s: %w", tank.ID, err)
	}

	if !domain.IsSignificantChange(prev, saved) {
		s.logger.Debug("reading below significance threshold",
			"tank_id", tank.ID,
			"percentage", saved.FuelLevelPercentage,
		)
		return saved, false, nil
	}

	s.publish(tank, saved)
	return saved, true, nil
}

// AutomatedCycle ticks every tank once. A failing tank is logged and counted;
// the cycle carries on with the rest. An error is returned only when the
// tanks cannot be listed or the context ends mid-cycle.
func (s *Service) AutomatedCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()

	tanks, err := s.repo.ListTanks(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("list tanks: %w", err)
	}

	result := CycleResult{Tanks: len(tanks)}
	for _, tank := range tanks {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		_, published, err := s.tick(ctx, tank)
		if err != nil {
			result.Failed++
			s.metrics.TankFailures.WithLabelValues("tick").Inc()
			s.logger.Error("tank reading failed", "tank_id", tank.ID, "error", err)
			continue
		}
		result.Persisted++
		if published {
			result.Published++
		}
	}

	s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	s.ready.Store(true)
	return result, nil
}

// ManualTrigger runs one tick for the tank with the given id and returns the
// persisted reading. It returns domain.ErrNotFound when the tank is unknown.
func (s *Service) ManualTrigger(ctx context.Context, tankID string) (domain.Reading, error) {
	tank, err := s.repo.GetTank(ctx, tankID)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("tank %s: %w", tankID, err)
	}

	r, err := s.Tick(ctx, tank)
	if err != nil {
		s.metrics.TankFailures.WithLabelValues("manual").Inc()
		return domain.Reading{}, err
	}

	s.logger.Info("manual reading triggered", "tank_id", tankID, "percentage", r.FuelLevelPercentage)
	return r, nil
}

// ListTanks returns every tank in creation order.
func (s *Service) ListTanks(ctx context.Context) ([]domain.Tank, error) {
	return s.repo.ListTanks(ctx)
}

// GetTank returns a tank or domain.ErrNotFound.
func (s *Service) GetTank(ctx context.Context, id string) (domain.Tank, error) {
	tank, err := s.repo.GetTank(ctx, id)
	if err != nil {
		return domain.Tank{}, fmt.Errorf("tank %s: %w", id, err)
	}
	return tank, nil
}

// LatestReading returns the newest reading of a tank, or domain.ErrNotFound
// when the tank or its readings are absent.
func (s *Service) LatestReading(ctx context.Context, tankID string) (domain.Reading, error) {
	if _, err := s.GetTank(ctx, tankID); err != nil {
		return domain.Reading{}, err
	}
	r, err := s.repo.LatestReading(ctx, tankID)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("latest reading for tank %s: %w", tankID, err)
	}
	return r, nil
}

// ReadingHistory returns up to limit readings of a tank, newest first, or
// domain.ErrNotFound when the tank is unknown.
func (s *Service) ReadingHistory(ctx context.Context, tankID string, limit int) ([]domain.Reading, error) {
	if _, err := s.GetTank(ctx, tankID); err != nil {
		return nil, err
	}
	history, err := s.repo.Readings(ctx, tankID, limit)
	if err != nil {
		return nil, fmt.Errorf("readings for tank %s: %w", tankID, err)
	}
	return history, nil
}

// LatestReadings returns the newest reading of every tank that has one.
func (s *Service) LatestReadings(ctx context.Context) ([]domain.TankReading, error) {
	tanks, err := s.repo.ListTanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tanks: %w", err)
	}

	out := make([]domain.TankReading, 0, len(tanks))
	for _, tank := range tanks {
		r, err := s.repo.LatestReading(ctx, tank.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest reading for tank %s: %w", tank.ID, err)
		}
		out = append(out, domain.TankReading{
			Tank:    tank,
			Reading: r,
			Status:  domain.Classify(r.FuelLevelPercentage),
		})
	}
	return out, nil
}

// persist checks invariants, saves the reading, and records metrics. An
// out-of-bounds reading is logged and counted but still saved; a non-finite
// one is rejected.
func (s *Service) persist(ctx context.Context, tank domain.Tank, r domain.Reading) (domain.Reading, error) {
	if !r.IsFinite() {
		s.metrics.InvariantViolations.Inc()
		s.logger.Error("rejecting non-finite reading", "tank_id", tank.ID, "distance_cm", r.DistanceToFuel)
		return domain.Reading{}, fmt.Errorf("reject reading: %w: non-finite value", domain.ErrInvariantViolation)
	}
	if err := domain.CheckReading(r, tank); err != nil {
		s.metrics.InvariantViolations.Inc()
		s.logger.Warn("derived reading out of bounds", "tank_id", tank.ID, "error", err)
	}

	saved, err := s.repo.SaveReading(ctx, r)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("save reading: %w", err)
	}

	s.metrics.ReadingsPersisted.Inc()
	s.metrics.FuelPercentage.WithLabelValues(tank.ID).Set(saved.FuelLevelPercentage)
	return saved, nil
}

func (s *Service) publish(tank domain.Tank, r domain.Reading) {
	event := domain.NewFuelLevelEvent(tank, r)
	s.publisher.Publish(event)
	s.logger.Debug("fuel level event published",
		"tank_id", tank.ID,
		"percentage", r.FuelLevelPercentage,
		"status", string(event.Status),
	)
}
