// Package postgres stores tanks and readings in PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

const (
	pingTimeout = 5 * time.Second

	// foreignKeyViolation is the SQLSTATE for a reading whose tank is missing.
	foreignKeyViolation = "23503"

	tankColumns    = `id, name, diameter, height, capacity, sensor_height, location, created_at, updated_at`
	readingColumns = `id, tank_id, distance_to_fuel, fuel_height, fuel_level_liters, fuel_level_percentage, recorded_at`
)

// Store is the PostgreSQL repository.
type Store struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// Open connects to dsn and validates the connection with a ping.
func Open(ctx context.Context, dsn string, clock clockwork.Clock) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: empty DSN")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{pool: pool, clock: clock}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// SeedTanks inserts or updates tanks by id in one batch.
func (s *Store) SeedTanks(ctx context.Context, tanks []domain.Tank) error {
	if len(tanks) == 0 {
		return nil
	}
	for _, t := range tanks {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO tanks (id, name, diameter, height, capacity, sensor_height, location, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    diameter = EXCLUDED.diameter,
    height = EXCLUDED.height,
    capacity = EXCLUDED.capacity,
    sensor_height = EXCLUDED.sensor_height,
    location = EXCLUDED.location,
    updated_at = EXCLUDED.updated_at`

	now := s.clock.Now().UTC()
	for _, t := range tanks {
		batch.Queue(query, t.ID, t.Name, t.Diameter, t.Height, t.Capacity, t.SensorHeight, t.Location, now)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for _, t := range tanks {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("seed tank %s: %w: %w", t.ID, domain.ErrPersistence, err)
		}
	}
	return nil
}

// CountTanks returns the number of stored tanks.
func (s *Store) CountTanks(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tanks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tanks: %w: %w", domain.ErrPersistence, err)
	}
	return n, nil
}

func (s *Store) GetTank(ctx context.Context, id string) (domain.Tank, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tankColumns+` FROM tanks WHERE id = $1`, id)
	t, err := scanTank(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tank{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Tank{}, fmt.Errorf("get tank %s: %w: %w", id, domain.ErrPersistence, err)
	}
	return t, nil
}

// ListTanks returns tanks ordered by creation time, then id.
func (s *Store) ListTanks(ctx context.Context) ([]domain.Tank, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tankColumns+` FROM tanks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list tanks: %w: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var tanks []domain.Tank
	for rows.Next() {
		t, err := scanTank(rows)
		if err != nil {
			return nil, fmt.Errorf("list tanks: %w: %w", domain.ErrPersistence, err)
		}
		tanks = append(tanks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tanks: %w: %w", domain.ErrPersistence, err)
	}
	return tanks, nil
}

func (s *Store) LatestReading(ctx context.Context, tankID string) (domain.Reading, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+readingColumns+` FROM readings
WHERE tank_id = $1
ORDER BY recorded_at DESC, seq DESC
LIMIT 1`, tankID)
	r, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reading{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reading{}, fmt.Errorf("latest reading for tank %s: %w: %w", tankID, domain.ErrPersistence, err)
	}
	return r, nil
}

// Readings returns up to limit readings for a tank, newest first. A limit of
// zero or less returns the whole history.
func (s *Store) Readings(ctx context.Context, tankID string, limit int) ([]domain.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE tank_id = $1 ORDER BY recorded_at DESC, seq DESC`
	args := []any{tankID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("readings for tank %s: %w: %w", tankID, domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("readings for tank %s: %w: %w", tankID, domain.ErrPersistence, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("readings for tank %s: %w: %w", tankID, domain.ErrPersistence, err)
	}
	return out, nil
}

// SaveReading inserts a reading with a fresh id and the current time,
// truncated to the database's microsecond precision.
func (s *Store) SaveReading(ctx context.Context, r domain.Reading) (domain.Reading, error) {
	r.ID = uuid.NewString()
	r.Timestamp = s.clock.Now().UTC().Truncate(time.Microsecond)

	_, err := s.pool.Exec(ctx, `INSERT INTO readings (`+readingColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.TankID, r.DistanceToFuel, r.FuelHeight, r.FuelLevelLiters, r.FuelLevelPercentage, r.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.Reading{}, fmt.Errorf("save reading for tank %s: %w", r.TankID, domain.ErrNotFound)
		}
		return domain.Reading{}, fmt.Errorf("save reading for tank %s: %w: %w", r.TankID, domain.ErrPersistence, err)
	}
	return r, nil
}

func scanTank(row pgx.Row) (domain.Tank, error) {
	var t domain.Tank
	err := row.Scan(&t.ID, &t.Name, &t.Diameter, &t.Height, &t.Capacity, &t.SensorHeight, &t.Location, &t.CreatedAt, &t.UpdatedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, err
}

func scanReading(row pgx.Row) (domain.Reading, error) {
	var r domain.Reading
	err := row.Scan(&r.ID, &r.TankID, &r.DistanceToFuel, &r.FuelHeight, &r.FuelLevelLiters, &r.FuelLevelPercentage, &r.Timestamp)
	r.Timestamp = r.Timestamp.UTC()
	return r, err
}
