package postgres

// schema is applied by Migrate. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS tanks (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    diameter      DOUBLE PRECISION NOT NULL CHECK (diameter > 0),
    height        DOUBLE PRECISION NOT NULL CHECK (height > 0),
    capacity      DOUBLE PRECISION NOT NULL,
    sensor_height DOUBLE PRECISION NOT NULL,
    location      TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS readings (
    seq                   BIGSERIAL PRIMARY KEY,
    id                    TEXT NOT NULL UNIQUE,
    tank_id               TEXT NOT NULL REFERENCES tanks (id) ON DELETE CASCADE,
    distance_to_fuel      DOUBLE PRECISION NOT NULL,
    fuel_height           DOUBLE PRECISION NOT NULL,
    fuel_level_liters     DOUBLE PRECISION NOT NULL,
    fuel_level_percentage DOUBLE PRECISION NOT NULL,
    recorded_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS readings_tank_recent_idx
    ON readings (tank_id, recorded_at DESC, seq DESC);
`
