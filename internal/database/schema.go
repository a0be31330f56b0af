package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are applied in order at startup. Statements are
// idempotent so a restart against an existing database is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id                INTEGER PRIMARY KEY,
		name              TEXT NOT NULL,
		city              TEXT,
		locality          TEXT,
		country_id        INTEGER NOT NULL DEFAULT 0,
		country_code      TEXT NOT NULL DEFAULT '',
		country_name      TEXT NOT NULL DEFAULT '',
		latitude          DOUBLE PRECISION,
		longitude         DOUBLE PRECISION,
		last_updated      TIMESTAMPTZ,
		parameters        TEXT[] NOT NULL DEFAULT '{}',
		last_fetched      TIMESTAMPTZ NOT NULL,
		measurement_count INTEGER NOT NULL DEFAULT 0,
		has_recent        BOOLEAN NOT NULL DEFAULT FALSE,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		is_demo_data      BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_city ON locations (LOWER(city))`,
	`CREATE INDEX IF NOT EXISTS idx_locations_locality ON locations (LOWER(locality))`,
	`CREATE INDEX IF NOT EXISTS idx_locations_last_fetched ON locations (last_fetched DESC)`,

	`CREATE TABLE IF NOT EXISTS measurements (
		location_name TEXT NOT NULL,
		location_key  TEXT NOT NULL,
		parameter     TEXT NOT NULL,
		value         DOUBLE PRECISION NOT NULL,
		unit          TEXT NOT NULL DEFAULT '',
		measured_at   TIMESTAMPTZ NOT NULL,
		latitude      DOUBLE PRECISION,
		longitude     DOUBLE PRECISION,
		country_code  TEXT,
		city          TEXT,
		last_fetched  TIMESTAMPTZ NOT NULL,
		is_demo       BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (location_key, parameter, measured_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_location_name ON measurements (LOWER(location_name))`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_measured_at ON measurements (measured_at DESC)`,
}

// EnsureSchema creates the cache tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
