package sql

import (
	"context"
	"fmt"

	sqldb "parksphere/pkg/db/sql"
	"parksphere/pkg/logger"
)

// Statements are idempotent and valid on both Postgres and SQLite.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS parking_lots (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		address         TEXT NOT NULL DEFAULT '',
		latitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude       DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_slots     INTEGER NOT NULL CHECK (total_slots >= 0),
		available_slots INTEGER NOT NULL CHECK (available_slots >= 0),
		price_per_hour  DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price_per_hour >= 0),
		created_at      TIMESTAMP NOT NULL,
		CHECK (available_slots <= total_slots)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_parking_lots_name ON parking_lots (name, id)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             TEXT PRIMARY KEY,
		lot_id         TEXT NOT NULL REFERENCES parking_lots (id),
		requester_id   TEXT NOT NULL,
		vehicle_tag    TEXT NOT NULL DEFAULT '',
		date           TEXT NOT NULL,
		start_time     TEXT NOT NULL,
		end_time       TEXT NOT NULL,
		duration_hours DOUBLE PRECISION NOT NULL CHECK (duration_hours > 0),
		total_cost     DOUBLE PRECISION NOT NULL CHECK (total_cost >= 0),
		status         TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled', 'completed')),
		created_at     TIMESTAMP NOT NULL,
		cancelled_at   TIMESTAMP NULL,
		CHECK (start_time < end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_lot_window ON bookings (lot_id, date, status, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings (requester_id, created_at DESC)`,
}

// Apply creates the relational schema. It is safe to run repeatedly.
func Apply(ctx context.Context, db *sqldb.DB, log *logger.Logger) error {
	log.Info("Running SQL migrations", "dialect", string(db.Dialect()))

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}

	log.Info("All SQL migrations applied", "steps", len(statements))
	return nil
}
