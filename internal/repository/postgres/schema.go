package postgres

import (
	"context"
	"database/sql"
)

// Schema creates the tables used by the repositories. Statements are
// idempotent so Migrate can run on every deploy.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('driver', 'passenger')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trips (
	id             UUID PRIMARY KEY,
	origin         TEXT NOT NULL,
	destination    TEXT NOT NULL,
	departure_at   TIMESTAMPTZ NOT NULL,
	driver_id      UUID NOT NULL REFERENCES users (id),
	driver_name    TEXT NOT NULL DEFAULT '',
	seat_capacity  INTEGER NOT NULL CHECK (seat_capacity >= 1),
	reserved_seats INTEGER NOT NULL DEFAULT 0,
	price          NUMERIC(10, 2) NOT NULL CHECK (price > 0),
	description    TEXT NOT NULL DEFAULT '',
	reservations   JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT trips_reserved_within_capacity CHECK (reserved_seats >= 0 AND reserved_seats <= seat_capacity)
);

CREATE INDEX IF NOT EXISTS trips_departure_at_idx ON trips (departure_at);
CREATE INDEX IF NOT EXISTS trips_driver_id_idx ON trips (driver_id);
CREATE INDEX IF NOT EXISTS trips_reservations_idx ON trips USING GIN (reservations jsonb_path_ops);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
