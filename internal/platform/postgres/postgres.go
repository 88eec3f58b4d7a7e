// Package postgres opens the database connection and owns the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS elections (
	id            TEXT PRIMARY KEY,
	external_id   TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	jurisdiction  TEXT NOT NULL DEFAULT '',
	office        TEXT NOT NULL DEFAULT '',
	election_date TIMESTAMPTZ,
	level         TEXT NOT NULL,
	election_type TEXT NOT NULL,
	provenance    JSONB,
	active        BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_elections_external_id ON elections (external_id) WHERE external_id <> '';
CREATE INDEX IF NOT EXISTS idx_elections_date ON elections (election_date);

CREATE TABLE IF NOT EXISTS candidates (
	id                  TEXT PRIMARY KEY,
	external_id         TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL,
	party               TEXT NOT NULL DEFAULT '',
	election_id         TEXT NOT NULL REFERENCES elections (id),
	incumbent           BOOLEAN NOT NULL DEFAULT FALSE,
	polling_support     DOUBLE PRECISION,
	polling_source      TEXT,
	last_polling_update TIMESTAMPTZ,
	polling_trend       TEXT,
	vote_percentage     DOUBLE PRECISION,
	votes_received      BIGINT,
	result_source       TEXT,
	result_certified    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_candidates_election_id ON candidates (election_id);

CREATE TABLE IF NOT EXISTS policies (
	id               TEXT PRIMARY KEY,
	label            TEXT NOT NULL,
	category         TEXT NOT NULL,
	enabled          BOOLEAN NOT NULL,
	auto_fixable     BOOLEAN NOT NULL,
	auto_fix_enabled BOOLEAN NOT NULL,
	archived         BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	dry_run        BOOLEAN NOT NULL,
	policies       JSONB NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ,
	finding_counts JSONB NOT NULL,
	findings       JSONB NOT NULL,
	actions        JSONB NOT NULL,
	error          TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_runs_started_at ON audit_runs (started_at DESC);
`

// EnsureSchema creates the tables if they do not exist. Idempotent; safe to
// run at every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
