// Package db provides PostgreSQL storage for accepted job detections.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS job_detections (
	id           UUID PRIMARY KEY,
	url          TEXT NOT NULL,
	hostname     TEXT NOT NULL,
	page_id      UUID NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL,
	method       TEXT NOT NULL,
	confidence   INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
	content_hash TEXT NOT NULL,
	detected_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS job_detections_url_idx ON job_detections (url, detected_at DESC);
CREATE INDEX IF NOT EXISTS job_detections_detected_at_idx ON job_detections (detected_at DESC);
`

// EnsureSchema creates the job_detections table and its indexes if missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
