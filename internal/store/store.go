// Package store is the Postgres persistence layer: the three
// content-addressed cache tables (tokens, pools, factory_addresses) and the
// opportunities table. All writes are idempotent upserts on the natural
// keys; concurrent writers racing on the same key never surface a
// unique-constraint error.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// Store wraps the process-wide connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// EnsureSchema creates the tables when absent. Deployment-grade migrations
// live outside this service; this keeps local and test environments
// bootstrappable.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tokens (
    chain_id       BIGINT NOT NULL,
    token_address  TEXT   NOT NULL,
    name           TEXT   NOT NULL DEFAULT 'Unknown',
    symbol         TEXT   NOT NULL DEFAULT 'UNKNOWN',
    decimals       INT    NOT NULL DEFAULT 18,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (chain_id, token_address)
);
CREATE TABLE IF NOT EXISTS pools (
    chain_id       BIGINT  NOT NULL,
    pool_address   TEXT    NOT NULL,
    token0         TEXT    NOT NULL,
    token1         TEXT    NOT NULL,
    exists_onchain BOOLEAN NOT NULL DEFAULT TRUE,
    router_family  TEXT    NOT NULL,
    fee            TEXT    NOT NULL DEFAULT '2500',
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (chain_id, pool_address)
);
CREATE INDEX IF NOT EXISTS pools_tokens_idx ON pools (chain_id, token0, token1, router_family);
CREATE TABLE IF NOT EXISTS factory_addresses (
    chain_id                BIGINT NOT NULL,
    router                  TEXT   NOT NULL,
    factory_address         TEXT   NOT NULL,
    wrapped_native_address  TEXT   NOT NULL,
    router_family           TEXT   NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (chain_id, router)
);
CREATE TABLE IF NOT EXISTS opportunities (
    id             BIGSERIAL PRIMARY KEY,
    chain_id       BIGINT NOT NULL,
    tx_hash        TEXT   NOT NULL,
    router         TEXT   NOT NULL,
    router_family  TEXT   NOT NULL,
    token_in       TEXT   NOT NULL,
    token_out      TEXT   NOT NULL,
    amount_in      TEXT   NOT NULL DEFAULT '0',
    amount_out_min TEXT   NOT NULL DEFAULT '0',
    amount_in_max  TEXT   NOT NULL DEFAULT '0',
    fee            TEXT   NOT NULL DEFAULT '0',
    pool_address   TEXT   NOT NULL DEFAULT '',
    method         TEXT   NOT NULL DEFAULT '',
    recipient      TEXT   NOT NULL DEFAULT '',
    deadline       TEXT   NOT NULL DEFAULT '0',
    block_number   BIGINT NOT NULL DEFAULT 0,
    status         TEXT   NOT NULL DEFAULT 'pending',
    detected_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    metadata       JSONB  NOT NULL DEFAULT '{}'::jsonb,
    UNIQUE (chain_id, tx_hash)
);
CREATE INDEX IF NOT EXISTS opportunities_status_idx ON opportunities (chain_id, status);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
