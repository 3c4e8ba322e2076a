// Package db stores the ledger, settlement sessions and guild configuration in Postgres.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susu3304/guildbank/internal/settlement"
)

var _ settlement.Backend = (*DB)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx opens a
// savepoint.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// store implements the settlement stores on top of a querier.
type store struct {
	q querier
}

type DB struct {
	store
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{store: store{q: pool}, pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// WithinTx runs fn in a single transaction and commits when fn returns nil.
func (db *DB) WithinTx(ctx context.Context, fn func(tx settlement.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunMigrations creates the tables if they do not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS payout_accounts (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			balance NUMERIC NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_payout_accounts_balance ON payout_accounts(guild_id, balance DESC);

		CREATE TABLE IF NOT EXISTS loot_split_sessions (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			silver NUMERIC NOT NULL,
			donated NUMERIC NOT NULL DEFAULT 0,
			screenshot_url TEXT NOT NULL DEFAULT '',
			participants TEXT[] NOT NULL DEFAULT '{}',
			state TEXT NOT NULL DEFAULT 'pending',
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			share NUMERIC,
			modifier NUMERIC,
			settled_at TIMESTAMPTZ,
			settled_by TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_loot_split_sessions_expiry ON loot_split_sessions(expires_at) WHERE state = 'pending';
		CREATE INDEX IF NOT EXISTS idx_loot_split_sessions_participants ON loot_split_sessions USING GIN (participants);

		CREATE TABLE IF NOT EXISTS regear_requests (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			silver NUMERIC NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			reduced BOOLEAN NOT NULL DEFAULT FALSE,
			paid NUMERIC,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			settled_at TIMESTAMPTZ,
			settled_by TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS guild_configurations (
			guild_id TEXT PRIMARY KEY,
			lootsplit_percent_modifier NUMERIC,
			lootsplit_auth_role_id TEXT NOT NULL DEFAULT '',
			buyback_percent_modifier NUMERIC
		);
	`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
