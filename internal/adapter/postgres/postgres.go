// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, username TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS auth_sessions (token TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires_at ON auth_sessions(expires_at);",
		"CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id);",

		"CREATE TABLE IF NOT EXISTS wallets (owner_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE, balance_cents BIGINT NOT NULL DEFAULT 0 CHECK(balance_cents >= 0));",
		"CREATE TABLE IF NOT EXISTS transactions (id BIGSERIAL PRIMARY KEY, session_id TEXT NOT NULL, owner_id BIGINT NOT NULL REFERENCES users(id), kind TEXT NOT NULL CHECK(kind IN ('stake','payout')), amount_cents BIGINT NOT NULL, created_at TIMESTAMPTZ NOT NULL, UNIQUE(session_id, kind));",
		"CREATE INDEX IF NOT EXISTS idx_transactions_owner_id ON transactions(owner_id, created_at DESC);",

		"CREATE TABLE IF NOT EXISTS game_sessions (id TEXT PRIMARY KEY, owner_id BIGINT NOT NULL REFERENCES users(id), stake_cents BIGINT NOT NULL, theme TEXT NOT NULL, layout TEXT NOT NULL, moves_budget INT NOT NULL, time_budget_seconds INT NOT NULL, status TEXT NOT NULL CHECK(status IN ('active','won','lost','expired','invalidated')), reveal_a INT NOT NULL DEFAULT -1, reveal_b INT NOT NULL DEFAULT -1, matched BIGINT NOT NULL DEFAULT 0, matched_pairs INT NOT NULL DEFAULT 0, moves_used INT NOT NULL DEFAULT 0, locked_until TIMESTAMPTZ NOT NULL DEFAULT 'epoch', win_cents BIGINT NOT NULL DEFAULT 0, settled BOOLEAN NOT NULL DEFAULT FALSE, version BIGINT NOT NULL DEFAULT 1, created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL);",
		// One active session per owner, enforced at the storage layer so the
		// guarantee holds across server processes.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_game_sessions_one_active ON game_sessions(owner_id) WHERE status = 'active';",
		"CREATE INDEX IF NOT EXISTS idx_game_sessions_active_deadline ON game_sessions(created_at) WHERE status = 'active';",

		"CREATE TABLE IF NOT EXISTS moves (id BIGSERIAL PRIMARY KEY, session_id TEXT NOT NULL REFERENCES game_sessions(id), position INT NOT NULL, source TEXT NOT NULL, client_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_moves_session_id ON moves(session_id, id);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
