// Package database owns the PostgreSQL connection pool and schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/mentorpath-service/config"
)

// schema is applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
);

CREATE TABLE IF NOT EXISTS users (
	uid              TEXT PRIMARY KEY,
	email            TEXT        NOT NULL,
	display_name     TEXT        NOT NULL DEFAULT '',
	password_hash    TEXT        NOT NULL DEFAULT '',
	provider         TEXT        NOT NULL DEFAULT 'password',
	provider_subject TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_login       TIMESTAMPTZ,
	UNIQUE (provider, provider_subject)
);

CREATE UNIQUE INDEX IF NOT EXISTS users_password_email_idx
	ON users (lower(email)) WHERE provider = 'password';

CREATE TABLE IF NOT EXISTS identity_tokens (
	token_id   TEXT PRIMARY KEY,
	uid        TEXT        NOT NULL REFERENCES users (uid) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Connect opens a pgx pool, verifies it with a ping and applies the schema.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return pool, nil
}
