// Package database provides PostgreSQL connection management using pgx for
// the draft save outcome journal.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// The journal sees one insert per autosave; a small pool is plenty.
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		logger.Warn("db connect attempt failed",
			"attempt", attempt,
			"of", connectAttempts,
			"error", err,
		)
		if attempt < connectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

const schema = `
CREATE TABLE IF NOT EXISTS draft_save_outcomes (
	id             UUID PRIMARY KEY,
	user_id        INTEGER     NOT NULL,
	outcome        TEXT        NOT NULL,
	draft_id       TEXT        NOT NULL DEFAULT '',
	failed_uploads TEXT[]      NOT NULL DEFAULT '{}',
	reason         TEXT        NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS draft_save_outcomes_user_created
	ON draft_save_outcomes (user_id, created_at DESC);
`

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
