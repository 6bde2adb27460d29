// Package postgres implements a cross-host lock backend on PostgreSQL.
//
// Locks live in a single table keyed by mutex name with a holder token and
// an expiry. Acquire is one INSERT ... ON CONFLICT statement that also
// steals expired rows, so contention resolves inside the database without
// advisory-lock session pinning.
package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTTL bounds how long a lock outlives a crashed holder.
const DefaultTTL = 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS schedule_locks (
	name         TEXT PRIMARY KEY,
	holder       TEXT NOT NULL,
	locked_until TIMESTAMPTZ NOT NULL
)`

const acquireSQL = `
INSERT INTO schedule_locks (name, holder, locked_until)
VALUES ($1, $2, now() + $3)
ON CONFLICT (name) DO UPDATE
	SET holder = EXCLUDED.holder, locked_until = EXCLUDED.locked_until
	WHERE schedule_locks.locked_until < now()`

const releaseSQL = `DELETE FROM schedule_locks WHERE name = $1 AND holder = $2`

// Option configures the Backend.
type Option func(*Backend)

// WithTTL overrides the lock expiry.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) { b.ttl = d }
}

// Backend is a PostgreSQL-backed lock backend. The caller owns the pool
// lifecycle.
type Backend struct {
	pool   *pgxpool.Pool
	holder string
	ttl    time.Duration
}

// New creates a PostgreSQL lock backend.
func New(pool *pgxpool.Pool, opts ...Option) *Backend {
	b := &Backend{
		pool:   pool,
		holder: newHolderToken(),
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Migrate creates the lock table.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schedule/postgres: migrate: %w", err)
	}
	return nil
}

// CrossHost reports that PostgreSQL locks exclude across hosts.
func (b *Backend) CrossHost() bool { return true }

// Acquire inserts the lock row, stealing it only when the previous holder
// expired.
func (b *Backend) Acquire(ctx context.Context, name string) (bool, error) {
	tag, err := b.pool.Exec(ctx, acquireSQL, name, b.holder, b.ttl)
	if err != nil {
		return false, fmt.Errorf("schedule/postgres: acquire %q: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Release deletes the lock row when this backend still holds it.
func (b *Backend) Release(ctx context.Context, name string) error {
	if _, err := b.pool.Exec(ctx, releaseSQL, name, b.holder); err != nil {
		return fmt.Errorf("schedule/postgres: release %q: %w", name, err)
	}
	return nil
}

func newHolderToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
