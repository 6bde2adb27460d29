// Package redis implements a cross-host lock backend on Redis.
//
// Acquire is SET NX with a TTL and a per-backend holder token; Release
// deletes the key only when the token still matches, so one process never
// frees a lock that expired and was re-acquired elsewhere.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	backend := redislock.New(client)
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// keyPrefix namespaces schedule locks inside a shared Redis.
const keyPrefix = "schedule:lock:"

// DefaultTTL bounds how long a lock outlives a crashed holder.
const DefaultTTL = 24 * time.Hour

// Option configures the Backend.
type Option func(*Backend)

// WithTTL overrides the lock expiry.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) { b.ttl = d }
}

// Backend is a Redis-backed lock backend. The caller owns the client
// lifecycle.
type Backend struct {
	client goredis.Cmdable
	holder string
	ttl    time.Duration
}

// New creates a Redis lock backend.
func New(client goredis.Cmdable, opts ...Option) *Backend {
	b := &Backend{
		client: client,
		holder: newHolderToken(),
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CrossHost reports that Redis locks exclude across hosts.
func (b *Backend) CrossHost() bool { return true }

// Acquire takes the named lock with SET NX.
func (b *Backend) Acquire(ctx context.Context, name string) (bool, error) {
	ok, err := b.client.SetNX(ctx, keyPrefix+name, b.holder, b.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("schedule/redis: acquire %q: %w", name, err)
	}
	return ok, nil
}

// Release frees the named lock when this backend still holds it.
func (b *Backend) Release(ctx context.Context, name string) error {
	key := keyPrefix + name
	current, err := b.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil // never acquired or already expired
		}
		return fmt.Errorf("schedule/redis: release get %q: %w", name, err)
	}
	if current != b.holder {
		return nil // held by someone else
	}
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("schedule/redis: release del %q: %w", name, err)
	}
	return nil
}

func newHolderToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
