// Package memory implements an in-process lock backend. It is the natural
// choice for tests and for single-binary deployments where overlapping runs
// can only come from concurrent goroutines.
package memory

import (
	"context"
	"sync"
	"time"
)

// Option configures the Backend.
type Option func(*Backend)

// WithTTL sets how long a held lock survives before it may be stolen.
// Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) { b.ttl = d }
}

// Backend is a map-based lock backend guarded by a mutex.
type Backend struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]time.Time
	clock func() time.Time
}

// New creates an in-process lock backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire takes the named lock unless it is already held and unexpired.
func (b *Backend) Acquire(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	if at, ok := b.held[name]; ok {
		if b.ttl <= 0 || now.Sub(at) < b.ttl {
			return false, nil
		}
		// Expired; steal it.
	}
	b.held[name] = now
	return true, nil
}

// Release frees the named lock. Unheld names are a no-op.
func (b *Backend) Release(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.held, name)
	return nil
}
