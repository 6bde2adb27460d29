// Package file implements the default lock backend: one lock file per mutex
// name inside a directory, created with O_EXCL so creation itself is the
// atomic acquire. A lock file older than the TTL is treated as abandoned by
// a crashed process and stolen.
//
// File locks exclude processes on the same machine only. Requesting
// single-server guarantees against this backend is a configuration error;
// see the scheduler's OnOneServer.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// DefaultTTL is how long a lock file may exist before it is considered
// abandoned. Mirrors the one-day expiry conventional for schedule mutexes.
const DefaultTTL = 24 * time.Hour

// Option configures the Backend.
type Option func(*Backend)

// WithTTL overrides the stale-lock expiry.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) { b.ttl = d }
}

// Backend stores locks as files under a directory.
type Backend struct {
	dir string
	ttl time.Duration

	// owned tracks names this process acquired, so Release never removes
	// a lock file created by someone else.
	mu    sync.Mutex
	owned map[string]struct{}
}

// New creates a file lock backend rooted at dir. The directory is created
// on first acquire if missing.
func New(dir string, opts ...Option) *Backend {
	b := &Backend{
		dir:   dir,
		ttl:   DefaultTTL,
		owned: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire creates the lock file for name. An existing file younger than the
// TTL means the lock is held elsewhere.
func (b *Backend) Acquire(_ context.Context, name string) (bool, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return false, fmt.Errorf("schedule/file: create lock dir: %w", err)
	}

	path := b.path(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		stale, serr := b.isStale(path)
		if serr != nil || !stale {
			return false, serr
		}
		// Abandoned lock; remove and retry once.
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return false, fmt.Errorf("schedule/file: remove stale lock: %w", rerr)
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			return false, nil // lost the race
		}
	}
	if err != nil {
		return false, fmt.Errorf("schedule/file: create lock: %w", err)
	}

	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := f.Close(); cerr != nil {
		return false, fmt.Errorf("schedule/file: close lock: %w", cerr)
	}

	b.mu.Lock()
	b.owned[name] = struct{}{}
	b.mu.Unlock()
	return true, nil
}

// Release removes the lock file if this process owns it. Unowned and
// already-released names are a no-op.
func (b *Backend) Release(_ context.Context, name string) error {
	b.mu.Lock()
	_, ours := b.owned[name]
	delete(b.owned, name)
	b.mu.Unlock()
	if !ours {
		return nil
	}

	if err := os.Remove(b.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("schedule/file: release lock: %w", err)
	}
	return nil
}

func (b *Backend) path(name string) string {
	return filepath.Join(b.dir, name+".lock")
}

func (b *Backend) isStale(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("schedule/file: stat lock: %w", err)
	}
	return b.ttl > 0 && time.Since(info.ModTime()) >= b.ttl, nil
}
