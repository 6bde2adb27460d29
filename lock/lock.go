// Package lock defines the mutual-exclusion contract used to prevent
// overlapping runs of the same logical event.
//
// The scheduler core never implements locking itself; it derives a stable
// mutex name per event and calls Acquire/Release on an injected Backend.
// Acquire is optimistic: a contended lock answers false immediately and the
// caller skips the run instead of waiting.
//
// Backends that can exclude across hosts (lock/redis, lock/postgres)
// advertise it through CrossHoster; host-local backends (lock/file,
// lock/memory) do not.
package lock

import "context"

// Backend is the mutual-exclusion primitive behind overlap prevention.
//
// Implementations must be safe for concurrent use by independent processes
// sharing the same backing store when cross-host exclusion is claimed.
type Backend interface {
	// Acquire attempts to take the named lock without blocking.
	// It returns true when the lock was obtained and the caller may
	// proceed, false when it is held elsewhere.
	Acquire(ctx context.Context, name string) (bool, error)

	// Release frees the named lock. Releasing a lock that was never
	// acquired, or that is held by another owner, is a no-op.
	Release(ctx context.Context, name string) error
}

// CrossHoster is implemented by backends whose exclusion spans hosts.
type CrossHoster interface {
	// CrossHost reports whether two processes on different machines
	// sharing this backend exclude each other.
	CrossHost() bool
}

// CrossHost reports whether b provides cross-host exclusion.
func CrossHost(b Backend) bool {
	c, ok := b.(CrossHoster)
	return ok && c.CrossHost()
}
