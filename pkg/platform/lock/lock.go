// Package lock provides the mutual-exclusion capability used to serialize
// invoice generation per payment across all processes. Production uses the
// Redis implementation; tests substitute the in-memory one.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrAcquireTimeout signals that the lock was held by someone else for the
// whole bounded wait. Transient: callers retry the triggering job.
var ErrAcquireTimeout = errors.New("lock acquire timeout")

// Lease is proof of lock ownership. Release verifies the token so a lease
// that expired and was re-acquired elsewhere cannot release the new holder.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Locker serializes critical sections across processes.
//
// Acquire blocks with a bounded wait and returns ErrAcquireTimeout when the
// lock cannot be obtained in time. The ttl caps how long a crashed holder
// can wedge the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}
