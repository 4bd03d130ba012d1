package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory is a process-local Locker for tests and single-instance setups.
// The ttl argument is accepted but not enforced; a lease lives until
// released or the process exits.
type InMemory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewInMemory creates an in-process locker with the given bounded wait.
func NewInMemory(wait time.Duration) *InMemory {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &InMemory{
		slots: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *InMemory) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire takes the per-key slot or fails with ErrAcquireTimeout after the
// bounded wait.
func (l *InMemory) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	ch := l.slot(key)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return &Lease{
			Key:       key,
			Token:     uuid.NewString(),
			ExpiresAt: time.Now().Add(ttl),
		}, nil
	case <-timer.C:
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release frees the per-key slot. Double release is a no-op.
func (l *InMemory) Release(_ context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	ch := l.slot(lease.Key)
	select {
	case <-ch:
	default:
	}
	return nil
}
