package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefix for generation locks.
const lockKeyPrefix = "invgen:lock:"

// releaseScript deletes the key only when the stored token matches the
// lease token, so an expired lease never releases a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var errLockHeld = errors.New("lock held")

// RedisLocker is a Redis-backed Locker. This is the production
// implementation for distributed deployments where multiple workers may
// receive the same generation trigger.
type RedisLocker struct {
	client *redis.Client
	wait   time.Duration
}

// RedisLockerOption configures a RedisLocker instance.
type RedisLockerOption func(*RedisLocker)

// WithAcquireWait bounds how long Acquire keeps retrying before giving up
// with ErrAcquireTimeout.
func WithAcquireWait(wait time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if wait > 0 {
			l.wait = wait
		}
	}
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		wait:   5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Acquire takes the lock via SET NX PX, retrying with exponential backoff
// until the bounded wait elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	redisKey := lockKeyPrefix + key

	attempt := func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("setnx %s: %w", redisKey, err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 25 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = l.wait

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, ErrAcquireTimeout
		}
		return nil, err
	}

	return &Lease{
		Key:       key,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Release frees the lock if the lease token still owns it. Releasing an
// expired or foreign lease is a no-op, not an error.
func (l *RedisLocker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + lease.Key}, lease.Token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", lease.Key, err)
	}
	return nil
}
