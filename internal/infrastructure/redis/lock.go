package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lua script for safe lock release (only owner can release)
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

const defaultRetryDelay = 50 * time.Millisecond

// DistributedLock represents a distributed lock using Redis
type DistributedLock struct {
	client   *redis.Client
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// TryAcquire attempts to acquire the lock once
func (l *DistributedLock) TryAcquire(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = success
	return success, nil
}

// AcquireWithin polls until the lock is taken, ctx is done or wait elapses.
func (l *DistributedLock) AcquireWithin(ctx context.Context, wait, retryDelay time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		acquired, err := l.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", domainErrors.ErrLockAcquisitionFailed, l.key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	val, ok := result.(int64)
	if !ok || val == 0 {
		return domainErrors.ErrLockNotHeld
	}

	l.acquired = false
	return nil
}

// LockManager hands out per-key locks. Holders keep a lock at most ttl;
// waiters give up after wait.
type LockManager struct {
	client     *redis.Client
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	logger     zerolog.Logger
}

func NewLockManager(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *LockManager {
	return &LockManager{
		client:     client,
		ttl:        ttl,
		wait:       ttl,
		retryDelay: defaultRetryDelay,
		logger:     logger.With().Str("component", "lock").Logger(),
	}
}

// Acquire blocks until key is held by this caller.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	lock := NewDistributedLock(m.client, key, m.ttl)
	if err := lock.AcquireWithin(ctx, m.wait, m.retryDelay); err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		if err := lock.Release(ctx); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}, nil
}
