package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-shopper/pkg/redis"
)

const defaultLockTTL = 30 * time.Minute

// Lock coordinates exclusive runs of a named job.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

// LocalLock is a process-local Lock.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLock returns an unlocked LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]struct{})}
}

func (l *LocalLock) Acquire(_ context.Context, job string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[job]; ok {
		return false, nil
	}
	l.held[job] = struct{}{}
	return true, nil
}

func (l *LocalLock) Release(_ context.Context, job string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, job)
	return nil
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(parts ...string) string
}

// RedisLock implements Lock using Redis SETNX + TTL so only one host process
// runs a given job at a time.
type RedisLock struct {
	client redisStore
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, ttl: ttl, owners: make(map[string]string)}, nil
}

// Acquire tries to own the job lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.client.LockKey(job), owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owners[job] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the job lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	owner := l.owners[job]
	l.mu.Unlock()
	if owner == "" {
		return nil
	}

	key := l.client.LockKey(job)
	value, err := l.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.forget(job)
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		l.forget(job)
		return nil
	}
	if err := l.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.forget(job)
	return nil
}

func (l *RedisLock) forget(job string) {
	l.mu.Lock()
	delete(l.owners, job)
	l.mu.Unlock()
}
