package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-shopper/pkg/redis"
)

type ledgerStore interface {
	SetXX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SchedulerKey(parts ...string) string
}

// RedisLedger keeps scheduled jobs in Redis so dedup and restore survive
// process restarts. Each entry lives at pf:scheduler:job:<name> and the names
// are indexed in pf:scheduler:jobs.
type RedisLedger struct {
	client ledgerStore
}

// NewRedisLedger constructs a Redis-backed ledger.
func NewRedisLedger(client ledgerStore) (*RedisLedger, error) {
	if client == nil {
		return nil, errors.New("redis client required for ledger")
	}
	return &RedisLedger{client: client}, nil
}

func (l *RedisLedger) entryKey(name string) string {
	return l.client.SchedulerKey("job", name)
}

func (l *RedisLedger) indexKey() string {
	return l.client.SchedulerKey("jobs")
}

// Claim stores entry unless a job with the same name already exists.
func (l *RedisLedger) Claim(ctx context.Context, entry Entry) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode ledger entry: %w", err)
	}
	ok, err := l.client.SetNX(ctx, l.entryKey(entry.Name), string(payload), 0)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := l.client.SAdd(ctx, l.indexKey(), entry.Name); err != nil {
		return false, fmt.Errorf("index ledger entry: %w", err)
	}
	return true, nil
}

func (l *RedisLedger) Get(ctx context.Context, name string) (*Entry, error) {
	raw, err := l.client.Get(ctx, l.entryKey(name))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode ledger entry %q: %w", name, err)
	}
	return &entry, nil
}

func (l *RedisLedger) List(ctx context.Context) ([]Entry, error) {
	names, err := l.client.SMembers(ctx, l.indexKey())
	if err != nil {
		return nil, fmt.Errorf("list ledger index: %w", err)
	}
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entry, err := l.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			// Index outlived its entry.
			continue
		}
		entries = append(entries, *entry)
	}
	sortEntries(entries)
	return entries, nil
}

// MarkRun records the last run time. It never recreates an entry removed
// since it was read.
func (l *RedisLedger) MarkRun(ctx context.Context, name string, at time.Time) error {
	entry, err := l.Get(ctx, name)
	if err != nil || entry == nil {
		return err
	}
	entry.LastRunAt = &at
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	if _, err := l.client.SetXX(ctx, l.entryKey(name), string(payload), 0); err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	return nil
}

func (l *RedisLedger) Remove(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, l.entryKey(name)); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	if err := l.client.SRem(ctx, l.indexKey(), name); err != nil {
		return fmt.Errorf("unindex ledger entry: %w", err)
	}
	return nil
}
