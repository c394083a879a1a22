package scheduler

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/packfinderz-shopper/pkg/redis"
)

// fakeRedis implements the narrow store interfaces used by RedisLedger and
// RedisLock. TTLs are ignored.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	sets   map[string]map[string]struct{}
	// beforeWrite, when set, runs ahead of every SetXX outside the lock.
	beforeWrite func()
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (f *fakeRedis) SetXX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

// put writes key directly, bypassing the XX/NX guards.
func (f *fakeRedis) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (f *fakeRedis) SRem(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range members {
		delete(f.sets[key], member)
	}
	return nil
}

func (f *fakeRedis) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.sets[key]))
	for member := range f.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (f *fakeRedis) SchedulerKey(parts ...string) string {
	return "pf:scheduler:" + strings.Join(parts, ":")
}

func (f *fakeRedis) LockKey(parts ...string) string {
	return "pf:lock:" + strings.Join(parts, ":")
}

// countingJob returns the next scripted result on every run, then nil.
type countingJob struct {
	name    string
	runs    atomic.Int32
	mu      sync.Mutex
	results []error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.results) == 0 {
		return nil
	}
	next := j.results[0]
	j.results = j.results[1:]
	return next
}

type switchConnectivity struct {
	online atomic.Bool
	checks atomic.Int32
}

func (s *switchConnectivity) Available(context.Context) bool {
	s.checks.Add(1)
	return s.online.Load()
}

// syncBuffer collects log output written from service goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
