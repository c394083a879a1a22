package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is one scheduled periodic job.
type Entry struct {
	Name            string        `json:"name"`
	Interval        time.Duration `json:"interval"`
	RequiresNetwork bool          `json:"requires_network"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	LastRunAt       *time.Time    `json:"last_run_at,omitempty"`
}

// nextDelay returns how long to wait before the first run after a restore.
func (e Entry) nextDelay(now time.Time) time.Duration {
	if e.LastRunAt == nil {
		return 0
	}
	due := e.LastRunAt.Add(e.Interval)
	if !due.After(now) {
		return 0
	}
	return due.Sub(now)
}

// Ledger persists the set of scheduled jobs. Claim is the dedup point: only
// the first claim for a name succeeds until the name is removed.
type Ledger interface {
	Claim(ctx context.Context, entry Entry) (bool, error)
	Get(ctx context.Context, name string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	MarkRun(ctx context.Context, name string, at time.Time) error
	Remove(ctx context.Context, name string) error
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]Entry)}
}

func (l *MemoryLedger) Claim(_ context.Context, entry Entry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[entry.Name]; ok {
		return false, nil
	}
	l.entries[entry.Name] = entry
	return true, nil
}

func (l *MemoryLedger) Get(_ context.Context, name string) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[name]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (l *MemoryLedger) List(context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (l *MemoryLedger) MarkRun(_ context.Context, name string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[name]
	if !ok {
		return nil
	}
	entry.LastRunAt = &at
	l.entries[name] = entry
	return nil
}

func (l *MemoryLedger) Remove(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, name)
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
