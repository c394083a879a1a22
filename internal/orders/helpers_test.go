package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-shopper/internal/catalog"
	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db/dbtest"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(dbtest.NewSQLite(t))
	require.NoError(t, err)
	return repo
}

func testProduct(id, name, price string) catalog.Product {
	return catalog.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		ImageURL:    "https://img/" + id,
		Category:    "Food",
	}
}

// sequentialIDs returns order-1, order-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("order-%d", n)
	}
}

// steppingClock advances one minute per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
}

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []remote.OrderPayload
	err      error
	// gate, when set, holds every call after it is recorded until closed.
	gate chan struct{}
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, payload remote.OrderPayload) (*remote.OrderReceipt, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	err, gate := f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &remote.OrderReceipt{ID: "remote-" + payload.OrderID}, nil
}

func (f *fakeSubmitter) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

var errOffline = errors.New("offline")
