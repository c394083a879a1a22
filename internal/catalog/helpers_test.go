package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db/dbtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), StoreParams{DB: dbtest.NewSQLite(t)})
	require.NoError(t, err)
	return store
}

func product(id, name, category, price string) Product {
	return Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: category,
	}
}

func dto(id, name, price string, category *string) remote.ProductDTO {
	return remote.ProductDTO{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: category,
	}
}

func strPtr(s string) *string { return &s }

// fakeFetcher serves a scripted payload or error and counts calls.
type fakeFetcher struct {
	mu       sync.Mutex
	products []remote.ProductDTO
	err      error
	calls    atomic.Int32
	block    chan struct{}
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]remote.ProductDTO, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]remote.ProductDTO, len(f.products))
	copy(out, f.products)
	return out, nil
}

func (f *fakeFetcher) set(products []remote.ProductDTO, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = products
	f.err = err
}

func requireSameProducts(t *testing.T, want, got []Product) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.True(t, want[i].Equal(got[i]), "product %d: want %+v got %+v", i, want[i], got[i])
	}
}
