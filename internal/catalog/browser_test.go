package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []ScreenState
}

func (r *stateRecorder) record(state ScreenState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.states))
	for _, s := range r.states {
		if len(out) > 0 && out[len(out)-1] == s.Status {
			continue
		}
		out = append(out, s.Status)
	}
	return out
}

func newTestBrowser(t *testing.T, fetcher *fakeFetcher) (*Browser, *Synchronizer, *stateRecorder) {
	t.Helper()
	synchronizer, _ := newTestSynchronizer(t, fetcher)
	browser, err := NewBrowser(BrowserParams{Source: synchronizer})
	require.NoError(t, err)
	t.Cleanup(browser.Close)

	recorder := &stateRecorder{}
	cancel := browser.State().Subscribe(recorder.record)
	t.Cleanup(cancel)
	return browser, synchronizer, recorder
}

func TestBrowserColdStartLoadsThenReady(t *testing.T) {
	fetcher := &fakeFetcher{products: []remote.ProductDTO{dto("a", "A", "1", nil)}}
	browser, _, recorder := newTestBrowser(t, fetcher)

	require.NoError(t, browser.Start(context.Background()))

	state := browser.State().Get()
	assert.Equal(t, StatusReady, state.Status)
	assert.Len(t, state.Products, 1)
	assert.NoError(t, state.Err)
	assert.Equal(t, []Status{StatusLoading, StatusReady}, recorder.statuses())
}

func TestBrowserColdStartFailureShowsErrorThenRetry(t *testing.T) {
	failure := pkgerrors.New(pkgerrors.CodeNetwork, "offline")
	fetcher := &fakeFetcher{err: failure}
	browser, _, recorder := newTestBrowser(t, fetcher)
	ctx := context.Background()

	err := browser.Start(ctx)
	require.ErrorIs(t, err, failure)
	state := browser.State().Get()
	assert.Equal(t, StatusError, state.Status)
	assert.ErrorIs(t, state.Err, failure)
	assert.Empty(t, state.Products)

	fetcher.set([]remote.ProductDTO{dto("a", "A", "1", nil)}, nil)
	require.NoError(t, browser.Retry(ctx))
	state = browser.State().Get()
	assert.Equal(t, StatusReady, state.Status)
	assert.Nil(t, state.Err)
	assert.Equal(t, []Status{StatusLoading, StatusError, StatusLoading, StatusReady}, recorder.statuses())
}

func TestBrowserWarmStartShowsCacheAndRefreshesInBackground(t *testing.T) {
	fetcher := &fakeFetcher{products: []remote.ProductDTO{dto("a", "A", "1", nil)}}
	browser, synchronizer, recorder := newTestBrowser(t, fetcher)
	ctx := context.Background()
	_, err := synchronizer.Sync(ctx)
	require.NoError(t, err)

	fetcher.set([]remote.ProductDTO{dto("a", "A", "1", nil), dto("b", "B", "2", nil)}, nil)
	fetcher.block = make(chan struct{})

	require.NoError(t, browser.Start(ctx))
	state := browser.State().Get()
	assert.Equal(t, StatusReady, state.Status)
	assert.Len(t, state.Products, 1, "cached catalog shows before the refresh lands")

	close(fetcher.block)
	browser.Wait()

	require.Eventually(t, func() bool {
		return len(browser.State().Get().Products) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []Status{StatusLoading, StatusReady}, recorder.statuses())
}

func TestBrowserBackgroundFailureKeepsReadyState(t *testing.T) {
	fetcher := &fakeFetcher{products: []remote.ProductDTO{dto("a", "A", "1", nil)}}
	browser, synchronizer, _ := newTestBrowser(t, fetcher)
	ctx := context.Background()
	_, err := synchronizer.Sync(ctx)
	require.NoError(t, err)

	fetcher.set(nil, pkgerrors.New(pkgerrors.CodeNetwork, "offline"))
	require.NoError(t, browser.Start(ctx))
	browser.Wait()

	state := browser.State().Get()
	assert.Equal(t, StatusReady, state.Status)
	assert.Len(t, state.Products, 1)
	assert.Nil(t, state.Err)
}

func TestNewBrowserRequiresSource(t *testing.T) {
	_, err := NewBrowser(BrowserParams{})
	require.Error(t, err)
}
