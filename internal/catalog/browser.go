package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

// Status is the catalog screen phase.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// ScreenState is what the catalog screen renders. Exactly one of the three
// phases holds at a time: Products is set only when ready, Err only on error.
type ScreenState struct {
	Status   Status
	Products []Product
	Err      error
}

func loadingState() ScreenState { return ScreenState{Status: StatusLoading} }

func readyState(products []Product) ScreenState {
	return ScreenState{Status: StatusReady, Products: cloneProducts(products)}
}

func errorState(err error) ScreenState { return ScreenState{Status: StatusError, Err: err} }

func cloneState(s ScreenState) ScreenState {
	s.Products = cloneProducts(s.Products)
	return s
}

type browserSource interface {
	Products() stream.Source[[]Product]
	HasLocalCopy(ctx context.Context) (bool, error)
	Sync(ctx context.Context) ([]Product, error)
}

// BrowserParams configure the catalog screen controller.
type BrowserParams struct {
	Source browserSource
	Logger *logger.Logger
}

// Browser drives the catalog screen: show the cached catalog right away when
// there is one and refresh it in the background, otherwise block on a first
// sync.
type Browser struct {
	source browserSource
	logg   *logger.Logger
	state  *stream.Value[ScreenState]

	background errgroup.Group

	mu           sync.Mutex
	stopProducts func()
}

// NewBrowser builds a browser in the loading state.
func NewBrowser(params BrowserParams) (*Browser, error) {
	if params.Source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	b := &Browser{
		source: params.Source,
		logg:   logg,
		state:  stream.NewValue(loadingState(), stream.WithCopy(cloneState)),
	}
	b.background.SetLimit(1)
	return b, nil
}

// State returns the live screen state.
func (b *Browser) State() stream.Source[ScreenState] {
	return b.state
}

// Start decides the startup path. It blocks only when there is no local copy.
func (b *Browser) Start(ctx context.Context) error {
	b.follow()

	hasLocal, err := b.source.HasLocalCopy(ctx)
	if err != nil {
		b.state.Set(errorState(err))
		return err
	}
	if !hasLocal {
		return b.syncBlocking(ctx)
	}

	b.state.Set(readyState(b.source.Products().Get()))
	b.syncInBackground(ctx)
	return nil
}

// Retry runs a manual refresh, typically from the error state.
func (b *Browser) Retry(ctx context.Context) error {
	return b.syncBlocking(ctx)
}

// Wait blocks until any background refresh has finished.
func (b *Browser) Wait() {
	_ = b.background.Wait()
}

// Close stops following the product stream and waits for background work.
func (b *Browser) Close() {
	b.mu.Lock()
	stop := b.stopProducts
	b.stopProducts = nil
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
	b.Wait()
}

func (b *Browser) syncBlocking(ctx context.Context) error {
	b.state.Set(loadingState())
	products, err := b.source.Sync(ctx)
	if err != nil {
		b.logg.Error(ctx, "catalog sync failed", err)
		b.state.Set(errorState(err))
		return err
	}
	b.state.Set(readyState(products))
	return nil
}

func (b *Browser) syncInBackground(ctx context.Context) {
	started := b.background.TryGo(func() error {
		if _, err := b.source.Sync(ctx); err != nil {
			// The cached catalog stays on screen.
			b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "background catalog refresh failed")
		}
		return nil
	})
	if !started {
		b.logg.Debug(ctx, "background catalog refresh already running")
	}
}

// follow keeps a ready screen in step with the store.
func (b *Browser) follow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopProducts != nil {
		return
	}
	b.stopProducts = b.source.Products().Subscribe(func(products []Product) {
		b.state.Update(func(current ScreenState) ScreenState {
			if current.Status != StatusReady {
				return current
			}
			return readyState(products)
		})
	})
}
