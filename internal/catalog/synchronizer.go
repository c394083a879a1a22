package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/packfinderz-shopper/internal/remote"
	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
	"github.com/angelmondragon/packfinderz-shopper/pkg/metrics"
	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

const (
	syncFlightKey      = "catalog"
	defaultSyncTimeout = 2 * time.Minute
)

// Fetcher downloads the full remote catalog.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]remote.ProductDTO, error)
}

type productStore interface {
	GetAll() stream.Source[[]Product]
	GetByID(ctx context.Context, id string) (*Product, error)
	Count(ctx context.Context) (int64, error)
	ReplaceAll(ctx context.Context, products []Product) error
}

// SynchronizerParams configure the catalog synchronizer.
type SynchronizerParams struct {
	Store   productStore
	Fetcher Fetcher
	Logger  *logger.Logger
	Metrics *metrics.CatalogMetrics
	Now     func() time.Time
	// Timeout bounds one shared sync regardless of which caller started it.
	Timeout time.Duration
}

// Synchronizer keeps the local store consistent with the remote catalog.
type Synchronizer struct {
	store   productStore
	fetcher Fetcher
	logg    *logger.Logger
	metrics *metrics.CatalogMetrics
	now     func() time.Time
	timeout time.Duration
	flight  singleflight.Group

	mu      sync.Mutex
	current *syncFlight
}

// syncFlight is the context shared by every caller of one in-flight sync.
// It is canceled only when the last waiting caller gives up.
type syncFlight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewSynchronizer wires a synchronizer over store and fetcher.
func NewSynchronizer(params SynchronizerParams) (*Synchronizer, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("catalog fetcher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	return &Synchronizer{
		store:   params.Store,
		fetcher: params.Fetcher,
		logg:    logg,
		metrics: params.Metrics,
		now:     now,
		timeout: timeout,
	}, nil
}

// Products returns the live local catalog.
func (s *Synchronizer) Products() stream.Source[[]Product] {
	return s.store.GetAll()
}

// GetByID reads one product from the local copy.
func (s *Synchronizer) GetByID(ctx context.Context, id string) (*Product, error) {
	return s.store.GetByID(ctx, id)
}

// HasLocalCopy reports whether the store holds at least one product.
func (s *Synchronizer) HasLocalCopy(ctx context.Context) (bool, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Sync fetches the remote catalog and replaces the local copy with it.
// Concurrent callers share a single in-flight sync that outlives any one of
// them; a caller whose ctx ends stops waiting without failing the others, and
// the sync is abandoned only once every caller has left. Fetch errors are
// returned unchanged and leave the store untouched.
func (s *Synchronizer) Sync(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, canceledSync(err)
	}

	f := s.join(ctx)
	defer s.leave(f)

	results := s.flight.DoChan(syncFlightKey, func() (any, error) {
		defer s.retire(f)
		return s.sync(f.ctx)
	})

	select {
	case res := <-results:
		if res.Shared {
			s.logg.Debug(ctx, "joined in-flight catalog sync")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneProducts(res.Val.([]Product)), nil
	case <-ctx.Done():
		s.logg.Debug(ctx, "stopped waiting for catalog sync")
		return nil, canceledSync(ctx.Err())
	}
}

func (s *Synchronizer) join(ctx context.Context) *syncFlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		s.current = &syncFlight{ctx: flightCtx, cancel: cancel}
	}
	s.current.waiters++
	return s.current
}

func (s *Synchronizer) leave(f *syncFlight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.current == f {
		s.current = nil
	}
}

// retire stops new callers from joining a flight whose work has finished.
func (s *Synchronizer) retire(f *syncFlight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == f {
		s.current = nil
	}
}

func canceledSync(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "catalog sync canceled")
}

// Refresh is the user-initiated form of Sync.
func (s *Synchronizer) Refresh(ctx context.Context) ([]Product, error) {
	return s.Sync(ctx)
}

func (s *Synchronizer) sync(ctx context.Context) ([]Product, error) {
	start := s.now()
	ctx = s.logg.WithField(ctx, "event", "catalog.sync")

	dtos, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		s.metrics.ObserveSync(syncResult(err))
		s.logg.Error(ctx, "catalog fetch failed", err)
		return nil, err
	}

	products := s.dedupe(ctx, dtos)

	// An abandoned sync applies nothing.
	if err := ctx.Err(); err != nil {
		return nil, canceledSync(err)
	}

	if err := s.store.ReplaceAll(ctx, products); err != nil {
		s.metrics.ObserveSync(metrics.SyncResultStore)
		return nil, err
	}

	finished := s.now()
	s.metrics.ObserveSync(metrics.SyncResultSuccess)
	s.metrics.MarkSynced(finished, len(products))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"products":    len(products),
		"duration_ms": finished.Sub(start).Milliseconds(),
	}), "catalog sync complete")
	return products, nil
}

// dedupe maps the payload, keeping the first occurrence of any repeated id.
func (s *Synchronizer) dedupe(ctx context.Context, dtos []remote.ProductDTO) []Product {
	seen := make(map[string]struct{}, len(dtos))
	products := make([]Product, 0, len(dtos))
	for _, dto := range dtos {
		if _, ok := seen[dto.ID]; ok {
			s.logg.Warn(s.logg.WithProductID(ctx, dto.ID), "duplicate product id in catalog payload; keeping first")
			continue
		}
		seen[dto.ID] = struct{}{}
		products = append(products, FromDTO(dto))
	}
	return products
}

func syncResult(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNetwork):
		return metrics.SyncResultNetwork
	case pkgerrors.IsCode(err, pkgerrors.CodeDecode):
		return metrics.SyncResultDecode
	default:
		return metrics.SyncResultStore
	}
}
