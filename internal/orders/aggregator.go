package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-shopper/internal/cart"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

type cartSource interface {
	Items() []cart.Item
	Clear()
}

type orderStore interface {
	submissionStore
	Create(ctx context.Context, order Order) error
	List(ctx context.Context) ([]Order, error)
	DeleteAll(ctx context.Context) error
}

// AggregatorParams configure the order aggregator. Submitter is optional;
// without it orders stay local.
type AggregatorParams struct {
	Cart      cartSource
	Store     orderStore
	Submitter Submitter
	Logger    *logger.Logger
	Now       func() time.Time
	NewID     func() string
}

// Aggregator turns the cart into persisted orders and serves the history.
type Aggregator struct {
	cart     cartSource
	store    orderStore
	logg     *logger.Logger
	now      func() time.Time
	newID    func() string
	dispatch *dispatcher

	confirmMu sync.Mutex
	history   *stream.Value[[]Order]
	inflight  sync.WaitGroup
}

// NewAggregator builds an aggregator with an empty history stream. Call Load
// to prime it from the store.
func NewAggregator(params AggregatorParams) (*Aggregator, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	a := &Aggregator{
		cart:    params.Cart,
		store:   params.Store,
		logg:    logg,
		now:     now,
		newID:   newID,
		history: stream.NewValue([]Order{}, stream.WithCopy(cloneOrders)),
	}
	if params.Submitter != nil {
		a.dispatch = &dispatcher{
			submitter: params.Submitter,
			store:     params.Store,
			logg:      logg,
			now:       now,
		}
	}
	return a, nil
}

// History returns the live order history, newest first.
func (a *Aggregator) History() stream.Source[[]Order] {
	return a.history
}

// Load primes the history stream from the store.
func (a *Aggregator) Load(ctx context.Context) error {
	orders, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	a.history.Set(orders)
	return nil
}

// GetOrders lists the persisted history, newest first.
func (a *Aggregator) GetOrders(ctx context.Context) ([]Order, error) {
	return a.store.List(ctx)
}

// ConfirmOrder converts the current cart into an order. An empty cart creates
// nothing and returns nil. On success the cart is cleared and the history
// stream emits the new order first.
func (a *Aggregator) ConfirmOrder(ctx context.Context) (*Order, error) {
	a.confirmMu.Lock()
	defer a.confirmMu.Unlock()

	items := a.cart.Items()
	if len(items) == 0 {
		return nil, nil
	}

	order := Order{
		ID:       a.newID(),
		Items:    items,
		Total:    cart.Total(items),
		PlacedAt: a.now().UTC(),
		Submission: Submission{
			Status: SubmissionLocal,
		},
	}
	if a.dispatch != nil {
		order.Submission.Status = SubmissionPending
	}

	ctx = a.logg.WithOrderID(ctx, order.ID)
	if err := a.store.Create(ctx, order); err != nil {
		a.logg.Error(ctx, "failed to persist order", err)
		return nil, err
	}
	a.cart.Clear()
	a.history.Update(func(history []Order) []Order {
		return append([]Order{order}, history...)
	})
	a.logg.Info(a.logg.WithFields(ctx, map[string]any{
		"items": len(order.Items),
		"total": order.Total.String(),
	}), "order confirmed")

	if a.dispatch != nil {
		a.submitInBackground(context.WithoutCancel(ctx), order)
	}

	confirmed := cloneOrders([]Order{order})[0]
	return &confirmed, nil
}

// ClearHistory deletes every order. It cannot be undone.
func (a *Aggregator) ClearHistory(ctx context.Context) error {
	if err := a.store.DeleteAll(ctx); err != nil {
		return err
	}
	a.history.Set([]Order{})
	a.logg.Info(ctx, "order history cleared")
	return nil
}

// Wait blocks until background submissions have finished.
func (a *Aggregator) Wait() {
	a.inflight.Wait()
}

func (a *Aggregator) submitInBackground(ctx context.Context, order Order) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		updated, err := a.dispatch.submit(ctx, order)
		if errors.Is(err, errSubmissionClaimed) {
			return
		}
		a.replaceInHistory(updated)
	}()
}

func (a *Aggregator) replaceInHistory(order Order) {
	a.history.Update(func(history []Order) []Order {
		for i := range history {
			if history[i].ID == order.ID {
				history[i] = order
				break
			}
		}
		return history
	})
}
