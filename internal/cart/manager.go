package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-shopper/internal/catalog"
	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

// Item is one cart line. The product is a value snapshot taken when it was
// first added; Quantity is always at least 1.
type Item struct {
	Product  catalog.Product
	Quantity int
}

// Subtotal is price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals summarizes a cart snapshot.
type Totals struct {
	Total decimal.Decimal
	Count int
}

// Summarize computes the totals of items.
func Summarize(items []Item) Totals {
	totals := Totals{Total: decimal.Zero}
	for _, item := range items {
		totals.Total = totals.Total.Add(item.Subtotal())
		totals.Count += item.Quantity
	}
	return totals
}

// Total is the sum of price times quantity over items.
func Total(items []Item) decimal.Decimal {
	return Summarize(items).Total
}

func cloneItems(items []Item) []Item {
	return stream.CopySlice(items)
}

// Manager holds the in-memory cart. Every mutation publishes a fresh snapshot
// and the totals are derived from those snapshots, so they never drift.
// Mutations are serialized and safe from any goroutine.
type Manager struct {
	items      *stream.Value[[]Item]
	totals     stream.Source[Totals]
	stopTotals func()
}

// NewManager returns an empty cart.
func NewManager() *Manager {
	items := stream.NewValue([]Item{}, stream.WithCopy(cloneItems))
	totals, stop := stream.Map[[]Item](items, Summarize)
	return &Manager{items: items, totals: totals, stopTotals: stop}
}

// Items returns a copy of the current lines in insertion order.
func (m *Manager) Items() []Item {
	return m.items.Get()
}

// Snapshot returns the live cart contents.
func (m *Manager) Snapshot() stream.Source[[]Item] {
	return m.items
}

// Totals returns the live cart totals.
func (m *Manager) Totals() stream.Source[Totals] {
	return m.totals
}

// Add increments the line for p, creating it with quantity 1 when absent.
func (m *Manager) Add(p catalog.Product) {
	m.items.Update(func(items []Item) []Item {
		if i := indexOf(items, p.ID); i >= 0 {
			items[i].Quantity++
			return items
		}
		return append(items, Item{Product: p, Quantity: 1})
	})
}

// Remove drops the line for p. Removing an absent product is a no-op.
func (m *Manager) Remove(p catalog.Product) {
	m.items.Update(func(items []Item) []Item {
		if i := indexOf(items, p.ID); i >= 0 {
			return append(items[:i], items[i+1:]...)
		}
		return items
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line; an absent product is left absent.
func (m *Manager) UpdateQuantity(p catalog.Product, quantity int) {
	m.items.Update(func(items []Item) []Item {
		i := indexOf(items, p.ID)
		if i < 0 {
			return items
		}
		if quantity <= 0 {
			return append(items[:i], items[i+1:]...)
		}
		items[i].Quantity = quantity
		return items
	})
}

// Clear empties the cart.
func (m *Manager) Clear() {
	m.items.Set([]Item{})
}

// Close detaches the derived totals.
func (m *Manager) Close() {
	m.stopTotals()
}

func indexOf(items []Item, productID string) int {
	for i, item := range items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}
