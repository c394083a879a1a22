package catalog

import (
	"strings"

	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

// Filter narrows a live product list by a free-text query and an optional
// category. Results recompute whenever the products, the query or the
// category change.
type Filter struct {
	query    *stream.Value[string]
	category *stream.Value[string]
	results  stream.Source[[]Product]
	stop     func()
}

// NewFilter builds a filter over products with a blank query and no category.
func NewFilter(products stream.Source[[]Product]) *Filter {
	f := &Filter{
		query:    stream.NewValue(""),
		category: stream.NewValue(""),
	}
	f.results, f.stop = stream.Combine3[[]Product, string, string](
		products, f.query, f.category, Apply, stream.WithCopy(cloneProducts),
	)
	return f
}

// SetQuery replaces the search text.
func (f *Filter) SetQuery(query string) {
	f.query.Set(query)
}

// SetCategory selects a category; "" selects all.
func (f *Filter) SetCategory(category string) {
	f.category.Set(category)
}

// Query returns the current search text.
func (f *Filter) Query() string { return f.query.Get() }

// Category returns the selected category; "" means all.
func (f *Filter) Category() string { return f.category.Get() }

// Results returns the live filtered list.
func (f *Filter) Results() stream.Source[[]Product] {
	return f.results
}

// Close detaches the filter from its inputs.
func (f *Filter) Close() {
	f.stop()
}

// Match reports whether p passes the query and category predicates. A blank
// query matches everything; otherwise the name or description must contain
// it, ignoring case. An empty category matches everything; otherwise it must
// equal the product's category, ignoring case.
func Match(p Product, query, category string) bool {
	if strings.TrimSpace(query) != "" {
		needle := strings.ToLower(query)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	if category != "" && !strings.EqualFold(p.Category, category) {
		return false
	}
	return true
}

// Apply keeps the products that Match, preserving order.
func Apply(products []Product, query, category string) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if Match(p, query, category) {
			out = append(out, p)
		}
	}
	return out
}
