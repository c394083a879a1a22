// Package stream provides in-process observable values: a last-known value
// plus an ordered list of subscribers that all receive the same emissions.
//
// Delivery is synchronous and serialized per Value. A subscriber callback may
// read any Value but must not publish to the Value it is observing, directly
// or through a derived chain, or delivery deadlocks.
package stream

import (
	"slices"
	"sync"
)

// Source is a read-only view of a value that changes over time.
type Source[T any] interface {
	// Get returns the latest emitted value.
	Get() T
	// Subscribe registers fn, immediately calls it with the current value and
	// then with every later emission. The returned func stops delivery.
	Subscribe(fn func(T)) (cancel func())
}

// Option configures a Value.
type Option[T any] func(*Value[T])

// WithCopy makes every reader receive clone(v) instead of the stored value so
// subscribers cannot mutate each other's view.
func WithCopy[T any](clone func(T) T) Option[T] {
	return func(v *Value[T]) {
		v.clone = clone
	}
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Value is a mutable observable value.
type Value[T any] struct {
	emit sync.Mutex

	mu      sync.Mutex
	current T
	subs    []subscriber[T]
	nextID  uint64
	clone   func(T) T
}

// NewValue builds a Value seeded with initial.
func NewValue[T any](initial T, opts ...Option[T]) *Value[T] {
	v := &Value[T]{current: initial}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.read(v.current)
}

// Set stores next and delivers it to every subscriber in subscription order.
func (v *Value[T]) Set(next T) {
	v.emit.Lock()
	defer v.emit.Unlock()
	v.publish(next)
}

// Update applies fn to the current value and emits the result atomically
// with respect to other Set and Update calls.
func (v *Value[T]) Update(fn func(T) T) T {
	v.emit.Lock()
	defer v.emit.Unlock()

	v.mu.Lock()
	next := fn(v.read(v.current))
	v.mu.Unlock()

	v.publish(next)
	return v.read(next)
}

func (v *Value[T]) publish(next T) {
	v.mu.Lock()
	v.current = next
	subs := slices.Clone(v.subs)
	v.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v.read(next))
	}
}

// Subscribe implements Source.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.emit.Lock()
	defer v.emit.Unlock()

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})
	current := v.current
	v.mu.Unlock()

	fn(v.read(current))

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			v.subs = slices.DeleteFunc(v.subs, func(s subscriber[T]) bool { return s.id == id })
		})
	}
}

// Subscribers reports how many callbacks are registered.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

func (v *Value[T]) read(value T) T {
	if v.clone == nil {
		return value
	}
	return v.clone(value)
}

// CopySlice returns a shallow copy of s that preserves nil-ness.
func CopySlice[E any](s []E) []E {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}
