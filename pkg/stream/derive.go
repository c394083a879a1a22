package stream

import "sync"

// Map derives a Source whose value is fn applied to every emission of src.
// stop detaches the derived value from src.
func Map[T, U any](src Source[T], fn func(T) U, opts ...Option[U]) (out Source[U], stop func()) {
	var zero U
	derived := NewValue(zero, opts...)
	cancel := src.Subscribe(func(value T) {
		derived.Set(fn(value))
	})
	return derived, cancel
}

// Combine3 derives a Source recomputed from the latest values of a, b and c
// whenever any of them emits.
func Combine3[A, B, C, R any](a Source[A], b Source[B], c Source[C], fn func(A, B, C) R, opts ...Option[R]) (out Source[R], stop func()) {
	var zero R
	derived := NewValue(zero, opts...)

	// Recompute and publish as one step so the last writer always reads the
	// latest inputs.
	var mu sync.Mutex
	recompute := func() {
		mu.Lock()
		defer mu.Unlock()
		derived.Set(fn(a.Get(), b.Get(), c.Get()))
	}

	cancels := []func(){
		a.Subscribe(func(A) { recompute() }),
		b.Subscribe(func(B) { recompute() }),
		c.Subscribe(func(C) { recompute() }),
	}
	return derived, func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
