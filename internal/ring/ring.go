// Package ring provides a fixed-capacity FIFO buffer that evicts the oldest
// element once full.
//
// A Buffer is not safe for concurrent use. Process output and log panes are
// owned by the reconciliation loop and never shared across goroutines.
package ring

// Buffer is a bounded FIFO of T. Pushing onto a full buffer drops the
// oldest element.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	count int
}

// New returns an empty buffer holding at most capacity elements.
// A non-positive capacity is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether an older element was evicted.
func (b *Buffer[T]) Push(v T) bool {
	if b.count < len(b.items) {
		b.items[(b.head+b.count)%len(b.items)] = v
		b.count++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return true
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.count }

// Cap returns the maximum number of stored elements.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// At returns the i-th element, oldest first. It panics if i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.count {
		panic("ring: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Items returns a copy of the contents, oldest first.
func (b *Buffer[T]) Items() []T {
	return b.Last(b.count)
}

// Last returns a copy of the newest n elements, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := b.count - n
	for i := range n {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// Clear drops every element.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.count = 0
}
