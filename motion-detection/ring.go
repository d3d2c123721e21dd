package motiondetection

// Ring is a fixed-capacity buffer that evicts its oldest element when full.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

// NewRing creates a ring holding at most capacity elements. A capacity below zero is treated as zero.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item and returns the element it evicted, if any.
// On a zero-capacity ring the pushed item itself is returned as evicted.
func (r *Ring[T]) Push(item T) (evicted T, ok bool) {
	if len(r.items) == 0 {
		return item, true
	}
	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = item
		r.size++
		return evicted, false
	}
	evicted = r.items[r.head]
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	return evicted, true
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Oldest returns the element that would be evicted next
func (r *Ring[T]) Oldest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.head], true
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Clear empties the ring and returns what it held, oldest first.
func (r *Ring[T]) Clear() []T {
	out := r.Items()
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
	return out
}

// CountFunc counts the elements matching pred
func (r *Ring[T]) CountFunc(pred func(T) bool) int {
	n := 0
	for i := 0; i < r.size; i++ {
		if pred(r.items[(r.head+i)%len(r.items)]) {
			n++
		}
	}
	return n
}
