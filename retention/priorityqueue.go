package retention

import "container/heap"

// PriorityQueue is a min-heap ordered by less; Pop returns the element for which less holds against all others.
type PriorityQueue[T any] struct {
	h *heapAdapter[T]
}

func NewPriorityQueue[T any](less func(a, b T) bool) *PriorityQueue[T] {
	return &PriorityQueue[T]{h: &heapAdapter[T]{less: less}}
}

func (q *PriorityQueue[T]) Push(item T) {
	heap.Push(q.h, item)
}

// Pop removes and returns the first element in priority order
func (q *PriorityQueue[T]) Pop() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(q.h).(T), true
}

// Peek returns the first element without removing it
func (q *PriorityQueue[T]) Peek() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.h.items[0], true
}

func (q *PriorityQueue[T]) Len() int {
	return q.h.Len()
}

type heapAdapter[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (h *heapAdapter[T]) Len() int           { return len(h.items) }
func (h *heapAdapter[T]) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *heapAdapter[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *heapAdapter[T]) Push(x any)         { h.items = append(h.items, x.(T)) }

func (h *heapAdapter[T]) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	var zero T
	h.items[n-1] = zero
	h.items = h.items[:n-1]
	return item
}
