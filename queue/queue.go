package queue

import (
	"sync/atomic"
)

// Queue is a double ended queue. The FSA builder uses it as a stack and the
// call graph search uses it as a FIFO.
type Queue[T any] struct {
	items atomic.Pointer[[]T]
}

func (q *Queue[T]) Len() int {
	return len(*q.items.Load())
}

// Pop removes the first item.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	items := *q.items.Load()
	if len(items) == 0 {
		return zero, false
	}
	item := items[0]
	items = items[1:]
	q.items.Store(&items)
	return item, true
}

// PopBack removes the last item.
func (q *Queue[T]) PopBack() (T, bool) {
	var zero T
	items := *q.items.Load()
	if len(items) == 0 {
		return zero, false
	}
	item := items[len(items)-1]
	items = items[:len(items)-1]
	q.items.Store(&items)
	return item, true
}

// Peek returns the last item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	items := *q.items.Load()
	if len(items) == 0 {
		return zero, false
	}
	return items[len(items)-1], true
}

func (q *Queue[T]) Push(items ...T) {
	current := *q.items.Load()
	current = append(current, items...)
	q.items.Store(&current)
}

func New[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	initial := append([]T{}, items...)
	q.items.Store(&initial)
	return q
}
