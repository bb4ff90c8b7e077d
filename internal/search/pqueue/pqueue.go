// Package pqueue provides a generic binary heap whose top is the least
// element under a caller supplied ordering. A queue created with a positive
// size keeps at most that many elements and discards the weakest.
package pqueue

import "container/heap"

type PriorityQueue[T any] struct {
	h       items[T]
	maxSize int
}

// New returns a queue ordered by less. maxSize <= 0 makes it unbounded.
func New[T any](maxSize int, less func(a, b T) bool) *PriorityQueue[T] {
	capHint := maxSize
	if capHint <= 0 || capHint > 1024 {
		capHint = 16
	}
	return &PriorityQueue[T]{
		h:       items[T]{data: make([]T, 0, capHint), less: less},
		maxSize: maxSize,
	}
}

// Put adds x without checking the size bound.
func (q *PriorityQueue[T]) Put(x T) {
	heap.Push(&q.h, x)
}

// Insert adds x while the queue has room. Once full, x replaces the top if it
// is not less than it. Reports whether x was kept.
func (q *PriorityQueue[T]) Insert(x T) bool {
	if q.maxSize <= 0 || q.h.Len() < q.maxSize {
		heap.Push(&q.h, x)
		return true
	}
	if q.h.Len() > 0 && !q.h.less(x, q.h.data[0]) {
		q.h.data[0] = x
		heap.Fix(&q.h, 0)
		return true
	}
	return false
}

func (q *PriorityQueue[T]) Top() (T, bool) {
	if len(q.h.data) == 0 {
		var zero T
		return zero, false
	}
	return q.h.data[0], true
}

func (q *PriorityQueue[T]) Pop() (T, bool) {
	if len(q.h.data) == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&q.h).(T), true
}

// AdjustTop restores heap order after the top element was mutated in place
// through a pointer type.
func (q *PriorityQueue[T]) AdjustTop() {
	if len(q.h.data) > 0 {
		heap.Fix(&q.h, 0)
	}
}

func (q *PriorityQueue[T]) Len() int { return len(q.h.data) }

func (q *PriorityQueue[T]) MaxSize() int { return q.maxSize }

func (q *PriorityQueue[T]) Clear() {
	var zero T
	for i := range q.h.data {
		q.h.data[i] = zero
	}
	q.h.data = q.h.data[:0]
}

type items[T any] struct {
	data []T
	less func(a, b T) bool
}

func (h items[T]) Len() int           { return len(h.data) }
func (h items[T]) Less(i, j int) bool { return h.less(h.data[i], h.data[j]) }
func (h items[T]) Swap(i, j int)      { h.data[i], h.data[j] = h.data[j], h.data[i] }

func (h *items[T]) Push(x any) {
	h.data = append(h.data, x.(T))
}

func (h *items[T]) Pop() any {
	old := h.data
	n := len(old)
	item := old[n-1]
	var zero T
	old[n-1] = zero
	h.data = old[:n-1]
	return item
}
