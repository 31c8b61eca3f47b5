package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Send and Recv once the queue is closed.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded single-producer single-consumer queue. Send never
// blocks; the backing ring only grows when the consumer falls behind.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	size   int
	enter  int // next position for entering
	leave  int // next item that is leaving
	closed bool
	notify chan struct{}
}

// NewQueue creates a queue with room for capacity items before it grows.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items:  make([]T, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Send appends value and wakes the consumer.
func (q *Queue[T]) Send(value T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}

	if q.size == len(q.items) {
		q.resize()
	}
	q.items[q.enter] = value
	q.enter = (q.enter + 1) % len(q.items)
	q.size++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Recv waits for the next value. Values sent before Close are still
// delivered; after that it returns ErrQueueClosed.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			item := q.items[q.leave]
			var zero T
			q.items[q.leave] = zero
			q.leave = (q.leave + 1) % len(q.items)
			q.size--
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			var zero T
			return zero, ErrQueueClosed
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Close marks the queue closed and wakes a waiting consumer.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// resize doubles the ring, unrolling it so leave starts at zero.
func (q *Queue[T]) resize() {
	grown := make([]T, len(q.items)*2)
	n := copy(grown, q.items[q.leave:])
	copy(grown[n:], q.items[:q.leave])
	q.items = grown
	q.leave = 0
	q.enter = q.size
}
