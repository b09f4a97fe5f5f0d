package task

import (
	"context"
	"fmt"
	"sync"
)

// TaskQueue is a bounded FIFO queue. Enqueue blocks while the queue is
// full; Dequeue blocks while it is empty. Unlike a channel, queued items
// can be inspected and removed before they are consumed.
type TaskQueue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	capacity int
	closed   bool
}

// NewTaskQueue creates a new task queue holding at most size items.
func NewTaskQueue[T any](size int) *TaskQueue[T] {
	if size <= 0 {
		size = 1
	}
	q := &TaskQueue[T]{
		items:    make([]T, 0, size),
		capacity: size,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds an item, waiting for room while the queue is full.
// Returns ErrPoolClosed once the queue is closed, or ctx.Err() if ctx is
// done before room becomes available.
func (q *TaskQueue[T]) Enqueue(ctx context.Context, item T) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.capacity && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrPoolClosed
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// TryEnqueue adds an item without waiting.
// Returns an error if the queue is full or closed.
func (q *TaskQueue[T]) TryEnqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrPoolClosed
	}
	if len(q.items) >= q.capacity {
		return fmt.Errorf("%w: queue capacity %d reached", ErrPoolFull, q.capacity)
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the oldest item, waiting while the queue is empty.
// The second result is false once the queue is closed.
func (q *TaskQueue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	var zero T
	if q.closed {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// RemoveFunc removes every queued item for which match returns true and
// returns them in queue order.
func (q *TaskQueue[T]) RemoveFunc(match func(T) bool) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []T
	kept := q.items[:0]
	for _, item := range q.items {
		if match(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept
	if len(removed) > 0 {
		q.notFull.Broadcast()
	}
	return removed
}

// Items returns a copy of the queued items in order.
func (q *TaskQueue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.items...)
}

// Len returns the number of queued items.
func (q *TaskQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *TaskQueue[T]) Cap() int {
	return q.capacity
}

// Close closes the queue, wakes all waiters and returns the items that
// were never consumed.
func (q *TaskQueue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	dropped := q.items
	q.items = nil
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return dropped
}
