package automaton

import "sync"

// eventQueue is a thread-safe unbounded FIFO.
//
// The transition loop is its only consumer. Producers, the input source pump and
// Close enqueue from their own goroutines, so Enqueue never blocks: an effect that
// emits a burst of inputs must not stall waiting for the loop.
//
// The queue signals availability through a buffered channel of size 1, which lets
// consumers combine waiting with other channels in a select.
type eventQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

func newEventQueue[T any]() *eventQueue[T] {
	return &eventQueue[T]{
		items:  make([]T, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends v. Returns false if the queue is closed.
func (q *eventQueue[T]) Enqueue(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, v)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front item without blocking.
func (q *eventQueue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]

	// Clear the slot so the backing array does not pin the item.
	q.items[0] = zero

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return v, true
}

// Wait returns a channel that is signalled when items may be available.
// The channel is closed once the queue is closed.
func (q *eventQueue[T]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *eventQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *eventQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Drained reports whether the queue is closed and every item has been taken.
func (q *eventQueue[T]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close rejects further items and wakes any waiter. Queued items stay
// available to TryDequeue.
func (q *eventQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
