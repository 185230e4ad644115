package wpool

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// Queue is a fixed-capacity FIFO with blocking Put and Take.
//
// Blocked callers are parked on FIFO wait lists, one per condition, so every
// insertion wakes exactly one taker and every removal wakes exactly one putter.
// The zero value is not usable; create queues with NewQueue.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	size     int
	closed   bool
	notEmpty waitList
	notFull  waitList
}

// NewQueue returns an empty queue holding at most capacity items.
// It panics if capacity is less than one.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("wpool: queue capacity must be at least 1, got %d", capacity))
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Put appends item, blocking while the queue is full.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	if ctx.Err() != nil {
		return waitError(ctx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.fullLocked() {
		if err := q.wait(ctx, &q.notFull, nil); err != nil {
			return err
		}
	}
	if q.closed {
		return errPutClosed
	}
	q.pushLocked(item)
	return nil
}

// Offer appends item without blocking. It returns ErrQueueFull when there is no room.
func (q *Queue[T]) Offer(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errPutClosed
	}
	if q.fullLocked() {
		return ErrQueueFull
	}
	q.pushLocked(item)
	return nil
}

// Take removes and returns the head, blocking while the queue is empty.
// Once the queue is closed and drained it returns ErrQueueClosed.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if ctx.Err() != nil {
		return zero, waitError(ctx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if item, ok := q.popLocked(); ok {
			return item, nil
		}
		if q.closed {
			return zero, ErrQueueClosed
		}
		if err := q.wait(ctx, &q.notEmpty, nil); err != nil {
			return zero, err
		}
	}
}

// Close stops the queue from accepting items. Queued items can still be taken.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

// Drain removes and returns every queued item in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *Queue[T]) Cap() int { return len(q.buf) }

func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

var errPutClosed = fmt.Errorf("%w: %w", ErrRejected, ErrQueueClosed)

func (q *Queue[T]) fullLocked() bool { return q.size == len(q.buf) }

func (q *Queue[T]) pushLocked(item T) {
	q.buf[(q.head+q.size)%len(q.buf)] = item
	q.size++
	q.notEmpty.signal()
}

func (q *Queue[T]) popLocked() (T, bool) {
	item, ok := q.discardHeadLocked()
	if ok {
		q.notFull.signal()
	}
	return item, ok
}

// discardHeadLocked removes the head without waking a putter. The caller
// refills the slot itself.
func (q *Queue[T]) discardHeadLocked() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return item, true
}

func (q *Queue[T]) drainLocked() []T {
	items := make([]T, 0, q.size)
	var zero T
	for q.size > 0 {
		items = append(items, q.buf[q.head])
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.size--
	}
	q.notFull.broadcast()
	return items
}

func (q *Queue[T]) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.broadcast()
	q.notFull.broadcast()
}

// wait parks the caller on wl until it is signalled, ctx ends or timeout fires.
// q.mu must be held; it is released while parked and held again on return.
func (q *Queue[T]) wait(ctx context.Context, wl *waitList, timeout <-chan time.Time) error {
	e, ch := wl.enqueue()
	q.mu.Unlock()

	var err error
	select {
	case <-ch:
	case <-ctx.Done():
		err = waitError(ctx)
	case <-timeout:
		err = errIdleTimeout
	}

	q.mu.Lock()
	if err != nil {
		select {
		case <-ch:
			// Signalled while giving up: pass the wake-up on so it is not lost.
			wl.signal()
		default:
			wl.remove(e)
		}
	}
	return err
}

// waitList is a FIFO of parked goroutines. Callers hold the queue lock.
type waitList struct {
	l list.List
}

func (w *waitList) enqueue() (*list.Element, chan struct{}) {
	ch := make(chan struct{})
	return w.l.PushBack(ch), ch
}

func (w *waitList) signal() {
	if e := w.l.Front(); e != nil {
		close(w.l.Remove(e).(chan struct{}))
	}
}

func (w *waitList) broadcast() {
	for w.l.Len() > 0 {
		w.signal()
	}
}

func (w *waitList) remove(e *list.Element) { w.l.Remove(e) }

func (w *waitList) len() int { return w.l.Len() }
