package wpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a submitted task.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Done reports whether s is terminal.
func (s Status) Done() bool { return s >= StatusSucceeded }

// Handle is the eventual outcome of a submitted task.
//
// A handle is resolved exactly once: by the worker that ran the task, by the
// submission path when the task was refused, or with ErrCancelled when the task
// was discarded. Resolution closes Done, so the result is visible to every
// goroutine that observes it.
type Handle[R any] struct {
	id   uuid.UUID
	task Task[R]
	done chan struct{}

	mu     sync.Mutex
	status Status
	cancel context.CancelCauseFunc
	value  R
	err    error
}

func newHandle[R any](task Task[R]) *Handle[R] {
	return &Handle[R]{
		id:     uuid.New(),
		task:   task,
		done:   make(chan struct{}),
		status: StatusPending,
	}
}

func (h *Handle[R]) ID() uuid.UUID { return h.id }

// Done is closed once the handle is resolved.
func (h *Handle[R]) Done() <-chan struct{} { return h.done }

func (h *Handle[R]) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Await blocks until the handle is resolved or ctx ends.
//
// The error is nil on success, a *TaskError when the task failed, an error
// matching ErrCancelled when it was discarded, and ErrRejected (or the wait
// error of the submission) when it was never accepted. If ctx ends first,
// Await returns ErrTimedOut or ErrInterrupted and the task is left untouched.
func (h *Handle[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-h.done:
		return h.value, h.err
	default:
	}

	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero R
		return zero, waitError(ctx)
	}
}

// Cancel discards a pending task, or asks a running one to stop through its context.
// It reports false when the handle is already resolved.
func (h *Handle[R]) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.status {
	case StatusPending:
		h.resolveLocked(*new(R), errCancelledByCaller, StatusCancelled)
		return true
	case StatusRunning:
		h.cancel(errCancelledByCaller)
		return true
	default:
		return false
	}
}

func (h *Handle[R]) start(parent context.Context) (context.Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != StatusPending {
		return nil, false
	}
	ctx, cancel := context.WithCancelCause(parent)
	h.cancel = cancel
	h.status = StatusRunning
	return ctx, true
}

func (h *Handle[R]) run(ctx context.Context) (err error) {
	var value R
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Cause: fmt.Errorf("panic: %v", r), Panic: r}
		} else if err != nil {
			err = classify(ctx, err)
		}

		status := StatusSucceeded
		switch {
		case errors.Is(err, ErrCancelled):
			status = StatusCancelled
		case err != nil:
			status = StatusFailed
		}

		h.mu.Lock()
		h.resolveLocked(value, err, status)
		h.mu.Unlock()
	}()

	value, err = h.task(ctx)
	return err
}

// classify turns a task error into a TaskError, unless the task gave up
// because it was cancelled by its handle or by an immediate shutdown.
func classify(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrCancelled) {
		return fmt.Errorf("%w (task returned: %w)", cause, err)
	}
	return &TaskError{Cause: err}
}

func (h *Handle[R]) abort(cause error) bool {
	status := StatusRejected
	if errors.Is(cause, ErrCancelled) {
		status = StatusCancelled
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != StatusPending {
		return false
	}
	h.resolveLocked(*new(R), cause, status)
	return true
}

func (h *Handle[R]) resolveLocked(value R, err error, status Status) {
	if h.status.Done() {
		return
	}
	h.value, h.err, h.status = value, err, status
	if h.cancel != nil {
		h.cancel(nil)
	}
	close(h.done)
}
