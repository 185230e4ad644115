package wpool

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRejected is returned when a submission or put is refused.
	ErrRejected = errors.New("submission rejected")

	// ErrWorkerPoolStopped is returned for submissions made after shutdown started.
	ErrWorkerPoolStopped = fmt.Errorf("%w: worker pool is stopped", ErrRejected)

	// ErrQueueFull is returned by non-blocking puts and by the FailFast policy.
	ErrQueueFull = fmt.Errorf("%w: queue is full", ErrRejected)

	// ErrQueueClosed is returned by Take once the queue is closed and drained.
	// Puts on a closed queue return an error that matches both ErrRejected and ErrQueueClosed.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrCancelled marks a task discarded before or during execution.
	ErrCancelled = errors.New("task cancelled")

	// ErrTimedOut is returned when a bounded wait expires.
	ErrTimedOut = errors.New("wait timed out")

	// ErrInterrupted is returned when a wait is cancelled by its caller.
	ErrInterrupted = errors.New("wait interrupted")

	// ErrTaskFailed matches every *TaskError.
	ErrTaskFailed = errors.New("task failed")

	// ErrInvalidConfig is returned by New for inconsistent options.
	ErrInvalidConfig = errors.New("invalid worker pool configuration")
)

var (
	errShutdownNow       = fmt.Errorf("%w: worker pool shut down immediately", ErrCancelled)
	errEvicted           = fmt.Errorf("%w: evicted from a full queue", ErrCancelled)
	errCancelledByCaller = fmt.Errorf("%w: cancelled by caller", ErrCancelled)
	errIdleTimeout       = errors.New("idle timeout")
)

// TaskError wraps the error returned by, or the panic raised from, a task body.
type TaskError struct {
	Cause error
	// Panic holds the recovered value when the task panicked.
	Panic any
}

func (e *TaskError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task panicked: %v", e.Panic)
	}
	return fmt.Sprintf("task failed: %v", e.Cause)
}

func (e *TaskError) Unwrap() error { return e.Cause }

func (e *TaskError) Is(target error) bool { return target == ErrTaskFailed }

// waitError classifies why ctx ended a blocking wait.
func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimedOut, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
}
