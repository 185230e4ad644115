package wpool

import (
	"context"

	"github.com/google/uuid"
)

// Task is a unit of work producing a value of type R.
// The context is cancelled when the task's handle is cancelled or the pool is
// shut down immediately; long running tasks should check it.
type Task[R any] func(ctx context.Context) (R, error)

// runnable is what the pool queues and executes. *Handle[R] implements it for every R.
type runnable interface {
	ID() uuid.UUID
	// start moves a pending task to running. It reports false if the task was
	// already resolved, e.g. cancelled while queued.
	start(parent context.Context) (context.Context, bool)
	// run executes the task body and resolves the handle, returning the stored error.
	run(ctx context.Context) error
	// abort resolves a task that never ran.
	abort(cause error) bool
}
