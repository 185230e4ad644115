// Package wpool implements a bounded work queue drained by an elastic worker pool.
//
// Producers submit tasks with Call or Pool.Submit and get back a Handle that
// resolves exactly once with the task's result, its *TaskError, or a
// cancellation. The queue has a fixed capacity: when it is full and the pool
// already runs its maximum number of workers, the RejectionPolicy decides
// whether the submitter blocks, fails fast or evicts the oldest queued task.
//
// Workers are started on demand by the submitting goroutine, up to the
// configured maximum, and retire after an idle timeout down to the configured
// minimum. A fixed pool sets both bounds to the same value, a cached pool sets
// the minimum to zero.
//
// Shutdown drains the queue before the workers exit. ShutdownNow cancels every
// queued task and the context passed to running tasks. AwaitTermination waits
// for the last worker to exit.
//
// Queue can also be used on its own as a blocking FIFO between goroutines; a
// queue of capacity one is a single-slot handoff.
package wpool
