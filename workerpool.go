package wpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Pool runs tasks on an elastic set of workers fed by a bounded queue.
//
// The queue lock is the pool lock: queue storage, worker counts and the
// lifecycle phase all change under it, so growth, retirement and shutdown
// decisions never race with each other. No lock is held while a task runs.
type Pool struct {
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	workerNamer  func(id int) string
	queue        *Queue[runnable]
	minWorkers   int
	maxWorkers   int
	idleTimeout  time.Duration
	policy       RejectionPolicy
	shutdownMode ShutdownMode

	runCtx     context.Context
	cancelRun  context.CancelCauseFunc
	terminated chan struct{}
	workersWG  sync.WaitGroup

	// guarded by queue.mu
	phase        Phase
	active       int
	peak         int
	nextWorkerID int

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	cancelled atomic.Int64
}

// New creates a running pool and starts its core workers.
func New(opts ...Option) (*Pool, error) {
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(context.Background())
	p := &Pool{
		logger:       c.logger,
		metrics:      c.metrics,
		tracer:       c.tracerProvider.Tracer(tracerName),
		workerNamer:  c.workerNamer,
		queue:        NewQueue[runnable](c.queueCapacity),
		minWorkers:   c.minWorkers,
		maxWorkers:   c.maxWorkers,
		idleTimeout:  c.idleTimeout,
		policy:       c.policy,
		shutdownMode: c.shutdownMode,
		runCtx:       runCtx,
		cancelRun:    cancel,
		terminated:   make(chan struct{}),
		phase:        PhaseRunning,
	}

	p.logger.Info("worker pool starting",
		slog.Int("queue_capacity", c.queueCapacity),
		slog.Int("min_workers", c.minWorkers),
		slog.Int("max_workers", c.maxWorkers),
		slog.Duration("idle_timeout", c.idleTimeout),
		slog.String("rejection_policy", c.policy.String()),
	)

	p.queue.mu.Lock()
	for range p.minWorkers {
		p.spawnLocked()
	}
	p.reportLocked()
	p.queue.mu.Unlock()

	return p, nil
}

// Call submits task and returns its handle.
//
// The handle is never nil. When the error is non-nil the task was not
// accepted and the handle is already resolved with that error: ErrWorkerPoolStopped
// after shutdown, ErrQueueFull under FailFast, or ErrTimedOut / ErrInterrupted
// when ctx ended while the caller was blocked on a full queue.
func Call[R any](ctx context.Context, p *Pool, task Task[R]) (*Handle[R], error) {
	h := newHandle(task)
	if task == nil {
		err := fmt.Errorf("%w: task cannot be nil", ErrRejected)
		h.abort(err)
		p.rejected.Add(1)
		p.metrics.rejected()
		return h, err
	}
	return h, p.submit(ctx, h)
}

// Submit is Call for tasks without a result.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) (*Handle[struct{}], error) {
	var task Task[struct{}]
	if fn != nil {
		task = func(ctx context.Context) (struct{}, error) { return struct{}{}, fn(ctx) }
	}
	return Call(ctx, p, task)
}

// InvokeAll submits every task and waits until all of them are resolved.
// If a submission fails or ctx ends first, the tasks submitted so far are
// cancelled and the error is returned along with their handles.
func InvokeAll[R any](ctx context.Context, p *Pool, tasks ...Task[R]) ([]*Handle[R], error) {
	handles := make([]*Handle[R], 0, len(tasks))
	cancelAll := func() {
		for _, h := range handles {
			h.Cancel()
		}
	}

	for _, task := range tasks {
		h, err := Call(ctx, p, task)
		if err != nil {
			cancelAll()
			return handles, err
		}
		handles = append(handles, h)
	}

	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			cancelAll()
			return handles, waitError(ctx)
		}
	}
	return handles, nil
}

func (p *Pool) submit(ctx context.Context, r runnable) error {
	evicted, err := p.enqueue(ctx, r)
	if evicted != nil && evicted.abort(errEvicted) {
		p.cancelled.Add(1)
		p.metrics.cancelled(1)
		p.logger.DebugContext(ctx, "queued task evicted", slog.String("task_id", evicted.ID().String()))
	}
	if err != nil {
		r.abort(err)
		p.rejected.Add(1)
		p.metrics.rejected()
		p.logger.DebugContext(ctx, "task submission rejected",
			slog.String("task_id", r.ID().String()),
			slog.Any("error", err),
		)
		return err
	}
	p.submitted.Add(1)
	p.metrics.submitted()
	return nil
}

func (p *Pool) enqueue(ctx context.Context, r runnable) (evicted runnable, err error) {
	if ctx.Err() != nil {
		return nil, waitError(ctx)
	}

	q := p.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if p.phase != PhaseRunning {
			return nil, ErrWorkerPoolStopped
		}

		if !q.fullLocked() {
			idle := q.notEmpty.len()
			q.pushLocked(r)
			p.growLocked(idle)
			p.reportLocked()
			return evicted, nil
		}

		grew := p.growLocked(0)
		switch {
		case p.policy == FailFast:
			return nil, ErrQueueFull
		case p.policy == DiscardOldest && !grew:
			evicted, _ = q.discardHeadLocked()
			continue
		}

		if err := q.wait(ctx, &q.notFull, nil); err != nil {
			return nil, err
		}
	}
}

// growLocked starts one worker when no idle worker is polling and the pool is
// below its maximum. It reports whether a worker was started.
func (p *Pool) growLocked(idle int) bool {
	if idle > 0 || p.active >= p.maxWorkers {
		return false
	}
	p.spawnLocked()
	return true
}

func (p *Pool) spawnLocked() {
	id := p.nextWorkerID
	p.nextWorkerID++
	p.active++
	p.peak = max(p.peak, p.active)

	p.workersWG.Add(1)
	go p.work(&worker{id: id, name: p.workerNamer(id)})
}

func (p *Pool) reportLocked() {
	p.metrics.workers(p.active, p.queue.notEmpty.len())
	p.metrics.queued(p.queue.size)
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Phase         Phase
	MinWorkers    int
	MaxWorkers    int
	ActiveWorkers int
	IdleWorkers   int
	PeakWorkers   int
	QueuedTasks   int
	QueueCapacity int
	Submitted     int64
	Completed     int64
	Failed        int64
	Rejected      int64
	Cancelled     int64
}

func (p *Pool) Stats() Stats {
	q := p.queue
	q.mu.Lock()
	s := Stats{
		Phase:         p.phase,
		MinWorkers:    p.minWorkers,
		MaxWorkers:    p.maxWorkers,
		ActiveWorkers: p.active,
		IdleWorkers:   q.notEmpty.len(),
		PeakWorkers:   p.peak,
		QueuedTasks:   q.size,
		QueueCapacity: len(q.buf),
	}
	q.mu.Unlock()

	s.Submitted = p.submitted.Load()
	s.Completed = p.completed.Load()
	s.Failed = p.failed.Load()
	s.Rejected = p.rejected.Load()
	s.Cancelled = p.cancelled.Load()
	return s
}
