package wpool

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type worker struct {
	id   int
	name string
}

type exit struct {
	reason string
	// last is set for the worker whose exit terminated the pool.
	last bool
}

func (p *Pool) work(w *worker) {
	defer p.workersWG.Done()

	p.logger.Debug("worker started", slog.Int("worker_id", w.id), slog.String("worker", w.name))
	for {
		r, ex := p.next(w)
		if r == nil {
			p.logger.Debug("worker exiting",
				slog.Int("worker_id", w.id),
				slog.String("worker", w.name),
				slog.String("reason", ex.reason),
			)
			if ex.last {
				p.logger.Info("worker pool shutdown completed")
			}
			return
		}
		p.execute(w, r)
	}
}

// next blocks until a task is available. It returns a nil task when the worker
// must exit: the queue is closed and drained, or the worker stayed idle past
// the idle timeout while the pool runs more than its core workers.
func (p *Pool) next(w *worker) (runnable, exit) {
	q := p.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		idle    *time.Timer
		expired bool
	)
	defer func() {
		if idle != nil {
			idle.Stop()
		}
	}()

	for {
		if r, ok := q.popLocked(); ok {
			p.reportLocked()
			return r, exit{}
		}
		if q.closed {
			return nil, p.retireLocked("queue closed")
		}
		if expired {
			if p.active > p.minWorkers && p.phase == PhaseRunning {
				return nil, p.retireLocked("idle timeout")
			}
			idle, expired = nil, false
		}

		var timeout <-chan time.Time
		if p.active > p.minWorkers {
			if idle == nil {
				idle = time.NewTimer(p.idleTimeout)
			}
			timeout = idle.C
		}

		p.metrics.workers(p.active, q.notEmpty.len()+1)
		err := q.wait(context.Background(), &q.notEmpty, timeout)
		expired = errors.Is(err, errIdleTimeout)
	}
}

func (p *Pool) retireLocked(reason string) exit {
	p.active--
	ex := exit{reason: reason}
	if p.active == 0 && p.phase != PhaseRunning {
		p.terminateLocked()
		ex.last = true
	}
	p.reportLocked()
	return ex
}

func (p *Pool) execute(w *worker, r runnable) {
	if cause := context.Cause(p.runCtx); cause != nil {
		// Taken just before an immediate shutdown; it never started.
		if r.abort(cause) {
			p.cancelled.Add(1)
			p.metrics.cancelled(1)
		}
		return
	}

	ctx, ok := r.start(p.runCtx)
	if !ok {
		p.cancelled.Add(1)
		p.metrics.cancelled(1)
		p.logger.Debug("skipping task cancelled while queued",
			slog.String("task_id", r.ID().String()),
			slog.String("worker", w.name),
		)
		return
	}

	ctx, span := p.startSpan(ctx, w, r)
	begin := time.Now()
	err := r.run(ctx)
	elapsed := time.Since(begin)
	endSpan(span, err)
	p.metrics.finished(err, elapsed)

	switch {
	case err == nil:
		p.completed.Add(1)
	case isCancelled(err):
		p.cancelled.Add(1)
		p.logger.Debug("task cancelled while running",
			slog.String("task_id", r.ID().String()),
			slog.String("worker", w.name),
			slog.Any("error", err),
		)
	default:
		p.failed.Add(1)
		p.logger.Warn("task failed",
			slog.String("task_id", r.ID().String()),
			slog.String("worker", w.name),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
	}
}
