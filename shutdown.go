package wpool

import (
	"context"
	"log/slog"
)

// Shutdown stops accepting tasks and lets the workers drain the queue.
// It does not wait; use AwaitTermination or Stop for that.
func (p *Pool) Shutdown() {
	q := p.queue
	q.mu.Lock()
	if p.phase != PhaseRunning {
		q.mu.Unlock()
		return
	}
	p.phase = PhaseShuttingDownGraceful
	q.closeLocked()
	queued, active := q.size, p.active
	terminated := p.terminateIfIdleLocked()
	q.mu.Unlock()

	p.logger.Info("worker pool shutting down",
		slog.String("mode", ShutdownModeDrain.String()),
		slog.Int("queued_tasks", queued),
		slog.Int("active_workers", active),
	)
	if terminated {
		p.logger.Info("worker pool shutdown completed")
	}
}

// ShutdownNow stops accepting tasks, cancels every queued task and cancels the
// context of running tasks. Running tasks are not interrupted otherwise; they
// stop at their next context check. It returns the number of queued tasks
// that were cancelled.
func (p *Pool) ShutdownNow() int {
	q := p.queue
	q.mu.Lock()
	if p.phase == PhaseShuttingDownNow || p.phase == PhaseTerminated {
		q.mu.Unlock()
		return 0
	}
	p.phase = PhaseShuttingDownNow
	q.closeLocked()
	queued := q.drainLocked()
	active := p.active
	p.cancelRun(errShutdownNow)
	terminated := p.terminateIfIdleLocked()
	p.reportLocked()
	q.mu.Unlock()

	var n int
	for _, r := range queued {
		if r.abort(errShutdownNow) {
			n++
		}
	}
	p.cancelled.Add(int64(n))
	p.metrics.cancelled(n)

	p.logger.Info("worker pool shutting down",
		slog.String("mode", ShutdownModeImmediate.String()),
		slog.Int("cancelled_tasks", n),
		slog.Int("active_workers", active),
	)
	if terminated {
		p.logger.Info("worker pool shutdown completed")
	}
	return n
}

// AwaitTermination blocks until every worker has exited after a shutdown, or
// ctx ends. It is safe to call any number of times from any goroutine.
func (p *Pool) AwaitTermination(ctx context.Context) error {
	select {
	case <-p.terminated:
		p.workersWG.Wait()
		return nil
	default:
	}

	select {
	case <-p.terminated:
		p.workersWG.Wait()
		return nil
	case <-ctx.Done():
		return waitError(ctx)
	}
}

// Stop shuts the pool down according to its ShutdownMode and waits for termination.
func (p *Pool) Stop(ctx context.Context) error {
	if p.shutdownMode == ShutdownModeImmediate {
		p.ShutdownNow()
	} else {
		p.Shutdown()
	}
	return p.AwaitTermination(ctx)
}

// Terminated is closed once the last worker has exited after a shutdown.
func (p *Pool) Terminated() <-chan struct{} { return p.terminated }

func (p *Pool) terminateIfIdleLocked() bool {
	if p.active > 0 {
		return false
	}
	p.terminateLocked()
	return true
}

func (p *Pool) terminateLocked() {
	if p.phase == PhaseTerminated {
		return
	}
	p.phase = PhaseTerminated
	p.cancelRun(nil)
	close(p.terminated)
}
