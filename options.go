package wpool

import (
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures a Pool.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
	workerNamer    func(id int) string
	queueCapacity  int
	minWorkers     int
	maxWorkers     int
	idleTimeout    time.Duration
	policy         RejectionPolicy
	shutdownMode   ShutdownMode
}

const defaultIdleTimeout = time.Minute

func defaultConfig() config {
	n := runtime.GOMAXPROCS(0)
	return config{
		logger:         slog.New(slog.DiscardHandler),
		tracerProvider: noop.NewTracerProvider(),
		workerNamer:    defaultWorkerName,
		queueCapacity:  n,
		minWorkers:     n,
		maxWorkers:     n,
		idleTimeout:    defaultIdleTimeout,
		policy:         BlockCaller,
		shutdownMode:   ShutdownModeDrain,
	}
}

func defaultWorkerName(id int) string { return "worker-" + strconv.Itoa(id) }

func (c config) validate() error {
	switch {
	case c.queueCapacity < 1:
		return fmt.Errorf("%w: queue capacity must be at least 1, got %d", ErrInvalidConfig, c.queueCapacity)
	case c.maxWorkers < 1:
		return fmt.Errorf("%w: max workers must be at least 1, got %d", ErrInvalidConfig, c.maxWorkers)
	case c.minWorkers < 0 || c.minWorkers > c.maxWorkers:
		return fmt.Errorf("%w: min workers must be within [0, %d], got %d", ErrInvalidConfig, c.maxWorkers, c.minWorkers)
	case c.minWorkers < c.maxWorkers && c.idleTimeout <= 0:
		return fmt.Errorf("%w: idle timeout must be positive for an elastic pool, got %s", ErrInvalidConfig, c.idleTimeout)
	case c.policy < BlockCaller || c.policy > DiscardOldest:
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.policy)
	case c.shutdownMode < ShutdownModeDrain || c.shutdownMode > ShutdownModeImmediate:
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.shutdownMode)
	}
	return nil
}

// WithQueueCapacity sets how many tasks may wait for a worker.
func WithQueueCapacity(n int) Option {
	return func(c *config) { c.queueCapacity = n }
}

// WithWorkers sets the core and maximum worker counts. Core workers start with
// the pool and never retire while it runs; workers above min retire after the
// idle timeout.
func WithWorkers(minWorkers, maxWorkers int) Option {
	return func(c *config) {
		c.minWorkers = minWorkers
		c.maxWorkers = maxWorkers
	}
}

// WithFixedWorkers runs exactly n workers for the pool's lifetime.
func WithFixedWorkers(n int) Option { return WithWorkers(n, n) }

// WithCachedWorkers starts no workers up front and grows on demand up to maxWorkers.
func WithCachedWorkers(maxWorkers int) Option { return WithWorkers(0, maxWorkers) }

func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { c.idleTimeout = d }
}

func WithRejectionPolicy(p RejectionPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithShutdownMode selects the behaviour of Stop.
func WithShutdownMode(m ShutdownMode) Option {
	return func(c *config) { c.shutdownMode = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records pool activity on m. See NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTracerProvider creates a span for every executed task.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithWorkerNamer names workers in logs and spans. Ids start at zero.
func WithWorkerNamer(fn func(id int) string) Option {
	return func(c *config) {
		if fn != nil {
			c.workerNamer = fn
		}
	}
}
