package wpool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a pool reports to.
// A nil *Metrics records nothing.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksRejected  prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksCancelled prometheus.Counter
	ActiveWorkers  prometheus.Gauge
	IdleWorkers    prometheus.Gauge
	QueueDepth     prometheus.Gauge
	TaskDuration   prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them with registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer, namespace string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	f := promauto.With(registerer)

	return &Metrics{
		TasksSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted into the queue",
		}),
		TasksRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "tasks_rejected_total",
			Help:      "Total number of submissions refused or abandoned before queuing",
		}),
		TasksCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that completed successfully",
		}),
		TasksFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}),
		TasksCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "tasks_cancelled_total",
			Help:      "Total number of tasks cancelled before or during execution",
		}),
		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "active_workers",
			Help:      "Current number of live worker goroutines",
		}),
		IdleWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "idle_workers",
			Help:      "Current number of workers waiting for a task",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "queue_depth",
			Help:      "Current number of queued tasks",
		}),
		TaskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wpool",
			Name:      "task_duration_seconds",
			Help:      "Task execution time in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) submitted() {
	if m != nil {
		m.TasksSubmitted.Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.TasksRejected.Inc()
	}
}

func (m *Metrics) cancelled(n int) {
	if m != nil {
		m.TasksCancelled.Add(float64(n))
	}
}

func (m *Metrics) finished(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.TaskDuration.Observe(d.Seconds())
	switch {
	case err == nil:
		m.TasksCompleted.Inc()
	case isCancelled(err):
		m.TasksCancelled.Inc()
	default:
		m.TasksFailed.Inc()
	}
}

func (m *Metrics) workers(active, idle int) {
	if m != nil {
		m.ActiveWorkers.Set(float64(active))
		m.IdleWorkers.Set(float64(idle))
	}
}

func (m *Metrics) queued(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
