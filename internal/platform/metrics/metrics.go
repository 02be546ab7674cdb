// Package metrics provides Prometheus instrumentation for the deferred task
// scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Task kind label values.
const (
	KindPending  = "pending"
	KindCallback = "callback"
)

// Scheduler holds the collectors describing deferred task activity. The
// counters are process-wide; per-request schedulers share one instance.
type Scheduler struct {
	// TasksScheduled counts accepted Schedule calls by task kind.
	TasksScheduled *prometheus.CounterVec

	// TaskFailures counts deferred tasks that failed or panicked.
	TaskFailures prometheus.Counter

	// Drains counts run-callbacks-on-close sequences that completed.
	Drains prometheus.Counter

	// DrainDuration observes how long each drain took, in seconds.
	DrainDuration prometheus.Histogram

	// PendingInFlight gauges pending operations kept alive by the tracker.
	PendingInFlight prometheus.Gauge
}

// NewScheduler creates and registers the scheduler collectors. Pass
// prometheus.DefaultRegisterer in production; tests use a private registry.
func NewScheduler(reg prometheus.Registerer) *Scheduler {
	m := &Scheduler{
		TasksScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postflight",
			Name:      "tasks_scheduled_total",
			Help:      "Deferred tasks accepted by Schedule, by kind.",
		}, []string{"kind"}),
		TaskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "postflight",
			Name:      "task_failures_total",
			Help:      "Deferred tasks that failed or panicked.",
		}),
		Drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "postflight",
			Name:      "drains_total",
			Help:      "Completed post-response drain sequences.",
		}),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "postflight",
			Name:      "drain_duration_seconds",
			Help:      "Duration of post-response drain sequences.",
			Buckets:   prometheus.DefBuckets,
		}),
		PendingInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "postflight",
			Name:      "pending_operations_in_flight",
			Help:      "Pending operations currently tracked past their response.",
		}),
	}

	reg.MustRegister(
		m.TasksScheduled,
		m.TaskFailures,
		m.Drains,
		m.DrainDuration,
		m.PendingInFlight,
	)

	return m
}
