// Package metrics provides performance tracking and observability for
// Pulsar using Prometheus metrics. It offers collectors for the worker
// pool's throughput, queue pressure, connection churn and job latency.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for pool and connection lifecycle events
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record a completed job
//	metrics.JobsCompleted.WithLabelValues("my-pool", "success").Inc()
//
//	// Track job latency
//	start := time.Now()
//	runJob()
//	metrics.JobLatency.WithLabelValues("my-pool").
//	    Observe(float64(time.Since(start).Nanoseconds()))
//
// Components normally record through a Collector bound to one pool name,
// which also honors the configured metrics on/off switch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records pool lifecycle events for one named pool.
// A disabled Collector turns every method into a no-op so callers never
// need to guard recording sites.
type Collector struct {
	pool    string
	enabled bool
}

// NewCollector creates a metrics collector for the named pool.
func NewCollector(pool string, enabled bool) *Collector {
	return &Collector{pool: pool, enabled: enabled}
}

// JobSubmitted records a job accepted into the queue.
func (c *Collector) JobSubmitted(queueDepth int) {
	if !c.enabled {
		return
	}
	JobsSubmitted.WithLabelValues(c.pool).Inc()
	QueueDepth.WithLabelValues(c.pool).Set(float64(queueDepth))
}

// JobRejected records a submission rejected due to backpressure.
func (c *Collector) JobRejected() {
	if !c.enabled {
		return
	}
	JobsRejected.WithLabelValues(c.pool).Inc()
}

// JobCancelled records a queued job discarded during shutdown.
func (c *Collector) JobCancelled() {
	if !c.enabled {
		return
	}
	JobsCancelled.WithLabelValues(c.pool).Inc()
}

// JobCompleted records an executed job with its outcome and duration.
func (c *Collector) JobCompleted(d time.Duration, success bool) {
	if !c.enabled {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	JobsCompleted.WithLabelValues(c.pool, status).Inc()
	JobLatency.WithLabelValues(c.pool).Observe(float64(d.Nanoseconds()))
}

// QueueDepthChanged records the current pending-job count.
func (c *Collector) QueueDepthChanged(depth int) {
	if !c.enabled {
		return
	}
	QueueDepth.WithLabelValues(c.pool).Set(float64(depth))
}

// WorkerStarted records a worker entering the running set.
func (c *Collector) WorkerStarted(running int) {
	if !c.enabled {
		return
	}
	WorkersRunning.WithLabelValues(c.pool).Set(float64(running))
}

// WorkerRetired records a worker leaving the running set.
func (c *Collector) WorkerRetired(running int) {
	if !c.enabled {
		return
	}
	WorkersRunning.WithLabelValues(c.pool).Set(float64(running))
}

// ConnectionOpened records a successfully established connection.
func (c *Collector) ConnectionOpened() {
	if !c.enabled {
		return
	}
	ConnectionsCreated.WithLabelValues(c.pool).Inc()
}

// ConnectionFailed records a failed connection attempt.
func (c *Collector) ConnectionFailed() {
	if !c.enabled {
		return
	}
	ConnectionFailures.WithLabelValues(c.pool).Inc()
}

// ConnectionReset records a broken connection recovered by reset.
func (c *Collector) ConnectionReset() {
	if !c.enabled {
		return
	}
	ConnectionResets.WithLabelValues(c.pool).Inc()
}

var (
	// JobsSubmitted tracks jobs accepted into the pending queue.
	// Labels: pool
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_jobs_submitted_total",
			Help: "Total number of jobs accepted into the queue",
		},
		[]string{"pool"},
	)

	// JobsCompleted tracks executed jobs by outcome.
	// Labels: pool, status (success/failure)
	//
	// Example:
	//	metrics.JobsCompleted.WithLabelValues("my-pool", "success").Inc()
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_jobs_completed_total",
			Help: "Total number of jobs executed",
		},
		[]string{"pool", "status"},
	)

	// JobsRejected tracks submissions rejected because the queue was full.
	JobsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_jobs_rejected_total",
			Help: "Total number of submissions rejected due to backpressure",
		},
		[]string{"pool"},
	)

	// JobsCancelled tracks queued jobs discarded during shutdown.
	JobsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_jobs_cancelled_total",
			Help: "Total number of queued jobs cancelled at shutdown",
		},
		[]string{"pool"},
	)

	// JobLatency tracks the distribution of job execution latencies in
	// nanoseconds, from dequeue to completion.
	JobLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pulsar_job_latency_nanoseconds",
			Help: "Job execution latency in nanoseconds",
			Buckets: []float64{
				100000, // 100μs - cached statement on a warm connection
				1e6,    // 1ms - simple statements
				1e7,    // 10ms - indexed queries
				1e8,    // 100ms - heavier queries
				1e9,    // 1s - batch statements
				1e10,   // 10s - long-running work
			},
		},
		[]string{"pool"},
	)

	// QueueDepth tracks the number of jobs waiting for a worker.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulsar_queue_depth",
			Help: "Current number of pending jobs",
		},
		[]string{"pool"},
	)

	// WorkersRunning tracks live workers (each owning one connection).
	WorkersRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulsar_workers_running",
			Help: "Number of running workers",
		},
		[]string{"pool"},
	)

	// ConnectionsCreated tracks successfully established connections.
	ConnectionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_connections_created_total",
			Help: "Total number of connections established",
		},
		[]string{"pool"},
	)

	// ConnectionFailures tracks failed connection attempts.
	ConnectionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_connection_failures_total",
			Help: "Total number of failed connection attempts",
		},
		[]string{"pool"},
	)

	// ConnectionResets tracks broken connections recovered by reset.
	ConnectionResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_connection_resets_total",
			Help: "Total number of connection resets",
		},
		[]string{"pool"},
	)
)
