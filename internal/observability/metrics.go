package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	forwardAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "forward",
			Name:      "attempts_total",
			Help:      "Forwarding attempts by outcome.",
		},
		[]string{"app", "outcome"},
	)
	forwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "soloctl",
			Subsystem: "forward",
			Name:      "attempt_duration_seconds",
			Help:      "Forwarding attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "outcome"},
	)
	recoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "recovery",
			Name:      "runs_total",
			Help:      "Stale-instance recovery runs.",
		},
		[]string{"app"},
	)
	terminated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "recovery",
			Name:      "processes_terminated_total",
			Help:      "Stale processes terminated during recovery.",
		},
		[]string{"app"},
	)
	batchesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "primary",
			Name:      "batches_received_total",
			Help:      "Argument batches received while primary.",
		},
		[]string{"app"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Status endpoint HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "soloctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status endpoint HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			forwardAttempts, forwardDuration,
			recoveries, terminated,
			batchesReceived,
			httpRequests, httpDuration,
		)
	})
}

// RecordForwardAttempt counts one secondary forwarding attempt.
// outcome is one of "sent", "timeout", "error", "skipped".
func RecordForwardAttempt(app, outcome string, duration time.Duration) {
	RegisterMetrics()
	forwardAttempts.WithLabelValues(app, outcome).Inc()
	forwardDuration.WithLabelValues(app, outcome).Observe(duration.Seconds())
}

// RecordRecovery counts one recovery run and the processes it terminated.
func RecordRecovery(app string, terminatedCount int) {
	RegisterMetrics()
	recoveries.WithLabelValues(app).Inc()
	terminated.WithLabelValues(app).Add(float64(terminatedCount))
}

// RecordBatchReceived counts one argument batch delivered to the primary.
func RecordBatchReceived(app string) {
	RegisterMetrics()
	batchesReceived.WithLabelValues(app).Inc()
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}
