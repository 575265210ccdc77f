// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backfill metrics
	MintsProcessed   prometheus.Counter
	EntriesProcessed *prometheus.CounterVec
	MintDuration     prometheus.Histogram
	JobRunsTotal     *prometheus.CounterVec
	JobRunning       prometheus.Gauge
	JobQueueDepth    prometheus.Gauge

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	PoolCacheLookups *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "call_tracker"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MintsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "mints_processed_total",
			Help:      "Total number of mint work units processed",
		}),
		EntriesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "entries_processed_total",
			Help:      "Total number of call entries processed by outcome",
		}, []string{"outcome"}),
		MintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "mint_duration_seconds",
			Help:      "Time spent processing one mint work unit",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		JobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "job_runs_total",
			Help:      "Total number of backfill jobs by final status",
		}, []string{"status"}),
		JobRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "job_running",
			Help:      "1 while a backfill job is running",
		}),
		JobQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "queue_depth",
			Help:      "Mint work units waiting in the queue",
		}),

		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of market-data provider requests by outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_latency_seconds",
			Help:      "Market-data provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		PoolCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "pool_cache_lookups_total",
			Help:      "Pool address cache lookups by result",
		}, []string{"result"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordMintProcessed records one processed mint and its duration.
func RecordMintProcessed(seconds float64) {
	DefaultMetrics.MintsProcessed.Inc()
	DefaultMetrics.MintDuration.Observe(seconds)
}

// RecordEntries adds n entries under outcome (updated, error, skipped).
func RecordEntries(outcome string, n int) {
	if n <= 0 {
		return
	}
	DefaultMetrics.EntriesProcessed.WithLabelValues(outcome).Add(float64(n))
}

// RecordJobStarted marks a job as running.
func RecordJobStarted() {
	DefaultMetrics.JobRunning.Set(1)
}

// RecordJobFinished records the final status of a job.
func RecordJobFinished(status string) {
	DefaultMetrics.JobRunning.Set(0)
	DefaultMetrics.JobQueueDepth.Set(0)
	DefaultMetrics.JobRunsTotal.WithLabelValues(status).Inc()
}

// UpdateQueueDepth sets the queue depth gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.JobQueueDepth.Set(float64(n))
}

// RecordProviderRequest records a provider request outcome (ok, rate_limited, not_found, timeout, error).
func RecordProviderRequest(provider, outcome string, seconds float64) {
	DefaultMetrics.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	DefaultMetrics.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordPoolCacheLookup records a pool cache lookup (hit, miss, absent).
func RecordPoolCacheLookup(result string) {
	DefaultMetrics.PoolCacheLookups.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
