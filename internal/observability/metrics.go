package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the Elsevier profile client.
// Counters and histograms are registered via promauto for automatic
// registration with the default Prometheus registry.
type Metrics struct {
	// RequestsTotal counts HTTP requests to the Elsevier API, labeled by endpoint.
	RequestsTotal *prometheus.CounterVec

	// RequestsFailed counts failed HTTP requests, labeled by endpoint and reason.
	RequestsFailed *prometheus.CounterVec

	// RequestDuration observes HTTP request duration in seconds, labeled by endpoint.
	RequestDuration *prometheus.HistogramVec

	// RequestRetries counts retried request attempts, labeled by endpoint.
	RequestRetries *prometheus.CounterVec

	// ProfileReads counts profile read operations, labeled by profile type.
	ProfileReads *prometheus.CounterVec

	// DocumentsFetched counts the total number of documents retrieved via search.
	DocumentsFetched prometheus.Counter

	// DocumentsWritten counts the total number of document lists persisted to disk.
	DocumentsWritten prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of Elsevier API requests by endpoint",
		}, []string{"endpoint"}),
		RequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Total number of failed Elsevier API requests by endpoint and reason",
		}, []string{"endpoint", "reason"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of Elsevier API requests in seconds by endpoint",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),
		RequestRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_retries_total",
			Help:      "Total number of retried Elsevier API request attempts by endpoint",
		}, []string{"endpoint"}),
		ProfileReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_reads_total",
			Help:      "Total number of profile read operations by profile type",
		}, []string{"type"}),
		DocumentsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_fetched_total",
			Help:      "Total number of documents retrieved via search",
		}),
		DocumentsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_written_total",
			Help:      "Total number of document lists written to disk",
		}),
	}
}

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(endpoint string, seconds float64) {
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordRequestFailure records a failed API request.
func (m *Metrics) RecordRequestFailure(endpoint, reason string) {
	m.RequestsFailed.WithLabelValues(endpoint, reason).Inc()
}
