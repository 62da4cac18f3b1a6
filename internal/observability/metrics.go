// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Endpoint pool metrics
	ProbeAttempts *prometheus.CounterVec
	ProbeLatency  prometheus.Histogram

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Narrative metrics
	NarrativeLatency  prometheus.Histogram
	NarrativeFailures *prometheus.CounterVec

	// Aggregation metrics
	DegradedResponses *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "repo_sentinel"
	}

	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of analysis requests by outcome",
		}, []string{"status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Analysis request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),

		ProbeAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpcpool",
			Name:      "probe_attempts_total",
			Help:      "Total number of endpoint liveness probes by endpoint and result",
		}, []string{"endpoint", "result"}),
		ProbeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpcpool",
			Name:      "probe_latency_seconds",
			Help:      "Endpoint liveness probe latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		NarrativeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "narrative",
			Name:      "generation_latency_seconds",
			Help:      "Narrative generator call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}),
		NarrativeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narrative",
			Name:      "failures_total",
			Help:      "Total number of narrative failures by reason",
		}, []string{"reason"}),

		DegradedResponses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "degraded_responses_total",
			Help:      "Total number of responses served with a degraded branch",
		}, []string{"branch"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRequest records one analysis request outcome.
func RecordRequest(status string, seconds float64) {
	DefaultMetrics.RequestsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RequestDuration.WithLabelValues(status).Observe(seconds)
}

// RecordProbe records an endpoint liveness probe.
func RecordProbe(endpoint string, ok bool, seconds float64) {
	result := "failure"
	if ok {
		result = "success"
	}
	DefaultMetrics.ProbeAttempts.WithLabelValues(endpoint, result).Inc()
	DefaultMetrics.ProbeLatency.Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordNarrative records one narrative generator call.
func RecordNarrative(seconds float64, failureReason string) {
	DefaultMetrics.NarrativeLatency.Observe(seconds)
	if failureReason != "" {
		DefaultMetrics.NarrativeFailures.WithLabelValues(failureReason).Inc()
	}
}

// RecordDegraded records a response served with a degraded branch.
func RecordDegraded(branch string) {
	DefaultMetrics.DegradedResponses.WithLabelValues(branch).Inc()
}
