// Package metrics provides Prometheus instrumentation for the frame pipeline
// and the inference gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sightline"

// Status constants for metric labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// stageDuration is a histogram of pipeline stage duration in seconds.
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of pipeline stage duration in seconds",
			Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		},
		[]string{"stage"}, // decode, select, encode
	)

	// queryDuration is a histogram of end-to-end operation duration.
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Histogram of end-to-end operation duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "status"}, // operation: recognize, detect, query
	)

	// gatewayRequestDuration is a histogram of remote inference call duration.
	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of remote inference calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "call"},
	)

	// gatewayRequestsTotal is a counter of remote inference calls.
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of remote inference calls",
		},
		[]string{"provider", "call", "status"},
	)

	// sessionsActive is a gauge of currently connected sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected sessions",
		},
	)

	// eventsEmittedTotal is a counter of outbound session events.
	eventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of events emitted to sessions",
		},
		[]string{"event"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		stageDuration,
		queryDuration,
		gatewayRequestDuration,
		gatewayRequestsTotal,
		sessionsActive,
		eventsEmittedTotal,
	}
)

// RecordStageDuration records one pipeline stage run.
func RecordStageDuration(stage string, durationSeconds float64) {
	stageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordQuery records one completed orchestrator operation.
func RecordQuery(operation, status string, durationSeconds float64) {
	queryDuration.WithLabelValues(operation, status).Observe(durationSeconds)
}

// RecordGatewayRequest records one remote inference call.
func RecordGatewayRequest(provider, call, status string, durationSeconds float64) {
	gatewayRequestDuration.WithLabelValues(provider, call).Observe(durationSeconds)
	gatewayRequestsTotal.WithLabelValues(provider, call, status).Inc()
}

// RecordSessionConnected records a new session.
func RecordSessionConnected() {
	sessionsActive.Inc()
}

// RecordSessionDisconnected records a departed session.
func RecordSessionDisconnected() {
	sessionsActive.Dec()
}

// RecordEventEmitted records one outbound event.
func RecordEventEmitted(event string) {
	eventsEmittedTotal.WithLabelValues(event).Inc()
}
