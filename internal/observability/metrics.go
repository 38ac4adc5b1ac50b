package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by client and server exchange metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport"
	OutcomeInvalid   = "invalid"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlingo_http_requests_total",
			Help: "Total number of HTTP requests served by the backend.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlingo_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	clientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlingo_client_requests_total",
			Help: "Backend exchanges issued by the interactive client, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	clientRequestDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlingo_client_request_duration_ms",
			Help:    "Backend exchange latency observed by the client in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"operation"},
	)
	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlingo_registrations_total",
			Help: "Connection registrations handled by the server, by engine and outcome.",
		},
		[]string{"engine", "outcome"},
	)
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlingo_translations_total",
			Help: "Query translations handled by the server, by outcome.",
		},
		[]string{"outcome"},
	)
	translationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlingo_translation_latency_ms",
			Help:    "Translator latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)
	registeredConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlingo_registered_connections",
			Help: "Current number of user connections held by the server.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		clientRequestsTotal,
		clientRequestDurationMs,
		registrationsTotal,
		translationsTotal,
		translationLatencyMs,
		registeredConnections,
	)
}

func ObserveClientRequest(operation, outcome string, elapsed time.Duration) {
	clientRequestsTotal.WithLabelValues(operation, outcome).Inc()
	clientRequestDurationMs.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveRegistration(engine, outcome string) {
	registrationsTotal.WithLabelValues(engine, outcome).Inc()
}

func ObserveTranslation(outcome string, elapsed time.Duration) {
	translationsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		translationLatencyMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func SetRegisteredConnections(count int) {
	if count < 0 {
		count = 0
	}
	registeredConnections.Set(float64(count))
}
