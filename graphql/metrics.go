package graphql

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional operational metrics sink, mirroring the shape of
// develeap-terraform-provider-hyperping's client.Metrics interface: the
// hard-core retry/request path calls it unconditionally, and a client
// configured without one uses a no-op sink that drops every call.
type Metrics interface {
	// RecordRequest records one completed logical request (all of its
	// retry attempts) by terminal outcome and duration.
	RecordRequest(outcome string, duration time.Duration)
	// RecordRetry records one retried attempt, tagged by the reason the
	// attempt was retried ("network", "429", "503").
	RecordRetry(reason string)
}

// Outcome labels used with RecordRequest.
const (
	OutcomeSuccess        = "success"
	OutcomeRetriableError = "retriable_error"
	OutcomeTerminalError  = "terminal_error"
)

// Retry reason labels used with RecordRetry.
const (
	RetryReasonNetwork = "network"
	RetryReason429     = "429"
	RetryReason503     = "503"
)

type noopMetrics struct{}

func (noopMetrics) RecordRequest(string, time.Duration) {}
func (noopMetrics) RecordRetry(string)                  {}

// PrometheusMetrics is a Metrics implementation backed by
// prometheus/client_golang, registered against a caller-supplied registry.
type PrometheusMetrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetrics builds and registers the collectors used by
// WithPrometheusMetrics. Callers who want to share a registry across
// multiple clients can call this directly and pass the result to
// WithMetrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphql_client",
			Name:      "requests_total",
			Help:      "Total number of logical GraphQL requests, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphql_client",
			Name:      "retries_total",
			Help:      "Total number of retried HTTP attempts, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphql_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of a logical GraphQL request, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.retries, m.duration)
	return m
}

func (m *PrometheusMetrics) RecordRequest(outcome string, duration time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordRetry(reason string) {
	m.retries.WithLabelValues(reason).Inc()
}

// WithPrometheusMetrics registers the package's collectors against reg and
// wires the resulting Metrics into the client. With no call to this option
// (or to WithMetrics), metrics recording is a no-op.
func WithPrometheusMetrics(reg prometheus.Registerer) ClientOption {
	return WithMetrics(NewPrometheusMetrics(reg))
}
