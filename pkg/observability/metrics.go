// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the weiche gateway.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/weiche/pkg/api"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Attempt outcomes used as the "outcome" label of ProviderRequestsTotal.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
)

var (
	// RequestsTotal counts all HTTP requests by method, status class, and endpoint.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "endpoint"},
	)

	// RequestDuration records HTTP request duration in seconds by method and endpoint.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weiche_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// StreamingConnections tracks the number of active SSE streaming responses.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weiche_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// RouteResolutionsTotal counts model-name resolutions by how they matched.
	RouteResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_route_resolutions_total",
			Help: "Route resolutions by match kind",
		},
		[]string{"match"},
	)

	// ProviderRequestsTotal counts adapter calls by backend and outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "outcome"},
	)

	// ProviderLatency records the time until a backend answered (or began
	// streaming), in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weiche_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens by direction (input/output/reasoning).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// CredentialRotationsTotal counts moves to the next credential after a
	// retryable failure.
	CredentialRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_credential_rotations_total",
			Help: "Credential rotations",
		},
		[]string{"provider", "model"},
	)

	// FallbacksTotal counts moves to the next provider of a route.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_fallbacks_total",
			Help: "Provider fallbacks",
		},
		[]string{"route"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		RouteResolutionsTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		CredentialRotationsTotal,
		FallbacksTotal,
		ToolExecutionsTotal,
	)
}

// RecordAttempt records one adapter call and its latency.
func RecordAttempt(kind, model, outcome string, elapsed time.Duration) {
	ProviderRequestsTotal.WithLabelValues(kind, model, outcome).Inc()
	ProviderLatency.WithLabelValues(kind, model).Observe(elapsed.Seconds())
}

// RecordUsage adds the token counters of a finished response.
func RecordUsage(kind, model string, u *api.Usage) {
	if u == nil {
		return
	}
	if u.InputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(kind, model, "input").Add(float64(u.InputTokens))
	}
	if u.OutputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(kind, model, "output").Add(float64(u.OutputTokens))
	}
	if r := u.OutputTokensDetails.ReasoningTokens; r > 0 {
		ProviderTokensTotal.WithLabelValues(kind, model, "reasoning").Add(float64(r))
	}
}
