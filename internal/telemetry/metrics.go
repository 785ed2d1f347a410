package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolchat"

var (
	registry = prometheus.NewRegistry()

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		},
		[]string{"outcome"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_transitions_total",
			Help:      "Orchestrator state transitions by target state.",
		},
		[]string{"state"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_duration_seconds",
			Help:      "Language model request latency.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_entries_dropped_total",
			Help:      "Conversation log entries discarded on load, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	registry.MustRegister(
		turnsTotal,
		transitionsTotal,
		toolCallsTotal,
		toolDuration,
		gatewayDuration,
		droppedTotal,
	)
}

// Registry exposes the collectors for scraping and tests.
func Registry() *prometheus.Registry { return registry }

// MetricsHandler serves the registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// RecordTurn counts a finished turn. outcome is "done" or "failed".
func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition counts entry into state.
func RecordTransition(state string) {
	transitionsTotal.WithLabelValues(state).Inc()
}

// RecordToolCall counts one tool invocation and observes its latency.
func RecordToolCall(tool string, failed bool, d time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordGateway observes one language model request.
func RecordGateway(provider string, d time.Duration) {
	gatewayDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordDropped adds n discarded log entries under reason. Zero is a no-op.
func RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	droppedTotal.WithLabelValues(reason).Add(float64(n))
}
