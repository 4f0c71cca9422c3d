// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_queries_routed_total",
			Help: "Total number of queries routed, by classified intent",
		},
		[]string{"intent"},
	)

	FallbackInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_fallback_invocations_total",
			Help: "Fallback classifier invocations, by outcome (adopted, kept_pattern, unavailable)",
		},
		[]string{"outcome"},
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_dispatch_failures_total",
			Help: "Dispatches that produced a failure envelope, by intent and error code",
		},
		[]string{"intent", "error_code"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "router_query_duration_seconds",
			Help: "End-to-end duration of query processing in seconds",
		},
		[]string{"intent"},
	)
)
