// Package metrics exposes the Prometheus collectors used across the
// onboarding flow, the capture stages and the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kyc_wallet"

var (
	StepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "onboarding",
		Name:      "step_transitions_total",
		Help:      "Onboarding step transitions by source and target step.",
	}, []string{"from", "to"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "onboarding",
		Name:      "validation_failures_total",
		Help:      "Field validation failures by field name.",
	}, []string{"field"})

	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Ledger operations by kind and result.",
	}, []string{"kind", "result"})

	LedgerPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "points_total",
		Help:      "Points moved through the ledger by transaction kind.",
	}, []string{"kind"})

	CameraActiveLeases = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "active_leases",
		Help:      "Camera handles currently acquired and not yet released.",
	})

	CameraAcquireFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "acquire_failures_total",
		Help:      "Failed camera acquisitions by reason.",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Onboarding sessions currently held in memory.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveHTTPRequest records one served request. Unmatched routes are
// grouped under a single label to keep cardinality bounded.
func ObserveHTTPRequest(method, route string, status int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
