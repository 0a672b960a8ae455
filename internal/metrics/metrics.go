// Package metrics defines every Prometheus metric exported by the portal and
// the reference API. Metric names, labels and help strings live only here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payment_portal"

// HTTP server metrics, shared by both binaries. The service label is
// "portal" or "api"; route is the chi route pattern, not the raw path.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests served.",
	},
	[]string{"service", "method", "route", "status"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latencies in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"service", "method", "route", "status"},
)

var HTTPInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "In-flight HTTP requests.",
	},
	[]string{"service"},
)

// UpstreamRequestDuration times portal calls to the payment API.
// Labels:
//   - endpoint: logical operation (e.g. "list_requests", "decide_request")
//   - status: HTTP status code, or "error" when no response arrived
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of portal calls to the payment API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint", "status"},
)

// SessionTeardownsTotal counts session clears.
// Label:
//   - reason: "logout", "expired" (a 401 from the API) or "malformed"
var SessionTeardownsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_teardowns_total",
		Help:      "Total number of portal sessions cleared, by reason.",
	},
	[]string{"reason"},
)

// LoginThrottledTotal counts login attempts refused by the rate limiter.
var LoginThrottledTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_throttled_total",
		Help:      "Total number of portal login attempts refused by the rate limiter.",
	},
)

// RequestsSubmittedTotal counts payment requests created, by request type.
var RequestsSubmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_submitted_total",
		Help:      "Total number of payment requests submitted, by type.",
	},
	[]string{"request_type"},
)

// RequestDecisionsTotal counts approve/reject decisions, by resulting status.
var RequestDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_decisions_total",
		Help:      "Total number of payment request decisions, by resulting status.",
	},
	[]string{"status"},
)
