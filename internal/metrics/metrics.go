// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled HTTP requests by method, route pattern
	// and status class.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divvy_http_requests_total",
			Help: "Handled HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration observes request latency by route pattern.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "divvy_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// DataIntegrityAlarms counts balance computations that failed a
	// data-integrity check (unknown member reference or a scope whose net
	// balances do not cancel out). Any increase warrants investigation of the
	// stored expense data.
	DataIntegrityAlarms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divvy_data_integrity_alarms_total",
			Help: "Balance computations rejected for broken invariants.",
		},
		[]string{"kind"},
	)

	// SettlementsRecorded counts settlement payments written through the
	// expense ingestion path.
	SettlementsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "divvy_settlements_recorded_total",
			Help: "Settlement payments recorded.",
		},
	)
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
