// Package metrics provides Prometheus metrics for panel API calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RecordRequest.
const (
	OutcomeSuccess   = "success"
	OutcomeDomain    = "domain_error"
	OutcomeTransport = "transport_error"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pterogo_requests_total",
			Help: "Total number of panel API requests by outcome",
		},
		[]string{"method", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pterogo_request_duration_seconds",
			Help:    "Panel API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	relistMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pterogo_relist_misses_total",
			Help: "Re-listings after a mutation that did not contain the expected entry",
		},
	)
)

// RecordRequest records one gateway call.
func RecordRequest(method, outcome string, d time.Duration) {
	requestsTotal.WithLabelValues(method, outcome).Inc()
	requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordRelistMiss counts a consistency fault.
func RecordRelistMiss() {
	relistMisses.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
