package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fw_gateway"
)

var (
	defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
)

// NewHTTPRequestsTotal creates a new counter vector for HTTP requests
func NewHTTPRequestsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
}

// NewHTTPRequestDuration creates a new histogram vector for HTTP request
// durations. Buckets reach minutes because proxied converter jobs run long.
func NewHTTPRequestDuration() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   defaultBuckets,
		},
		[]string{"path", "method", "status"},
	)
}
