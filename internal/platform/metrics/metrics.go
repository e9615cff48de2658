// Package metrics registers the process-wide Prometheus collectors for
// the HTTP surface. Feature-level collectors live next to their feature
// (internal/domain/metrics).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP collectors shared by all handlers.
type Metrics struct {
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates and registers the collectors with the default registry.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailstead_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mailstead_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
	}
}

// ObserveRequest records one served request. Safe on a nil receiver so
// handlers can run without metrics in tests.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// RequestStarted marks a request in flight.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Inc()
}

// RequestFinished marks a request completed.
func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Dec()
}
