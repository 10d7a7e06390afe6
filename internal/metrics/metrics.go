// Package metrics exposes request and downstream counters in Prometheus
// exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors, registered on a
// private registry so tests can run side by side.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	streamFragments  prometheus.Counter
	downstreamErrors *prometheus.CounterVec
}

// New creates and registers the gateway collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plexgate",
				Name:      "requests_total",
				Help:      "Total number of gateway requests by route and status",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "plexgate",
				Name:      "request_duration_seconds",
				Help:      "Duration of gateway requests in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"route"},
		),
		streamFragments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plexgate",
				Name:      "stream_fragments_total",
				Help:      "Total number of fragments streamed to clients",
			},
		),
		downstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plexgate",
				Name:      "downstream_errors_total",
				Help:      "Total number of failed downstream provider calls by status",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.streamFragments, m.downstreamErrors)
	return m
}

// ObserveRequest records one finished gateway request.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.requestsTotal.WithLabelValues(route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

// AddStreamFragments records fragments delivered to a client.
func (m *Metrics) AddStreamFragments(n int) {
	if n > 0 {
		m.streamFragments.Add(float64(n))
	}
}

// ObserveDownstreamError records one classified downstream failure.
func (m *Metrics) ObserveDownstreamError(status string) {
	m.downstreamErrors.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
