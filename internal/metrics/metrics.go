// Package metrics exposes Prometheus instrumentation for the rephrase
// service on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rephrase"

// Metrics holds every collector the service records into.
type Metrics struct {
	registry *prometheus.Registry

	// Requests counts inbound API requests by route and status class.
	Requests *prometheus.CounterVec

	// StreamEvents counts outbound stream events by type.
	StreamEvents *prometheus.CounterVec

	// StyleFailures counts per-style upstream failures by reason.
	StyleFailures *prometheus.CounterVec

	// UpstreamDuration observes one style's upstream call, connection
	// through stream close, in seconds.
	UpstreamDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Inbound HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		StreamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_events_total",
				Help:      "Outbound stream events by type",
			},
			[]string{"type"},
		),
		StyleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "style_failures_total",
				Help:      "Per-style upstream failures by reason",
			},
			[]string{"style", "reason"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Duration of one style's upstream streaming call",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
			[]string{"style"},
		),
	}

	m.registry.MustRegister(m.Requests, m.StreamEvents, m.StyleFailures, m.UpstreamDuration)
	return m
}

// Handler serves the exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
