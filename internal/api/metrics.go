package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sleepdata/cpapinsight/schema"
)

// Metrics holds the Prometheus collectors of the HTTP API.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts requests by route template, method and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes request latency by route template and method.
	RequestDuration *prometheus.HistogramVec

	// InsightsGenerated counts insights served by kind.
	InsightsGenerated *prometheus.CounterVec
}

// NewMetrics registers the API collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cpapinsight_requests_total",
				Help: "Total number of API requests processed",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cpapinsight_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route", "method"},
		),
		InsightsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cpapinsight_insights_generated_total",
				Help: "Total number of insights served",
			},
			[]string{"kind"},
		),
	}
}

// Registry exposes the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) countInsights(insights []schema.Insight) {
	for _, in := range insights {
		m.InsightsGenerated.WithLabelValues(string(in.Kind)).Inc()
	}
}
