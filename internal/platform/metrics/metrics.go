package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP-level Prometheus metrics shared by all handlers.
type Metrics struct {
	registry        *prometheus.Registry
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	Mutations       *prometheus.CounterVec
	MutationLatency *prometheus.HistogramVec
}

// New creates a registry and registers the HTTP metrics on it. Module metrics
// register on Registry() so one /metrics endpoint exposes everything.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and method",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qsync_http_requests_total",
			Help: "Total HTTP requests by route, method and status class",
		}, []string{"route", "method", "status"}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qsync_mutations_total",
			Help: "Record mutations by kind, operation and outcome",
		}, []string{"kind", "op", "outcome"}),
		MutationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qsync_mutation_duration_seconds",
			Help:    "Duration of record mutations including guard, storage write and emit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind", "op"}),
	}
}

// Registry returns the registerer module metrics should use.
func (m *Metrics) Registry() prometheus.Registerer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route, method, status string, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	m.RequestsTotal.WithLabelValues(route, method, status).Inc()
}

// ObserveMutation records one mutation. outcome is "ok" or the error code.
func (m *Metrics) ObserveMutation(kind, op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind, op, outcome).Inc()
	m.MutationLatency.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())
}
