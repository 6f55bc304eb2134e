package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks bus throughput and subscription counts.
type Metrics struct {
	Emitted    *prometheus.CounterVec
	Dispatched *prometheus.CounterVec
	Listeners  *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qsync_bus_events_emitted_total",
			Help: "Events dispatched by the bus, by topic",
		}, []string{"topic"}),
		Dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qsync_bus_handler_calls_total",
			Help: "Handler invocations, by topic",
		}, []string{"topic"}),
		Listeners: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "qsync_bus_listeners",
			Help: "Live subscriptions, by topic",
		}, []string{"topic"}),
	}
}

func (m *Metrics) incEmitted(topic Topic, handlers int) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(string(topic)).Inc()
	m.Dispatched.WithLabelValues(string(topic)).Add(float64(handlers))
}

func (m *Metrics) setListeners(topic Topic, n int) {
	if m == nil {
		return
	}
	m.Listeners.WithLabelValues(string(topic)).Set(float64(n))
}
