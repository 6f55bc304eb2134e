package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks push connection health.
type Metrics struct {
	Active    prometheus.Gauge
	Opened    prometheus.Counter
	Delivered prometheus.Counter
	Overflows prometheus.Counter
	Refused   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Active: f.NewGauge(prometheus.GaugeOpts{
			Name: "qsync_push_connections_active",
			Help: "Open push connections",
		}),
		Opened: f.NewCounter(prometheus.CounterOpts{
			Name: "qsync_push_connections_opened_total",
			Help: "Push connections opened",
		}),
		Delivered: f.NewCounter(prometheus.CounterOpts{
			Name: "qsync_push_events_delivered_total",
			Help: "Events written to push clients",
		}),
		Overflows: f.NewCounter(prometheus.CounterOpts{
			Name: "qsync_push_overflow_disconnects_total",
			Help: "Connections closed because their queue filled up",
		}),
		Refused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qsync_push_connections_refused_total",
			Help: "Connection attempts refused, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.Opened.Inc()
	m.Active.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.Active.Dec()
}

func (m *Metrics) delivered() {
	if m == nil {
		return
	}
	m.Delivered.Inc()
}

func (m *Metrics) overflowed() {
	if m == nil {
		return
	}
	m.Overflows.Inc()
}

func (m *Metrics) refused(reason string) {
	if m == nil {
		return
	}
	m.Refused.WithLabelValues(reason).Inc()
}
