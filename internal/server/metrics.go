package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "notificationd"

// Metrics holds the relay's Prometheus collectors. Each instance registers on
// its own registry so several servers (and tests) can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	sessions          prometheus.Gauge
	notifications     prometheus.Counter
	deliveries        prometheus.Counter
	deliveriesDropped prometheus.Counter
	parseErrors       prometheus.Counter
	persistenceErrors prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions",
			Help:      "Number of live sessions",
		}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications sent",
		}),

		deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Total number of notification frames queued to consumers",
		}),

		deliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_dropped_total",
			Help:      "Total number of notification frames dropped because a send queue was full",
		}),

		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parse_errors_total",
			Help:      "Total number of lines that failed to parse",
		}),

		persistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "persistence_errors_total",
			Help:      "Total number of failed history reads and writes",
		}),
	}
}

// The record helpers accept a nil receiver so metrics stay optional.

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) notificationSent(delivered, dropped int) {
	if m == nil {
		return
	}
	m.notifications.Inc()
	m.deliveries.Add(float64(delivered))
	m.deliveriesDropped.Add(float64(dropped))
}

func (m *Metrics) parseError() {
	if m != nil {
		m.parseErrors.Inc()
	}
}

func (m *Metrics) persistenceError() {
	if m != nil {
		m.persistenceErrors.Inc()
	}
}
