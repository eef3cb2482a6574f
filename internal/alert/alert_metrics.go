package alert

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alert subsystem.
type Metrics struct {
	AlertsTotal        *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns alert metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_alerts_total",
			Help: "Total alerts created by severity and detection type.",
		}, []string{"severity", "type"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_alert_transitions_total",
			Help: "Total lifecycle transition attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_notifications_total",
			Help: "Total notification channel dispatches by channel and status.",
		}, []string{"channel", "status"}),
	}

	reg.MustRegister(
		m.AlertsTotal,
		m.TransitionsTotal,
		m.NotificationsTotal,
	)

	return m
}

// NotifyHook returns an observer for the fan-out to record per-channel
// dispatch outcomes.
func (m *Metrics) NotifyHook() func(channel string, err error) {
	return func(channel string, err error) {
		status := "sent"
		if err != nil {
			status = "error"
		}
		m.NotificationsTotal.WithLabelValues(channel, status).Inc()
	}
}
