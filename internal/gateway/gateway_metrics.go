package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the resilience gateway.
type Metrics struct {
	RequestsTotal  *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec
}

// NewMetrics registers and returns gateway metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_gateway_requests_total",
			Help: "Gateway operations by op, serving backend and outcome.",
		}, []string{"op", "backend", "outcome"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_gateway_fallbacks_total",
			Help: "Primary-service failures that routed an op to the fallback path.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.FallbacksTotal,
	)

	return m
}
