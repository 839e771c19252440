// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

// Metrics holds all payment-engine collectors. A nil *Metrics is valid
// and records nothing, so wiring stays optional in tests.
type Metrics struct {
	PaymentsTotal       *prometheus.CounterVec
	GatewayAttempts     *prometheus.CounterVec
	ProcessingDuration  prometheus.Histogram
	GatewayHealthStatus *prometheus.GaugeVec
	GatewayLatencyMs    *prometheus.GaugeVec
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexus_payments_total",
				Help: "Processed payments by terminal status and gateway used.",
			},
			[]string{"status", "gateway"},
		),
		GatewayAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexus_gateway_attempts_total",
				Help: "Individual charge attempts by gateway and outcome.",
			},
			[]string{"gateway", "outcome"},
		),
		ProcessingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nexus_payment_processing_duration_seconds",
				Help:    "Wall time of one process call, routing plus failover.",
				Buckets: prometheus.DefBuckets,
			},
		),
		GatewayHealthStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexus_gateway_health_status",
				Help: "Latest measured gateway health: 1 healthy, 0.5 degraded, 0 down.",
			},
			[]string{"gateway"},
		),
		GatewayLatencyMs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexus_gateway_health_latency_ms",
				Help: "Latest health-check latency per gateway.",
			},
			[]string{"gateway"},
		),
	}
}

func (m *Metrics) ObservePayment(status, gatewayUsed string, seconds float64) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(status, gatewayUsed).Inc()
	m.ProcessingDuration.Observe(seconds)
}

func (m *Metrics) ObserveAttempt(gatewayName string, outcome gateway.ChargeStatus) {
	if m == nil {
		return
	}
	m.GatewayAttempts.WithLabelValues(gatewayName, string(outcome)).Inc()
}

func (m *Metrics) ObserveHealth(res gateway.HealthResult) {
	if m == nil {
		return
	}
	var v float64
	switch res.Status {
	case gateway.StatusHealthy:
		v = 1
	case gateway.StatusDegraded:
		v = 0.5
	}
	m.GatewayHealthStatus.WithLabelValues(res.GatewayName).Set(v)
	m.GatewayLatencyMs.WithLabelValues(res.GatewayName).Set(res.LatencyMs)
}
