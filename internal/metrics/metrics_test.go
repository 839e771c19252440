package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestObservePayment(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePayment("succeeded", "simulator", 0.25)
	m.ObservePayment("succeeded", "simulator", 0.50)
	m.ObservePayment("failed", "stripe", 0.10)

	assert.Equal(t, 2.0, gatherValue(t, reg, "nexus_payments_total", map[string]string{"status": "succeeded", "gateway": "simulator"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "nexus_payments_total", map[string]string{"status": "failed", "gateway": "stripe"}))
}

func TestObserveHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHealth(gateway.HealthResult{GatewayName: "stripe", Status: gateway.StatusHealthy, LatencyMs: 42})
	m.ObserveHealth(gateway.HealthResult{GatewayName: "razorpay", Status: gateway.StatusDown})

	assert.Equal(t, 1.0, gatherValue(t, reg, "nexus_gateway_health_status", map[string]string{"gateway": "stripe"}))
	assert.Equal(t, 0.0, gatherValue(t, reg, "nexus_gateway_health_status", map[string]string{"gateway": "razorpay"}))
	assert.Equal(t, 42.0, gatherValue(t, reg, "nexus_gateway_health_latency_ms", map[string]string{"gateway": "stripe"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePayment("succeeded", "simulator", 0.1)
		m.ObserveAttempt("stripe", gateway.ChargeError)
		m.ObserveHealth(gateway.HealthResult{GatewayName: "stripe"})
	})
}
