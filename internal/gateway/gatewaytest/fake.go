// Package gatewaytest provides a configurable fake gateway for tests.
package gatewaytest

import (
	"context"

	"github.com/google/uuid"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

// Fake implements gateway.Gateway with overridable behavior. The zero
// override charges successfully and reports healthy.
type Fake struct {
	GatewayName string
	Currencies  []string
	ChargeFunc  func(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error)
	HealthFunc  func(ctx context.Context) gateway.HealthResult

	ChargeCalls int
}

func New(name string) *Fake {
	return &Fake{GatewayName: name}
}

func (f *Fake) Name() string { return f.GatewayName }

func (f *Fake) SupportedCurrencies() []string {
	if f.Currencies == nil {
		return []string{"USD", "INR"}
	}
	return f.Currencies
}

func (f *Fake) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error) {
	f.ChargeCalls++
	if f.ChargeFunc != nil {
		return f.ChargeFunc(ctx, req)
	}
	return gateway.ChargeResult{
		Status:        gateway.ChargeSuccess,
		GatewayName:   f.GatewayName,
		TransactionID: uuid.NewString(),
		Reason:        "Authorization approved.",
	}, nil
}

func (f *Fake) HealthCheck(ctx context.Context) gateway.HealthResult {
	if f.HealthFunc != nil {
		return f.HealthFunc(ctx)
	}
	return gateway.HealthResult{
		GatewayName: f.GatewayName,
		Status:      gateway.StatusHealthy,
		Message:     "ok",
	}
}
