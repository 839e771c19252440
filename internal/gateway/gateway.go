// Package gateway defines the capability contract implemented by every
// payment processor adapter. Adapters handle all provider-specific API
// calls and normalize raw provider responses into a common ChargeResult.
package gateway

import (
	"context"
)

// ChargeStatus is the outcome of a charge attempt.
type ChargeStatus string

const (
	// ChargeSuccess means funds were authorized.
	ChargeSuccess ChargeStatus = "success"
	// ChargeFailed means the provider made a definitive decline decision.
	// A decline is final and must not be retried on another gateway.
	ChargeFailed ChargeStatus = "failed"
	// ChargeError means the call never produced a decision (network
	// failure, provider 5xx, timeout). Eligible for failover.
	ChargeError ChargeStatus = "error"
)

// HealthStatus is the result of a gateway health-check ping.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusDown     HealthStatus = "down"
)

// ChargeRequest carries everything an adapter needs to attempt a charge.
// The idempotency key is shared across all failover attempts for one
// payment so a retried charge can never double-authorize.
type ChargeRequest struct {
	Amount         int64  // smallest currency unit (paise / cents)
	Currency       string // ISO 4217
	IdempotencyKey string
	Metadata       map[string]string // card details etc., opaque to the engine
}

// ChargeResult is the standardised result returned by every adapter.
type ChargeResult struct {
	Status        ChargeStatus `json:"status"`
	GatewayName   string       `json:"gateway_name"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Reason        string       `json:"reason"`
	RawResponse   []byte       `json:"-"`
}

// HealthResult is the outcome of a health-check ping.
type HealthResult struct {
	GatewayName string       `json:"gateway_name"`
	Status      HealthStatus `json:"status"`
	LatencyMs   float64      `json:"latency_ms"`
	Message     string       `json:"message"`
}

// Gateway is the interface implemented by each payment processor adapter.
// Charge may return an error for faults that never reached a decision; the
// failover executor normalizes such errors to ChargeError. HealthCheck must
// never fail: unreachable providers are reported as StatusDown. Health
// checks are expected to complete within a few seconds; adapters enforce
// their own timeouts.
type Gateway interface {
	Name() string
	SupportedCurrencies() []string
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	HealthCheck(ctx context.Context) HealthResult
}
