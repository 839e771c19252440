// Package simulator implements the built-in bank simulator gateway.
// It never makes network calls, which makes it the guaranteed-available
// fallback of last resort and the fixture for deterministic testing.
package simulator

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

// Name is the registry key for the simulator gateway.
const Name = "simulator"

// fraudAmountLimit is the amount (in minor units) above which the
// simulated bank declines the charge.
const fraudAmountLimit = 100_000

// Simulator is an in-process gateway with a deterministic authorization
// rule and a small artificial latency. It accepts every currency.
type Simulator struct {
	// Latency bounds for simulated network delay. Zeroes disable the
	// sleep entirely, which tests rely on.
	MinLatency time.Duration
	MaxLatency time.Duration
}

// New returns a Simulator with the default 50-200ms simulated latency.
func New() *Simulator {
	return &Simulator{
		MinLatency: 50 * time.Millisecond,
		MaxLatency: 200 * time.Millisecond,
	}
}

func (s *Simulator) Name() string { return Name }

func (s *Simulator) SupportedCurrencies() []string {
	return []string{"INR", "USD", "EUR", "GBP"}
}

// Charge applies the simulated bank's authorization rules:
//
//  1. Card number ending in "0000"  -> declined (insufficient funds)
//  2. Amount above 100,000          -> declined (fraud risk)
//  3. Everything else               -> approved
//
// Declines are reported as ChargeFailed, never as an error, because the
// simulated bank did reach a decision.
func (s *Simulator) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error) {
	cardNumber := req.Metadata["card_number"]
	if cardNumber == "" {
		cardNumber = "4111111111111111"
	}

	if err := s.sleep(ctx); err != nil {
		return gateway.ChargeResult{}, err
	}

	decision := Authorize(req.Amount, cardNumber)
	if !decision.Approved {
		return gateway.ChargeResult{
			Status:      gateway.ChargeFailed,
			GatewayName: Name,
			Reason:      decision.Reason,
		}, nil
	}

	key := req.IdempotencyKey
	if len(key) > 16 {
		key = key[:16]
	}
	return gateway.ChargeResult{
		Status:        gateway.ChargeSuccess,
		GatewayName:   Name,
		TransactionID: "sim_" + key,
		Reason:        decision.Reason,
	}, nil
}

// HealthCheck always reports healthy; there is no network to fail.
func (s *Simulator) HealthCheck(ctx context.Context) gateway.HealthResult {
	start := time.Now()
	return gateway.HealthResult{
		GatewayName: Name,
		Status:      gateway.StatusHealthy,
		LatencyMs:   float64(time.Since(start).Microseconds()) / 1000,
		Message:     "Simulator is always healthy.",
	}
}

func (s *Simulator) sleep(ctx context.Context) error {
	if s.MaxLatency <= 0 {
		return nil
	}
	d := s.MinLatency
	if s.MaxLatency > s.MinLatency {
		d += time.Duration(rand.Int63n(int64(s.MaxLatency - s.MinLatency)))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Decision is the simulated acquiring bank's verdict for one charge.
type Decision struct {
	Approved bool
	Reason   string
}

// Authorize mirrors the behavior of a real acquiring bank without
// touching banking infrastructure. It is deliberately deterministic so
// the whole routing pipeline can be exercised end to end in tests.
func Authorize(amount int64, cardNumber string) Decision {
	if strings.HasSuffix(cardNumber, "0000") {
		return Decision{Approved: false, Reason: "Insufficient funds."}
	}
	if amount > fraudAmountLimit {
		return Decision{Approved: false, Reason: "Transaction flagged for fraud risk (amount exceeds limit)."}
	}
	return Decision{Approved: true, Reason: "Authorization approved."}
}
