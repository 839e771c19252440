// Package payments is the orchestration layer: it owns the payment
// intent lifecycle and drives one routing-plus-failover run per process
// call, persisting the outcome and trace before anything is returned to
// the caller.
package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/ArpitSharma4/nexus-gateway/internal/failover"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/metrics"
	"github.com/ArpitSharma4/nexus-gateway/internal/routing"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

var (
	// ErrIntentNotFound is returned when the referenced intent does not exist.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrIntentTerminal is returned when an intent has already reached a
	// terminal state and cannot be processed again.
	ErrIntentTerminal = errors.New("payment intent already in a terminal state")
)

// IntentStore is the persistence surface the service needs for intents.
type IntentStore interface {
	CreateIntent(ctx context.Context, intent *storage.PaymentIntent) error
	IntentByID(ctx context.Context, id string) (*storage.PaymentIntent, error)
	IntentByIdempotencyKey(ctx context.Context, key string) (*storage.PaymentIntent, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	FinalizeIntent(ctx context.Context, id, status, gatewayUsed, traceLog string) error
}

// RuleStore supplies a merchant's routing rules, already ordered.
type RuleStore interface {
	RulesForMerchant(ctx context.Context, merchantID string) ([]storage.RoutingRule, error)
}

// HealthStore supplies the latest gateway health snapshot.
type HealthStore interface {
	ListGatewayHealth(ctx context.Context) ([]storage.GatewayHealth, error)
}

// AdapterSource resolves the gateway adapters available to one merchant.
type AdapterSource interface {
	ForMerchant(ctx context.Context, merchantID string) (map[string]gateway.Gateway, error)
}

// Notifier delivers payment event notifications. Implementations must be
// best-effort; the service never waits on delivery.
type Notifier interface {
	Notify(ctx context.Context, merchantID, eventType string, data map[string]any)
}

// CardDetails is the card payload submitted at process time. It is passed
// through to the gateway adapters and never persisted.
type CardDetails struct {
	CardNumber string
	CVV        string
}

// ProcessResult is the caller-facing outcome of one processing run.
type ProcessResult struct {
	Status       string
	GatewayUsed  string
	BankDecision string
	BankReason   string
	Trace        []failover.TraceEntry
}

// Service orchestrates intent creation and processing.
type Service struct {
	intents  IntentStore
	rules    RuleStore
	health   HealthStore
	adapters AdapterSource
	notifier Notifier
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

func NewService(intents IntentStore, rules RuleStore, health HealthStore, adapters AdapterSource, notifier Notifier, m *metrics.Metrics, log *logrus.Logger) *Service {
	return &Service{
		intents:  intents,
		rules:    rules,
		health:   health,
		adapters: adapters,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

// Create registers a new payment intent, or replays the existing one when
// the idempotency key has been seen before. The second return value is
// true when a new record was created.
func (s *Service) Create(ctx context.Context, merchantID string, amount int64, currency, idempotencyKey string) (*storage.PaymentIntent, bool, error) {
	if existing, err := s.intents.IntentByIdempotencyKey(ctx, idempotencyKey); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	id, err := newIntentID()
	if err != nil {
		return nil, false, err
	}
	intent := &storage.PaymentIntent{
		ID:             id,
		MerchantID:     merchantID,
		Amount:         amount,
		Currency:       strings.ToUpper(currency),
		Status:         storage.StatusCreated,
		IdempotencyKey: idempotencyKey,
	}
	if err := s.intents.CreateIntent(ctx, intent); err != nil {
		// A concurrent create with the same key hits the unique index;
		// the winner's record is the answer for both callers.
		if existing, lookupErr := s.intents.IntentByIdempotencyKey(ctx, idempotencyKey); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create intent: %w", err)
	}
	return intent, true, nil
}

// Intent fetches one intent by id.
func (s *Service) Intent(ctx context.Context, id string) (*storage.PaymentIntent, error) {
	intent, err := s.intents.IntentByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrIntentNotFound
	}
	return intent, err
}

// Process runs the full routing and failover pipeline for one intent and
// commits the terminal outcome. Exactly one of two racing calls on the
// same intent gets to run; the loser sees ErrIntentTerminal.
func (s *Service) Process(ctx context.Context, intentID string, card CardDetails) (*storage.PaymentIntent, *ProcessResult, error) {
	ctx, span := otel.Tracer("payments").Start(ctx, "payments.Process")
	defer span.End()

	intent, err := s.intents.IntentByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrIntentNotFound
		}
		return nil, nil, fmt.Errorf("load intent: %w", err)
	}
	if storage.IsTerminal(intent.Status) {
		return intent, nil, ErrIntentTerminal
	}

	// Gather routing inputs before claiming the intent so a lookup
	// failure cannot leave the row stuck in processing.
	adapters, err := s.adapters.ForMerchant(ctx, intent.MerchantID)
	if err != nil {
		return intent, nil, fmt.Errorf("load adapters: %w", err)
	}
	healthRecords, err := s.health.ListGatewayHealth(ctx)
	if err != nil {
		// A stale or missing snapshot degrades to no outage exclusions.
		s.log.WithError(err).Warn("gateway health lookup failed, proceeding without outage data")
		healthRecords = nil
	}
	rules, err := s.rules.RulesForMerchant(ctx, intent.MerchantID)
	if err != nil {
		s.log.WithError(err).Warn("routing rule lookup failed, proceeding with fallback ordering")
		rules = nil
	}

	claimed, err := s.intents.MarkProcessing(ctx, intent.ID)
	if err != nil {
		return intent, nil, fmt.Errorf("mark processing: %w", err)
	}
	if !claimed {
		return intent, nil, ErrIntentTerminal
	}
	intent.Status = storage.StatusProcessing

	start := time.Now()
	candidates := routing.Select(routing.Payment{
		MerchantID: intent.MerchantID,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
	}, rules, adapters, routing.Outages(healthRecords))

	req := gateway.ChargeRequest{
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		IdempotencyKey: intent.IdempotencyKey,
		Metadata: map[string]string{
			"card_number": card.CardNumber,
			"cvv":         card.CVV,
		},
	}
	run := failover.Execute(ctx, candidates, req, s.log.WithField("payment_intent_id", intent.ID))

	status := storage.StatusFailed
	if run.GatewayResult.Status == gateway.ChargeSuccess {
		status = storage.StatusSucceeded
	}

	if err := s.intents.FinalizeIntent(ctx, intent.ID, status, run.GatewayUsed, run.TraceJSON()); err != nil {
		return intent, nil, fmt.Errorf("finalize intent: %w", err)
	}
	intent.Status = status
	intent.GatewayUsed = run.GatewayUsed
	intent.TraceLog = run.TraceJSON()

	s.metrics.ObservePayment(status, run.GatewayUsed, time.Since(start).Seconds())
	s.metrics.ObserveAttempt(run.GatewayResult.GatewayName, run.GatewayResult.Status)

	if s.notifier != nil {
		go s.notify(intent, run)
	}

	return intent, &ProcessResult{
		Status:       status,
		GatewayUsed:  run.GatewayUsed,
		BankDecision: string(run.GatewayResult.Status),
		BankReason:   run.GatewayResult.Reason,
		Trace:        run.Trace,
	}, nil
}

// notify runs detached from the request context: the outcome is already
// committed and a slow webhook must not hold the response.
func (s *Service) notify(intent *storage.PaymentIntent, run failover.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eventType := "payment.failed"
	if intent.Status == storage.StatusSucceeded {
		eventType = "payment.succeeded"
	}
	s.notifier.Notify(ctx, intent.MerchantID, eventType, map[string]any{
		"payment_intent_id": intent.ID,
		"amount":            intent.Amount,
		"currency":          intent.Currency,
		"status":            intent.Status,
		"gateway_used":      run.GatewayUsed,
		"bank_decision":     string(run.GatewayResult.Status),
		"bank_reason":       run.GatewayResult.Reason,
	})
}

func newIntentID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate intent id: %w", err)
	}
	return "pi_" + hex.EncodeToString(buf), nil
}
