// Package stripe implements the Stripe gateway adapter over the Stripe
// HTTP API. With a test-mode secret key (sk_test_...) it operates
// entirely in Stripe's test environment.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

const Name = "stripe"

const apiBaseURL = "https://api.stripe.com/v1"

const healthCheckTimeout = 5 * time.Second

// Adapter calls the Stripe API directly over HTTP.
type Adapter struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// New creates a Stripe adapter. A nil client gets a 10s-timeout default.
func New(apiKey string, client *http.Client) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{
		apiKey:     apiKey,
		httpClient: client,
		baseURL:    apiBaseURL,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) SupportedCurrencies() []string {
	return []string{"USD", "EUR", "GBP", "INR", "CAD", "AUD", "SGD", "JPY"}
}

// errorResponse is the error envelope Stripe returns on non-2xx codes.
type errorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
	} `json:"error"`
}

// Charge creates a Stripe PaymentIntent. Card declines map to
// ChargeFailed; transport faults and 5xx responses map to ChargeError so
// the failover executor can try the next gateway.
func (a *Adapter) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error) {
	payload := url.Values{}
	payload.Set("amount", strconv.FormatInt(req.Amount, 10))
	payload.Set("currency", strings.ToLower(req.Currency))
	payload.Set("payment_method_types[]", "card")
	payload.Set("metadata[source]", "nexus-gateway")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/payment_intents", strings.NewReader(payload.Encode()))
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("stripe: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("stripe: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("stripe: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var intent struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &intent); err != nil {
			return gateway.ChargeResult{}, fmt.Errorf("stripe: decode response: %w", err)
		}
		return gateway.ChargeResult{
			Status:        gateway.ChargeSuccess,
			GatewayName:   Name,
			TransactionID: intent.ID,
			Reason:        fmt.Sprintf("PaymentIntent created: %s", intent.Status),
			RawResponse:   body,
		}, nil
	}

	var stripeErr errorResponse
	_ = json.Unmarshal(body, &stripeErr)

	// 402 card_error is a definitive decline; anything else never reached
	// a decision and is eligible for failover.
	if resp.StatusCode == http.StatusPaymentRequired || stripeErr.Error.Type == "card_error" {
		reason := stripeErr.Error.Message
		if stripeErr.Error.DeclineCode != "" {
			reason = fmt.Sprintf("%s (%s)", reason, stripeErr.Error.DeclineCode)
		}
		return gateway.ChargeResult{
			Status:      gateway.ChargeFailed,
			GatewayName: Name,
			Reason:      reason,
			RawResponse: body,
		}, nil
	}

	reason := stripeErr.Error.Message
	if reason == "" {
		reason = fmt.Sprintf("Stripe API returned HTTP %d", resp.StatusCode)
	}
	return gateway.ChargeResult{
		Status:      gateway.ChargeError,
		GatewayName: Name,
		Reason:      reason,
		RawResponse: body,
	}, nil
}

// HealthCheck retrieves the account balance, the lightest authenticated
// Stripe call. Any failure converts to StatusDown; it never errors.
func (a *Adapter) HealthCheck(ctx context.Context) gateway.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/balance", nil)
	if err != nil {
		return down(err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return down(err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	latency := float64(time.Since(start).Microseconds()) / 1000
	if resp.StatusCode != http.StatusOK {
		return gateway.HealthResult{
			GatewayName: Name,
			Status:      gateway.StatusDown,
			LatencyMs:   latency,
			Message:     fmt.Sprintf("Stripe API returned HTTP %d", resp.StatusCode),
		}
	}
	return gateway.HealthResult{
		GatewayName: Name,
		Status:      gateway.StatusHealthy,
		LatencyMs:   latency,
		Message:     "Stripe API reachable.",
	}
}

func down(msg string) gateway.HealthResult {
	return gateway.HealthResult{GatewayName: Name, Status: gateway.StatusDown, Message: msg}
}
