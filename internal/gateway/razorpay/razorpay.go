// Package razorpay implements the Razorpay gateway adapter over the
// Razorpay Orders HTTP API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

const Name = "razorpay"

const apiBaseURL = "https://api.razorpay.com/v1"

const healthCheckTimeout = 5 * time.Second

// Adapter calls the Razorpay API with key-id/key-secret basic auth.
type Adapter struct {
	keyID      string
	keySecret  string
	httpClient *http.Client
	baseURL    string
}

// New creates a Razorpay adapter. Credential material stored as a single
// "key_id:key_secret" string is split automatically.
func New(keyID, keySecret string, client *http.Client) *Adapter {
	if keySecret == "" && strings.Contains(keyID, ":") {
		parts := strings.SplitN(keyID, ":", 2)
		keyID, keySecret = parts[0], parts[1]
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Adapter{
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: client,
		baseURL:    apiBaseURL,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) SupportedCurrencies() []string {
	return []string{"INR", "USD", "EUR", "GBP", "SGD", "AED"}
}

// Charge creates a Razorpay order. Razorpay's bad-request errors carry a
// definitive rejection and map to ChargeFailed; transport faults and 5xx
// responses map to ChargeError.
func (a *Adapter) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error) {
	receipt := req.IdempotencyKey
	if len(receipt) > 40 {
		receipt = receipt[:40]
	}
	body, err := json.Marshal(map[string]any{
		"amount":   req.Amount,
		"currency": strings.ToUpper(req.Currency),
		"receipt":  receipt,
		"notes":    map[string]string{"source": "nexus-gateway"},
	})
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("razorpay: encode order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("razorpay: build request: %w", err)
	}
	httpReq.SetBasicAuth(a.keyID, a.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("razorpay: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.ChargeResult{}, fmt.Errorf("razorpay: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var order struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(respBody, &order); err != nil {
			return gateway.ChargeResult{}, fmt.Errorf("razorpay: decode response: %w", err)
		}
		status := order.Status
		if status == "" {
			status = "created"
		}
		return gateway.ChargeResult{
			Status:        gateway.ChargeSuccess,
			GatewayName:   Name,
			TransactionID: order.ID,
			Reason:        fmt.Sprintf("Order created: %s", status),
			RawResponse:   respBody,
		}, nil
	}

	var rzpErr struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	_ = json.Unmarshal(respBody, &rzpErr)
	reason := rzpErr.Error.Description
	if reason == "" {
		reason = fmt.Sprintf("Razorpay API returned HTTP %d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusBadRequest {
		return gateway.ChargeResult{
			Status:      gateway.ChargeFailed,
			GatewayName: Name,
			Reason:      reason,
			RawResponse: respBody,
		}, nil
	}
	return gateway.ChargeResult{
		Status:      gateway.ChargeError,
		GatewayName: Name,
		Reason:      reason,
		RawResponse: respBody,
	}, nil
}

// HealthCheck fetches a single order, a cheap authenticated call.
func (a *Adapter) HealthCheck(ctx context.Context) gateway.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/orders?count=1", nil)
	if err != nil {
		return gateway.HealthResult{GatewayName: Name, Status: gateway.StatusDown, Message: err.Error()}
	}
	httpReq.SetBasicAuth(a.keyID, a.keySecret)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return gateway.HealthResult{GatewayName: Name, Status: gateway.StatusDown, Message: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	latency := float64(time.Since(start).Microseconds()) / 1000
	if resp.StatusCode != http.StatusOK {
		return gateway.HealthResult{
			GatewayName: Name,
			Status:      gateway.StatusDown,
			LatencyMs:   latency,
			Message:     fmt.Sprintf("Razorpay API returned HTTP %d", resp.StatusCode),
		}
	}
	return gateway.HealthResult{
		GatewayName: Name,
		Status:      gateway.StatusHealthy,
		LatencyMs:   latency,
		Message:     "Razorpay API reachable.",
	}
}
