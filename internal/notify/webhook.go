package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ArpitSharma4/nexus-gateway/internal/security"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

// MerchantLookup resolves a merchant record for webhook delivery.
type MerchantLookup interface {
	MerchantByID(ctx context.Context, id string) (*storage.Merchant, error)
}

// Webhook posts signed events to the merchant's configured webhook URL.
type Webhook struct {
	merchants MerchantLookup
	secret    string
	client    *http.Client
}

func NewWebhook(merchants MerchantLookup, secret string) *Webhook {
	return &Webhook{
		merchants: merchants,
		secret:    secret,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Send(ctx context.Context, merchantID string, event Event) error {
	merchant, err := w.merchants.MerchantByID(ctx, merchantID)
	if err != nil {
		return fmt.Errorf("lookup merchant %s: %w", merchantID, err)
	}
	if merchant.WebhookURL == "" {
		return nil
	}

	body, err := jsoniter.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, merchant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Nexus-Signature", security.SignWebhookPayload(body, w.secret))
	req.Header.Set("X-Nexus-Event", event.Type)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
