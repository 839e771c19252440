// Package factory builds the set of gateway adapters available to a
// merchant from explicit configuration. It is a pure function of the
// configuration handed to it; there is no process-wide registry.
package factory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/razorpay"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/simulator"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/stripe"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

// Config describes one gateway enabled for a merchant. Credential is the
// opaque material stored against the merchant: a secret key for Stripe,
// a "key_id:key_secret" pair for Razorpay.
type Config struct {
	GatewayName string
	Enabled     bool
	Credential  string
}

// Env carries process-level fallback credentials used when a merchant
// has no row of their own for a gateway.
type Env struct {
	StripeSecretKey string
	RazorpayKey     string // "key_id:key_secret"
}

// Build returns the gateway_name -> adapter map for one merchant. The
// simulator is always present so every payment has a guaranteed-available
// candidate of last resort. Disabled or credential-less configs are
// skipped; env fallbacks fill gateways the merchant did not configure.
func Build(configs []Config, env Env, client *http.Client) map[string]gateway.Gateway {
	gateways := make(map[string]gateway.Gateway)

	for _, cfg := range configs {
		if !cfg.Enabled || cfg.Credential == "" {
			continue
		}
		switch cfg.GatewayName {
		case stripe.Name:
			gateways[stripe.Name] = stripe.New(cfg.Credential, client)
		case razorpay.Name:
			gateways[razorpay.Name] = razorpay.New(cfg.Credential, "", client)
		}
	}

	if _, ok := gateways[stripe.Name]; !ok && env.StripeSecretKey != "" {
		gateways[stripe.Name] = stripe.New(env.StripeSecretKey, client)
	}
	if _, ok := gateways[razorpay.Name]; !ok && env.RazorpayKey != "" {
		gateways[razorpay.Name] = razorpay.New(env.RazorpayKey, "", client)
	}

	gateways[simulator.Name] = simulator.New()
	return gateways
}

// ConfigStore loads a merchant's gateway configuration rows.
type ConfigStore interface {
	GatewayConfigsForMerchant(ctx context.Context, merchantID string) ([]storage.GatewayConfig, error)
}

// Source resolves per-merchant adapters from stored configuration, with
// process-level env credentials as the fallback.
type Source struct {
	store  ConfigStore
	env    Env
	client *http.Client
}

func NewSource(store ConfigStore, env Env, client *http.Client) *Source {
	return &Source{store: store, env: env, client: client}
}

func (s *Source) ForMerchant(ctx context.Context, merchantID string) (map[string]gateway.Gateway, error) {
	rows, err := s.store.GatewayConfigsForMerchant(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load gateway configs for %s: %w", merchantID, err)
	}
	configs := make([]Config, 0, len(rows))
	for _, row := range rows {
		configs = append(configs, Config{
			GatewayName: row.GatewayName,
			Enabled:     row.Enabled,
			Credential:  row.APIKey,
		})
	}
	return Build(configs, s.env, s.client), nil
}
