package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/gatewaytest"
	"github.com/ArpitSharma4/nexus-gateway/internal/routing"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

func available(names ...string) map[string]gateway.Gateway {
	m := make(map[string]gateway.Gateway, len(names))
	for _, n := range names {
		m[n] = gatewaytest.New(n)
	}
	return m
}

func names(gateways []gateway.Gateway) []string {
	out := make([]string, 0, len(gateways))
	for _, g := range gateways {
		out = append(out, g.Name())
	}
	return out
}

func inr(amount int64) routing.Payment {
	return routing.Payment{MerchantID: "m1", Amount: amount, Currency: "INR"}
}

func TestSelect_NoRules_SimulatorLast(t *testing.T) {
	got := routing.Select(inr(5000), nil, available("stripe", "simulator", "razorpay"), nil)
	assert.Equal(t, []string{"razorpay", "stripe", "simulator"}, names(got))
}

func TestSelect_OutageIsHardExclusion(t *testing.T) {
	rules := []storage.RoutingRule{
		{RuleType: routing.RuleTypePriority, GatewayName: "razorpay", Priority: 0},
	}
	outages := map[string]bool{"razorpay": true}

	got := routing.Select(inr(5000), rules, available("razorpay", "simulator"), outages)
	assert.Equal(t, []string{"simulator"}, names(got),
		"a killed gateway never appears, even when a rule targets it")
}

func TestSelect_RuleOrderingWinsOverLexical(t *testing.T) {
	rules := []storage.RoutingRule{
		{RuleType: routing.RuleTypeCurrency, GatewayName: "razorpay", Conditions: `{"currency":"INR"}`, Priority: 0},
	}
	got := routing.Select(inr(5000), rules, available("stripe", "razorpay", "simulator"), nil)
	assert.Equal(t, []string{"razorpay", "stripe", "simulator"}, names(got))
}

func TestSelect_FirstMatchPerGatewayWins(t *testing.T) {
	rules := []storage.RoutingRule{
		{RuleType: routing.RuleTypePriority, GatewayName: "stripe", Priority: 0},
		{RuleType: routing.RuleTypeCurrency, GatewayName: "stripe", Conditions: `{"currency":"INR"}`, Priority: 1},
		{RuleType: routing.RuleTypePriority, GatewayName: "razorpay", Priority: 2},
	}
	got := routing.Select(inr(5000), rules, available("stripe", "razorpay", "simulator"), nil)
	assert.Equal(t, []string{"stripe", "razorpay", "simulator"}, names(got))
}

func TestSelect_RuleForUnavailableGatewaySkipped(t *testing.T) {
	rules := []storage.RoutingRule{
		{RuleType: routing.RuleTypePriority, GatewayName: "stripe", Priority: 0},
	}
	got := routing.Select(inr(5000), rules, available("simulator"), nil)
	assert.Equal(t, []string{"simulator"}, names(got))
}

func TestSelect_EmptyWhenEverythingExcluded(t *testing.T) {
	got := routing.Select(inr(5000), nil, available("simulator"), map[string]bool{"simulator": true})
	assert.Empty(t, got)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		rule     storage.RoutingRule
		amount   int64
		currency string
		want     bool
	}{
		{"priority always matches", storage.RoutingRule{RuleType: "priority"}, 1, "USD", true},
		{"priority matches with empty conditions", storage.RoutingRule{RuleType: "priority", Conditions: ""}, 1, "USD", true},
		{"currency exact", storage.RoutingRule{RuleType: "currency", Conditions: `{"currency":"INR"}`}, 100, "INR", true},
		{"currency case-insensitive", storage.RoutingRule{RuleType: "currency", Conditions: `{"currency":"INR"}`}, 100, "inr", true},
		{"currency mismatch", storage.RoutingRule{RuleType: "currency", Conditions: `{"currency":"INR"}`}, 100, "USD", false},
		{"currency missing key", storage.RoutingRule{RuleType: "currency", Conditions: `{}`}, 100, "INR", false},
		{"amount at threshold", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{"min_amount":10000}`}, 10000, "INR", true},
		{"amount below threshold", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{"min_amount":10000}`}, 9999, "INR", false},
		{"amount missing key defaults to zero", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{}`}, 10000, "INR", true},
		{"amount non-numeric min", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{"min_amount":"high"}`}, 10000, "INR", false},
		{"malformed json never matches", storage.RoutingRule{RuleType: "currency", Conditions: `{curr`}, 100, "INR", false},
		{"unknown type never matches", storage.RoutingRule{RuleType: "geo", Conditions: `{"country":"IN"}`}, 100, "INR", false},
		{"expression match", storage.RoutingRule{RuleType: "expression", Conditions: `{"expression":"amount >= 5000 && currency == 'INR'"}`}, 5000, "inr", true},
		{"expression no match", storage.RoutingRule{RuleType: "expression", Conditions: `{"expression":"amount >= 5000 && currency == 'INR'"}`}, 4999, "INR", false},
		{"expression non-boolean result", storage.RoutingRule{RuleType: "expression", Conditions: `{"expression":"amount + 1"}`}, 100, "INR", false},
		{"expression parse error", storage.RoutingRule{RuleType: "expression", Conditions: `{"expression":"amount >=&&"}`}, 100, "INR", false},
		{"expression missing key", storage.RoutingRule{RuleType: "expression", Conditions: `{}`}, 100, "INR", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, routing.Matches(tt.rule, tt.amount, tt.currency))
		})
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    storage.RoutingRule
		wantErr bool
	}{
		{"priority no conditions", storage.RoutingRule{RuleType: "priority"}, false},
		{"currency ok", storage.RoutingRule{RuleType: "currency", Conditions: `{"currency":"INR"}`}, false},
		{"currency missing key", storage.RoutingRule{RuleType: "currency", Conditions: `{}`}, true},
		{"amount ok", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{"min_amount":10000}`}, false},
		{"amount without min", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{}`}, false},
		{"amount non-numeric min", storage.RoutingRule{RuleType: "amount_threshold", Conditions: `{"min_amount":"high"}`}, true},
		{"expression ok", storage.RoutingRule{RuleType: "expression", Conditions: `{"expression":"amount >= 5000"}`}, false},
		{"expression unparseable", storage.RoutingRule{RuleType: "expression", Conditions: `{"expression":"amount >=&&"}`}, true},
		{"expression missing key", storage.RoutingRule{RuleType: "expression", Conditions: `{}`}, true},
		{"malformed json", storage.RoutingRule{RuleType: "currency", Conditions: `{curr`}, true},
		{"unknown type", storage.RoutingRule{RuleType: "geo", Conditions: `{"country":"IN"}`}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := routing.ValidateRule(tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOutages(t *testing.T) {
	records := []storage.GatewayHealth{
		{GatewayName: "stripe", Status: "down", IsSimulatedOutage: false},
		{GatewayName: "razorpay", Status: "healthy", IsSimulatedOutage: true},
	}
	out := routing.Outages(records)
	require.Len(t, out, 1)
	assert.True(t, out["razorpay"], "outage flag is independent of measured status")
}

// One INR currency rule targeting razorpay, a 5000 INR payment,
// razorpay and simulator available and healthy.
func TestSelect_INRCurrencyRule(t *testing.T) {
	rules := []storage.RoutingRule{
		{RuleType: routing.RuleTypeCurrency, GatewayName: "razorpay", Conditions: `{"currency":"INR"}`, Priority: 0},
	}
	got := routing.Select(inr(5000), rules, available("razorpay", "simulator"), nil)
	assert.Equal(t, []string{"razorpay", "simulator"}, names(got))
}
