// Package routing decides, per payment, the ordered candidate list of
// gateways the failover executor will try. The decision is a pure
// function of the merchant's rules, the live health/outage state and the
// payment attributes; it performs no I/O of its own.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	jsoniter "github.com/json-iterator/go"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/simulator"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Rule types understood by the engine. Unrecognized types never match.
const (
	RuleTypePriority        = "priority"
	RuleTypeCurrency        = "currency"
	RuleTypeAmountThreshold = "amount_threshold"
	RuleTypeExpression      = "expression"
)

// Payment carries the attributes rules are evaluated against.
type Payment struct {
	MerchantID string
	Amount     int64 // smallest currency unit
	Currency   string
}

// Outages extracts the set of gateways an operator has manually forced
// out of rotation from a health snapshot.
func Outages(records []storage.GatewayHealth) map[string]bool {
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.IsSimulatedOutage {
			out[rec.GatewayName] = true
		}
	}
	return out
}

// Select evaluates the merchant's rules against the payment and returns
// the ordered list of gateways to attempt:
//
//  1. Gateways under a simulated outage are excluded outright, whatever
//     their measured health says.
//  2. Rules run in the order given (priority ascending, ties by
//     insertion); the first match per gateway wins.
//  3. Every remaining gateway is appended as a fallback in lexical
//     order, simulator last.
//
// Rules must already be sorted by the caller (the store orders them).
func Select(p Payment, rules []storage.RoutingRule, available map[string]gateway.Gateway, outages map[string]bool) []gateway.Gateway {
	eligible := make(map[string]gateway.Gateway, len(available))
	for name, gw := range available {
		if !outages[name] {
			eligible[name] = gw
		}
	}

	var ordered []string
	used := make(map[string]bool)

	for _, rule := range rules {
		if _, ok := eligible[rule.GatewayName]; !ok {
			continue
		}
		if used[rule.GatewayName] {
			continue
		}
		if Matches(rule, p.Amount, p.Currency) {
			ordered = append(ordered, rule.GatewayName)
			used[rule.GatewayName] = true
		}
	}

	var rest []string
	for name := range eligible {
		if !used[name] {
			rest = append(rest, name)
		}
	}
	// Simulator is the guaranteed-available fallback of last resort,
	// so it always sorts behind every real gateway.
	sort.Slice(rest, func(i, j int) bool {
		si, sj := rest[i] == simulator.Name, rest[j] == simulator.Name
		if si != sj {
			return sj
		}
		return rest[i] < rest[j]
	})
	ordered = append(ordered, rest...)

	result := make([]gateway.Gateway, 0, len(ordered))
	for _, name := range ordered {
		result = append(result, eligible[name])
	}
	return result
}

// Matches reports whether one rule applies to a payment. Malformed
// condition data and unknown rule types are non-matches, never errors:
// a bad rule must not break routing for the rules around it.
func Matches(rule storage.RoutingRule, amount int64, currency string) bool {
	if rule.RuleType == RuleTypePriority {
		// Priority rules exist purely to force ordering.
		return true
	}

	var conditions map[string]any
	if rule.Conditions != "" {
		if err := json.Unmarshal([]byte(rule.Conditions), &conditions); err != nil {
			return false
		}
	}

	switch rule.RuleType {
	case RuleTypeCurrency:
		target, _ := conditions["currency"].(string)
		return target != "" && strings.EqualFold(currency, target)

	case RuleTypeAmountThreshold:
		// An absent min_amount defaults to 0, matching every amount.
		min := float64(0)
		if raw, present := conditions["min_amount"]; present {
			f, isNum := raw.(float64)
			if !isNum {
				return false
			}
			min = f
		}
		return amount >= int64(min)

	case RuleTypeExpression:
		src, _ := conditions["expression"].(string)
		return evalExpression(src, amount, currency)
	}

	return false
}

// ValidateRule checks a rule at write time: the type must be known, the
// conditions must parse as JSON, and the keys the type evaluates must be
// present and well-typed. Matches stays lenient for rules already stored;
// this keeps new malformed rules out of the table in the first place.
func ValidateRule(rule storage.RoutingRule) error {
	switch rule.RuleType {
	case RuleTypePriority, RuleTypeCurrency, RuleTypeAmountThreshold, RuleTypeExpression:
	default:
		return fmt.Errorf("unknown rule type %q", rule.RuleType)
	}

	var conditions map[string]any
	if rule.Conditions != "" {
		if err := json.Unmarshal([]byte(rule.Conditions), &conditions); err != nil {
			return fmt.Errorf("conditions must be a JSON object: %w", err)
		}
	}

	switch rule.RuleType {
	case RuleTypeCurrency:
		if target, _ := conditions["currency"].(string); target == "" {
			return errors.New(`currency rules require a "currency" string condition`)
		}
	case RuleTypeAmountThreshold:
		if raw, present := conditions["min_amount"]; present {
			if _, isNum := raw.(float64); !isNum {
				return errors.New(`"min_amount" must be a number`)
			}
		}
	case RuleTypeExpression:
		src, _ := conditions["expression"].(string)
		if src == "" {
			return errors.New(`expression rules require an "expression" string condition`)
		}
		if _, err := govaluate.NewEvaluableExpression(src); err != nil {
			return fmt.Errorf("invalid expression: %w", err)
		}
	}
	return nil
}

// evalExpression evaluates a govaluate expression with the payment's
// amount and currency bound as parameters. Anything other than a clean
// boolean true is a non-match.
func evalExpression(src string, amount int64, currency string) bool {
	if src == "" {
		return false
	}
	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return false
	}
	result, err := expr.Evaluate(map[string]any{
		"amount":   float64(amount),
		"currency": strings.ToUpper(currency),
	})
	if err != nil {
		return false
	}
	matched, ok := result.(bool)
	return ok && matched
}
