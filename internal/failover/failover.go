// Package failover drives the ordered candidate list produced by the
// routing engine: one charge attempt per gateway, terminal on the first
// success or the first decline, moving to the next candidate only on
// inconclusive errors. Every step is recorded in a timestamped trace log
// that doubles as the API response payload and the persisted audit trail.
package failover

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/razorpay"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/simulator"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/stripe"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Trace sources: "nexus" marks the orchestrating layer's milestones,
// "engine" the failover loop's internal decisions.
const (
	SourceNexus  = "nexus"
	SourceEngine = "engine"
)

// TraceEntry is one immutable timestamped line in the routing trace.
type TraceEntry struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// Result is the combined outcome of one failover run.
type Result struct {
	GatewayResult gateway.ChargeResult
	GatewayUsed   string
	Trace         []TraceEntry
}

// TraceJSON serializes the trace log for persistence.
func (r *Result) TraceJSON() string {
	out, err := json.Marshal(r.Trace)
	if err != nil {
		return "[]"
	}
	return string(out)
}

func (r *Result) addTrace(source, message string) {
	r.Trace = append(r.Trace, TraceEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    source,
		Message:   message,
	})
}

// Execute tries each gateway in order with a shared idempotency key.
//
// A gateway error (network failure, 5xx, timeout, panic) moves on to the
// next candidate. A decline does not: the provider made a decision and
// retrying it elsewhere would re-run a genuinely rejected payment.
func Execute(ctx context.Context, gateways []gateway.Gateway, req gateway.ChargeRequest, log *logrus.Entry) Result {
	ctx, span := otel.Tracer("failover").Start(ctx, "failover.Execute")
	defer span.End()

	result := Result{}
	result.addTrace(SourceNexus, fmt.Sprintf("Request received for %.2f %s.", float64(req.Amount)/100, req.Currency))
	result.addTrace(SourceEngine, fmt.Sprintf("Evaluating %d gateway(s): %v", len(gateways), gatewayNames(gateways)))

	for i, gw := range gateways {
		result.addTrace(SourceEngine, fmt.Sprintf("Routing to %s (%s).", title(gw.Name()), routeReason(gw.Name(), req.Currency)))

		gwResult := charge(ctx, gw, req, log)

		switch gwResult.Status {
		case gateway.ChargeSuccess:
			result.GatewayResult = gwResult
			result.GatewayUsed = gw.Name()
			result.addTrace(SourceNexus, fmt.Sprintf("Payment Succeeded via %s.", title(gw.Name())))
			return result

		case gateway.ChargeFailed:
			result.GatewayResult = gwResult
			result.GatewayUsed = gw.Name()
			result.addTrace(SourceNexus, fmt.Sprintf("Payment Declined by %s: %s", title(gw.Name()), gwResult.Reason))
			return result
		}

		result.addTrace(SourceEngine, fmt.Sprintf("Error from %s: %s", title(gw.Name()), gwResult.Reason))
		if i < len(gateways)-1 {
			result.addTrace(SourceEngine, fmt.Sprintf("Switching to %s backup...", title(gateways[i+1].Name())))
		} else {
			result.addTrace(SourceEngine, "No more gateways available for failover.")
		}
	}

	// Empty candidate list, or every candidate errored.
	result.GatewayResult = gateway.ChargeResult{
		Status:      gateway.ChargeError,
		GatewayName: SourceNexus,
		Reason:      "No gateways found or all gateways failed to initialize.",
	}
	if len(gateways) > 0 {
		result.GatewayUsed = gateways[len(gateways)-1].Name()
	} else {
		result.GatewayUsed = "none"
	}
	result.addTrace(SourceNexus, "All gateways exhausted. Payment failed.")
	return result
}

// charge invokes one adapter, normalizing every fault to ChargeError.
// Nothing an adapter does, returned error or panic, may escape past
// this boundary.
func charge(ctx context.Context, gw gateway.Gateway, req gateway.ChargeRequest, log *logrus.Entry) (result gateway.ChargeResult) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("gateway", gw.Name()).Warnf("gateway panicked: %v", r)
			result = gateway.ChargeResult{
				Status:      gateway.ChargeError,
				GatewayName: gw.Name(),
				Reason:      fmt.Sprint(r),
			}
		}
	}()

	res, err := gw.Charge(ctx, req)
	if err != nil {
		log.WithField("gateway", gw.Name()).WithError(err).Warn("gateway charge errored")
		return gateway.ChargeResult{
			Status:      gateway.ChargeError,
			GatewayName: gw.Name(),
			Reason:      err.Error(),
		}
	}
	return res
}

func gatewayNames(gateways []gateway.Gateway) []string {
	names := make([]string, 0, len(gateways))
	for _, gw := range gateways {
		names = append(names, gw.Name())
	}
	return names
}

// routeReason is a human-readable explanation of why a candidate is in
// the list, purely for trace observability.
func routeReason(name, currency string) string {
	currency = strings.ToUpper(currency)
	switch {
	case name == razorpay.Name && currency == "INR":
		return "Optimized for INR"
	case name == stripe.Name && (currency == "USD" || currency == "EUR" || currency == "GBP"):
		return "Optimized for international"
	case name == simulator.Name:
		return "Built-in fallback"
	default:
		return "Policy match"
	}
}

func title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
