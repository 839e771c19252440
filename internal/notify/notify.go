// Package notify delivers payment event notifications after the outcome
// has been committed. Delivery is strictly best-effort: every failure is
// logged and swallowed, never surfaced to the payment flow.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is the envelope both the webhook and the event bus carry.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"created_at"`
}

func newEvent(eventType string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Sink is one notification channel.
type Sink interface {
	Send(ctx context.Context, merchantID string, event Event) error
}

// Dispatcher fans one event out to every configured sink.
type Dispatcher struct {
	sinks []Sink
	log   *logrus.Entry
}

func NewDispatcher(log *logrus.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks: sinks,
		log:   log.WithField("component", "notify"),
	}
}

// Notify delivers the event to all sinks. Errors are logged only.
func (d *Dispatcher) Notify(ctx context.Context, merchantID, eventType string, data map[string]any) {
	event := newEvent(eventType, data)
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, merchantID, event); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"merchant_id": merchantID,
				"event_type":  eventType,
			}).Warn("notification delivery failed")
		}
	}
}
