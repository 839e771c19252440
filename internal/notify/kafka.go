package notify

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher mirrors each event onto the payment events topic so
// downstream consumers (ledger, analytics) see the same stream merchants do.
type KafkaPublisher struct {
	writer     *kafka.Writer
	maxRetries int
	baseDelay  time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
	}
}

func (p *KafkaPublisher) Send(ctx context.Context, merchantID string, event Event) error {
	value, err := jsoniter.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(merchantID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	var lastErr error
	delay := p.baseDelay
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("publish after %d retries: %w", p.maxRetries, lastErr)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
