package events

import (
	"context"
	"fmt"

	"marketplace-core/internal/domain"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by order id so one order's events stay on one
// partition in commit order.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: body,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("order.status_changed")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish order=%s: %w", ev.OrderID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
