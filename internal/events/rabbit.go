package events

import (
	"context"
	"fmt"
	"sync"

	"marketplace-core/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher fans events out through a durable fanout exchange so every
// bound consumer queue receives each change.
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
	ch amqpChannel
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, exchange: exchange, ch: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.Timestamp,
		Type:         "order.status_changed",
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish order=%s: %w", ev.OrderID, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
