package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func NewRabbitPublisher(url string, log *zap.Logger) (*RabbitPublisher, error) {
	conn, ch, err := dialExchange(url)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, log: log}, nil
}

func dialExchange(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey, tenantID string, payload any) error {
	env, err := NewEnvelope(routingKey, tenantID, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.log.Debug("event published",
		zap.String("exchange", ExchangeName),
		zap.String("routing_key", routingKey),
		zap.String("event_id", env.ID),
		zap.String("tenant_id", tenantID),
	)
	return nil
}

func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
