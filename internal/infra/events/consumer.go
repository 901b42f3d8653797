package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPermanent marks a handler failure that must not be redelivered.
var ErrPermanent = errors.New("permanent handler failure")

type Handler func(ctx context.Context, env Envelope) error

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *zap.Logger
}

// NewConsumer declares a durable queue bound to the given routing keys.
func NewConsumer(url, queue string, bindings []string, log *zap.Logger) (*Consumer, error) {
	conn, ch, err := dialExchange(url)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	for _, key := range bindings {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("rabbitmq queue bind %s: %w", key, err)
		}
	}
	if err := ch.Qos(8, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}

	return &Consumer{conn: conn, channel: ch, queue: q.Name, log: log}, nil
}

// Run blocks until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}
	c.log.Info("consuming", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("delivery channel closed", zap.String("queue", c.queue))
				return nil
			}
			c.handle(ctx, h, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, msg amqp.Delivery) {
	outcome := Dispatch(ctx, h, msg.Body)
	switch outcome {
	case Ack:
		_ = msg.Ack(false)
	case Requeue:
		_ = msg.Nack(false, !msg.Redelivered)
	default:
		_ = msg.Nack(false, false)
	}
	if outcome != Ack {
		c.log.Warn("event not acknowledged",
			zap.String("queue", c.queue),
			zap.String("message_id", msg.MessageId),
			zap.Bool("redelivered", msg.Redelivered),
		)
	}
}

type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Drop
)

// Dispatch decodes one message body and runs the handler on it.
func Dispatch(ctx context.Context, h Handler, body []byte) Outcome {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Drop
	}
	if err := h(ctx, env); err != nil {
		if errors.Is(err, ErrPermanent) {
			return Drop
		}
		return Requeue
	}
	return Ack
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
