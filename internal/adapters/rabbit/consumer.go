package rabbit

import (
	"context"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

// Handler processes one delivery. A returned error nacks it.
type Handler func(ctx context.Context, d amqp.Delivery) error

type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger observability.Logger
}

// NewConsumer declares a durable queue bound to the events exchange for
// each routing key.
func NewConsumer(conn *amqp.Connection, queue string, logger observability.Logger, keys ...string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := ch.QueueBind(queue, key, Exchange, false, nil); err != nil {
			return nil, errors.Wrapf(err, "bind %s to %s", queue, key)
		}
	}
	if err := ch.Qos(8, 0, false); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue, logger: logger}, nil
}

func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

// Run feeds deliveries to h until ctx ends. A failed delivery is requeued
// once and dropped on its second failure.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	deliveries, err := c.Consume(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			log := c.logger.WithField("message_id", d.MessageId).WithField("routing_key", d.RoutingKey)
			if err := h(ctx, d); err != nil {
				log.WithError(err).WithField("redelivered", d.Redelivered).Error("message handling failed")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
