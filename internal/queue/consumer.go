package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const consumerPrefetch = 16

// RabbitMQConsumer consumes send messages from the work queue.
type RabbitMQConsumer struct {
	rmq    *RabbitMQ
	logger *zap.Logger

	ch *amqp.Channel
}

func NewRabbitMQConsumer(rmq *RabbitMQ, logger *zap.Logger) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		rmq:    rmq,
		logger: logger,
	}
}

// Consume delivers messages to handler until ctx is canceled or the
// underlying channel closes. Malformed messages are rejected without
// requeue so the broker dead-letters them. Handler errors nack with
// requeue once; redelivered failures go to the DLQ.
func (c *RabbitMQConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	ch, err := c.rmq.channel(ctx)
	if err != nil {
		return err
	}
	c.ch = ch

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(WorkQueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}

			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler MessageHandler) {
	var msg SendMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.Warn("rejecting malformed send message",
			zap.String("message_id", delivery.MessageId),
			zap.Error(err),
		)
		_ = delivery.Reject(false)
		return
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting invalid send message",
			zap.String("message_id", delivery.MessageId),
			zap.Error(err),
		)
		_ = delivery.Reject(false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !delivery.Redelivered
		c.logger.Error("send message handling failed",
			zap.String("send_id", msg.SendID),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		_ = delivery.Nack(false, requeue)
		return
	}

	_ = delivery.Ack(false)
}

func (c *RabbitMQConsumer) Close() error {
	if c.ch == nil {
		return nil
	}

	return c.ch.Close()
}
