package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQPublisher publishes send messages to the work queue.
type RabbitMQPublisher struct {
	rmq    *RabbitMQ
	logger *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitMQPublisher(rmq *RabbitMQ, logger *zap.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		rmq:    rmq,
		logger: logger,
	}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg SendMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal send message: %w", err)
	}

	ch, err := p.channelForPublish(ctx)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.SendID,
		Priority:     PriorityValue(msg.Priority),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", WorkQueueName, false, false, publishing); err != nil {
		p.invalidateChannel(ch)

		ch, retryErr := p.channelForPublish(ctx)
		if retryErr != nil {
			return retryErr
		}

		if err := ch.PublishWithContext(ctx, "", WorkQueueName, false, false, publishing); err != nil {
			p.invalidateChannel(ch)
			return fmt.Errorf("failed to publish send message: %w", err)
		}
	}

	p.logger.Debug("published send message",
		zap.String("send_id", msg.SendID),
		zap.String("template_id", msg.TemplateID),
		zap.String("priority", string(msg.Priority)),
	)

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	ch := p.ch
	p.ch = nil
	p.mu.Unlock()

	if ch == nil {
		return nil
	}

	return ch.Close()
}

func (p *RabbitMQPublisher) channelForPublish(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.rmq.channel(ctx)
	if err != nil {
		return nil, err
	}

	p.ch = ch

	return ch, nil
}

func (p *RabbitMQPublisher) invalidateChannel(ch *amqp.Channel) {
	p.mu.Lock()
	if p.ch == ch {
		p.ch = nil
	}
	p.mu.Unlock()

	_ = ch.Close()
}
