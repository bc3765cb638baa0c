package queue

import (
	"context"

	"dripmail/internal/domain"
)

// Publisher publishes send messages to the work queue.
type Publisher interface {
	Publish(ctx context.Context, msg SendMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg SendMessage) error

// Consumer consumes send messages from the work queue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

const (
	// WorkQueueName is the single email work queue.
	WorkQueueName = "email.sends"

	// DLQName holds messages rejected as unprocessable.
	DLQName = "dlq.email.sends"

	// queueMaxPriority is the RabbitMQ x-max-priority value for the work queue.
	queueMaxPriority int32 = 3
)

// PriorityValue maps rule priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityHigh:
		return 3
	case domain.PriorityNormal:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
