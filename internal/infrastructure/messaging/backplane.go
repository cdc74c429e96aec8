package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
)

const originHeader = "x-origin-instance"

// Backplane fans domain events out to sibling instances over a topic
// exchange keyed by tenant id. Every instance binds a wildcard queue
// and suppresses its own publishes by origin tag, so delivery across
// the fleet is at-least-once and consumers stay idempotent.
type Backplane struct {
	rabbitmq   *RabbitMQ
	exchange   string
	instanceID string
	queueName  string
	logger     logging.Logger
}

func NewBackplane(rabbitmq *RabbitMQ, exchange, instanceID string, logger logging.Logger) (*Backplane, error) {
	if err := rabbitmq.DeclareTopicExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queueName, err := rabbitmq.DeclareInstanceQueue(exchange, "tabsync."+instanceID, "#")
	if err != nil {
		return nil, err
	}

	return &Backplane{
		rabbitmq:   rabbitmq,
		exchange:   exchange,
		instanceID: instanceID,
		queueName:  queueName,
		logger:     logger,
	}, nil
}

func (b *Backplane) Publish(ctx context.Context, event domain.DomainEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := amqp.Table{originHeader: b.instanceID}

	return b.rabbitmq.PublishMessage(ctx, b.exchange, event.TenantID, headers, body)
}

// Subscribe re-emits remote events through the handler. Events this
// instance published are skipped: they were already delivered locally.
func (b *Backplane) Subscribe(handler func(event domain.DomainEvent)) error {
	return b.rabbitmq.ConsumeMessages(b.queueName, func(ctx context.Context, msg amqp.Delivery) error {
		if origin, ok := msg.Headers[originHeader].(string); ok && origin == b.instanceID {
			return nil
		}

		var event domain.DomainEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			b.logger.Error(logging.RabbitMQ, logging.Backplane, "malformed backplane event", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		handler(event)
		return nil
	})
}

func (b *Backplane) Close() {
	b.rabbitmq.Close()
}
