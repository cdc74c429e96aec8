package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		Channel: ch,
	}, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// DeclareTopicExchange declares the durable exchange events are routed
// through, keyed by tenant id.
func (r *RabbitMQ) DeclareTopicExchange(name string) error {
	return r.Channel.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareInstanceQueue declares an exclusive, auto-deleted queue for
// this instance and binds it to the exchange. The queue disappears with
// the connection, so a crashed instance leaves nothing behind.
func (r *RabbitMQ) DeclareInstanceQueue(exchange, queueName, bindingKey string) (string, error) {
	q, err := r.Channel.QueueDeclare(
		queueName,
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := r.Channel.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue to %s: %w", exchange, err)
	}

	return q.Name, nil
}

func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, routingKey string, headers amqp.Table, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.Channel.PublishWithContext(publishCtx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Headers:     headers,
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}

func (r *RabbitMQ) ConsumeMessages(queueName string, handler func(ctx context.Context, msg amqp.Delivery) error) error {
	deliveries, err := r.Channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", queueName, err)
	}

	go func() {
		for msg := range deliveries {
			if err := handler(context.Background(), msg); err != nil {
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}()

	return nil
}
