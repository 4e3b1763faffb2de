package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/printwerk/labelpress/internal/domain"
)

// RabbitMQConsumer implements Consumer
type RabbitMQConsumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	consumerID string
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	URL        string
	Queue      string // queue name (default: labelpress.events)
	Binding    string // topic binding pattern (default: job.*)
	Prefetch   int    // messages to prefetch (default: 10)
	ConsumerID string // unique consumer identifier
}

// NewConsumer declares a durable queue bound to the event exchange
func NewConsumer(cfg ConsumerConfig) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel failed: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos failed: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("exchange declare failed: %w", err)
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "labelpress.events"
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue declare %s failed: %w", queue, err)
	}

	binding := cfg.Binding
	if binding == "" {
		binding = "job.*"
	}
	if err := ch.QueueBind(queue, binding, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue bind %s failed: %w", queue, err)
	}

	consumerID := cfg.ConsumerID
	if consumerID == "" {
		consumerID = fmt.Sprintf("events-%d", time.Now().UnixNano())
	}

	return &RabbitMQConsumer{
		conn:       conn,
		channel:    ch,
		queue:      queue,
		consumerID: consumerID,
	}, nil
}

// Consume delivers events to handler until ctx is cancelled. Events are
// notifications, not work items: a handler failure drops the event
// instead of requeueing, since the job record remains the source of
// truth.
func (c *RabbitMQConsumer) Consume(ctx context.Context, handler func(context.Context, *domain.JobEvent) error) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		c.consumerID,
		false, // auto-ack (we manually ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("consume from %s failed: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var event domain.JobEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.Printf("[Consumer] Failed to unmarshal event: %v", err)
				d.Reject(false)
				continue
			}

			if err := handler(ctx, &event); err != nil {
				log.Printf("[Consumer] Handler failed for job %s event %s: %v", event.JobID, event.Kind, err)
				d.Reject(false)
				continue
			}

			if err := d.Ack(false); err != nil {
				log.Printf("[Consumer] Ack failed for job %s: %v", event.JobID, err)
			}
		}
	}
}

// Close closes the consumer connection
func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
