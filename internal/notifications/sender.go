package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher hands a dispatched reminder to the push pipeline.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// AMQPPublisher publishes reminder events to a durable RabbitMQ queue that
// the push worker consumes. Nil-safe: a nil publisher drops every event.
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPPublisher dials the broker and declares the queue.
// Returns nil, nil if url is empty (push disabled).
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	// Durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare %s: %w", queue, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends one persistent JSON event.
func (p *AMQPPublisher) Publish(ctx context.Context, rec Record) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal push event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         "maintenance.reminder",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close shuts down channel and connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	_ = p.ch.Close()
	return p.conn.Close()
}
