package message_broaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// consumePrefetch caps unacknowledged deliveries held by one consumer.
const consumePrefetch = 32

type RabbitMQ struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	exchange  string
}

// NewRabbitMQ connects, declares a durable topic exchange and binds queue to it with bindingKey
// ("post.#" receives every post event).
func NewRabbitMQ(url, exchange, queue, bindingKey string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if queue != "" {
		if _, err := ch.QueueDeclare(
			queue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}

		if err := ch.QueueBind(
			queue,
			bindingKey,
			exchange,
			false,
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	return &RabbitMQ{
		conn:      conn,
		channel:   ch,
		queueName: queue,
		exchange:  exchange,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, message []byte) error {
	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         message,
		},
	)
}

// Consume reads queue with manual acks and hands each delivery to handle one at a time.
// Failed messages are requeued once; a second failure or ErrDiscard drops them.
func (r *RabbitMQ) Consume(ctx context.Context, queue string, handle Handler) error {
	if queue == "" {
		queue = r.queueName
	}
	if queue == "" {
		return errors.New("no queue configured to consume from")
	}
	if err := r.channel.Qos(consumePrefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch on %s: %w", queue, err)
	}

	tag := "postfire-" + uuid.NewString()
	deliveries, err := r.channel.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	defer func() { _ = r.channel.Cancel(tag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream of %s closed", queue)
			}
			if err := settle(ctx, d, handle); err != nil {
				return fmt.Errorf("settle delivery %d: %w", d.DeliveryTag, err)
			}
		}
	}
}

func settle(ctx context.Context, d amqp.Delivery, handle Handler) error {
	err := handle(ctx, d.Body)
	switch {
	case err == nil:
		return d.Ack(false)
	case errors.Is(err, ErrDiscard):
		return d.Reject(false)
	default:
		return d.Nack(false, !d.Redelivered)
	}
}

func (r *RabbitMQ) Close() error {
	return errors.Join(r.channel.Close(), r.conn.Close())
}
