package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

// RabbitSink publishes envelopes to a durable topic exchange with publisher
// confirms enabled.
type RabbitSink struct {
	conn     *amqp091.Connection
	exchange string
}

func NewRabbitSink(ctx context.Context, url, exchange string) (*RabbitSink, error) {
	var conn *amqp091.Connection
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := amqp091.Dial(url)
		if err != nil {
			log.Printf("RabbitMQ dial failed, retrying: %v", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitSink{conn: conn, exchange: exchange}, nil
}

func (r *RabbitSink) Deliver(ctx context.Context, key string, env Envelope) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx, r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    env.Meta.ID,
			Timestamp:    env.Meta.Time,
			Body:         body,
		},
	)
}

func (r *RabbitSink) Close() error {
	return r.conn.Close()
}
