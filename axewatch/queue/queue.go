// Package queue provides AMQP ingestion for scan results: submissions may
// arrive on a broker queue as the same JSON payload the HTTP endpoint
// accepts.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"
)

// MessageProcessor is a type for functions that can process messages.
type MessageProcessor func(msg string)

// ListenWithRetry listens to a queue with automatic reconnection. On failure
// it retries the connection with exponential backoff (1s → 30s cap) and
// reconnects if the broker drops the connection. The listener stops cleanly
// when ctx is cancelled.
func ListenWithRetry(ctx context.Context, brokerURL, qName string, messageProcessor MessageProcessor) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		if ctx.Err() != nil {
			slog.Info("Listener shutting down (context cancelled)", "queue", qName)
			return
		}

		err := listenOnce(ctx, brokerURL, qName, messageProcessor)
		if ctx.Err() != nil {
			slog.Info("Listener stopped", "queue", qName)
			return
		}

		if err != nil {
			slog.Warn("Listener error, retrying", "queue", qName, "error", err, "backoff", backoff)
		} else {
			// Channel closed without error (e.g. broker restart) — reset backoff
			slog.Info("Listener disconnected, reconnecting", "queue", qName)
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// listenOnce connects to the broker, consumes from the given queue, and
// processes messages until the connection drops or ctx is cancelled.
func listenOnce(ctx context.Context, brokerURL, qName string, messageProcessor MessageProcessor) error {
	conn, err := amqp.Dial(brokerURL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		qName, // name
		false, // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue '%s': %w", qName, err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("register consumer on '%s': %w", qName, err)
	}

	slog.Info("Connected to queue", "queue", qName)

	connCloseCh := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-connCloseCh:
			if amqpErr != nil {
				return fmt.Errorf("connection closed: %s", amqpErr.Error())
			}
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil // delivery channel closed
			}
			go messageProcessor(string(msg.Body))
		}
	}
}

// Send publishes a message to the named queue.
func Send(brokerURL, qName, message string) error {
	conn, err := amqp.Dial(brokerURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		qName, // name
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	err = ch.Publish(
		"",     // exchange
		q.Name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(message),
		})
	if err != nil {
		return err
	}

	slog.Debug("Sent message to queue", "queue", qName)
	return nil
}
