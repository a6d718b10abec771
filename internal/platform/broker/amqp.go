package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"reactWs/internal/modules/reactive/domain"
)

// DialAMQP connects to the broker at url, retrying a few times while it comes up.
func DialAMQP(ctx context.Context, url string, attempts int, wait time.Duration) (*amqp.Connection, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := range attempts {
		var conn *amqp.Connection
		if conn, err = amqp.Dial(url); err == nil {
			slog.Info("amqp connected", slog.Int("attempt", i+1))
			return conn, nil
		}
		slog.Warn("amqp dial failed, retrying", slog.Int("attempt", i+1), slog.Duration("wait", wait), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("could not connect to amqp after %d attempts: %w", attempts, err)
}

// AMQPConsumer consumes one durable queue and acknowledges each delivery once handled.
type AMQPConsumer struct {
	conn  *amqp.Connection
	queue string
}

func NewAMQPConsumer(conn *amqp.Connection, queue string) *AMQPConsumer {
	return &AMQPConsumer{conn: conn, queue: queue}
}

func (c *AMQPConsumer) Consume(ctx context.Context, handler func(*domain.Record) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", c.queue, err)
	}

	slog.Info("amqp consumer started", slog.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp deliveries closed for %s", q.Name)
			}
			if err := handler(decodeAMQPRecord(q.Name, d)); err != nil {
				slog.Warn("amqp handler error", slog.String("queue", q.Name), slog.Any("error", err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func decodeAMQPRecord(queue string, d amqp.Delivery) *domain.Record {
	headers := make(map[string]string, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = fmt.Sprint(v)
	}
	if d.ContentType != "" {
		headers["content-type"] = d.ContentType
	}
	received := d.Timestamp
	if received.IsZero() {
		received = time.Now().UTC()
	}
	return &domain.Record{
		Kind:       KindAMQP,
		Source:     queue,
		Key:        d.MessageId,
		Value:      unwrapEnvelope(d.Body),
		Headers:    headers,
		ReceivedAt: received,
	}
}
