package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"reactWs/internal/modules/reactive/domain"
)

type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topic string) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
	}
}

// Consume reads until ctx is done. Handler errors are logged and the record is skipped.
func (c *KafkaConsumer) Consume(ctx context.Context, handler func(*domain.Record) error) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			slog.Warn("kafka read error", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		rec := decodeKafkaRecord(m)
		slog.Debug("kafka message consumed",
			slog.String("topic", m.Topic),
			slog.Int("partition", m.Partition),
			slog.Int64("offset", m.Offset),
			slog.String("key", rec.Key),
		)
		if err := handler(rec); err != nil {
			slog.Warn("kafka handler error", slog.String("topic", m.Topic), slog.Any("error", err))
		}
	}
}

func decodeKafkaRecord(m kafka.Message) *domain.Record {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	received := m.Time
	if received.IsZero() {
		received = time.Now().UTC()
	}
	return &domain.Record{
		Kind:       KindKafka,
		Source:     m.Topic,
		Key:        string(m.Key),
		Value:      unwrapEnvelope(m.Value),
		Headers:    headers,
		ReceivedAt: received,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrapEnvelope returns the "data" member of a {"data": ...} event envelope. A JSON string
// there is unquoted so text topics receive the bare text. Anything else is returned as is.
func unwrapEnvelope(value []byte) []byte {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return value
	}
	var text string
	if err := json.Unmarshal(env.Data, &text); err == nil {
		return []byte(text)
	}
	return env.Data
}
