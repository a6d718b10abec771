package broker

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestUnwrapEnvelope(t *testing.T) {
	cases := map[string]string{
		`{"data":"hello"}`:           "hello",
		`{"data":{"text":"hi"}}`:     `{"text":"hi"}`,
		`{"data":null}`:              `{"data":null}`,
		`{"text":"no envelope"}`:     `{"text":"no envelope"}`,
		`plain text`:                 "plain text",
		`"quoted"`:                   `"quoted"`,
		`{"data":[1,2],"meta":true}`: "[1,2]",
	}
	for input, expected := range cases {
		if actual := string(unwrapEnvelope([]byte(input))); actual != expected {
			t.Fatalf("unwrapEnvelope(%s) expected %s got %s", input, expected, actual)
		}
	}
}

func TestDecodeKafkaRecord(t *testing.T) {
	sent := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := decodeKafkaRecord(kafka.Message{
		Topic:   "orders",
		Key:     []byte("k1"),
		Value:   []byte(`{"data":"created"}`),
		Headers: []kafka.Header{{Key: "trace", Value: []byte("abc")}},
		Time:    sent,
	})

	assert.Equal(t, KindKafka, rec.Kind)
	assert.Equal(t, "orders", rec.Source)
	assert.Equal(t, "k1", rec.Key)
	assert.Equal(t, "created", string(rec.Value))
	assert.Equal(t, map[string]string{"trace": "abc"}, rec.Headers)
	assert.Equal(t, sent, rec.ReceivedAt)

	assert.False(t, decodeKafkaRecord(kafka.Message{Topic: "orders"}).ReceivedAt.IsZero())
}

func TestDecodeAMQPRecord(t *testing.T) {
	rec := decodeAMQPRecord("alerts", amqp.Delivery{
		MessageId:   "m-1",
		ContentType: "application/json",
		Headers:     amqp.Table{"attempt": int32(2)},
		Body:        []byte(`{"level":"warn"}`),
	})

	assert.Equal(t, KindAMQP, rec.Kind)
	assert.Equal(t, "alerts", rec.Source)
	assert.Equal(t, "m-1", rec.Key)
	assert.Equal(t, `{"level":"warn"}`, string(rec.Value))
	assert.Equal(t, "2", rec.Headers["attempt"])
	assert.Equal(t, "application/json", rec.Headers["content-type"])
	assert.False(t, rec.ReceivedAt.IsZero())
}
