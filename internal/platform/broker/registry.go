package broker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"reactWs/internal/modules/reactive/application/port"
	"reactWs/internal/modules/reactive/domain"
	"reactWs/internal/modules/reactive/infrastructure"
)

// Broker kinds stamped on records and used to key ingress handlers.
const (
	KindKafka = "kafka"
	KindAMQP  = "amqp"
)

func StartKafkaConsumers(
	ctx context.Context,
	registry *infrastructure.IngressRegistry,
	brokers []string,
	groupID string,
	topics []string,
) {
	if len(brokers) == 0 {
		// kafka.NewReader must not see an empty broker list
		return
	}
	for _, topic := range topics {
		start(ctx, registry, KindKafka, topic, NewKafkaConsumer(brokers, groupID, topic))
	}
}

func StartAMQPConsumers(ctx context.Context, registry *infrastructure.IngressRegistry, conn *amqp.Connection, queues []string) {
	if conn == nil {
		return
	}
	for _, queue := range queues {
		start(ctx, registry, KindAMQP, queue, NewAMQPConsumer(conn, queue))
	}
}

func start(ctx context.Context, registry *infrastructure.IngressRegistry, kind, source string, consumer port.IngressConsumer) {
	go func() {
		err := consumer.Consume(ctx, func(rec *domain.Record) error {
			return registry.Dispatch(ctx, rec)
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("ingress consumer stopped", slog.String("kind", kind), slog.String("source", source), slog.Any("error", err))
		}
	}()
}
