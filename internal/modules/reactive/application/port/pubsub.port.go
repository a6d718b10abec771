package port

import (
	"context"

	"reactWs/internal/modules/reactive/domain"
)

// IngressConsumer pulls records from an external broker (Kafka, AMQP).
type IngressConsumer interface {
	Consume(ctx context.Context, handler func(*domain.Record) error) error
}

// IngressHandler publishes the records of one external source into the runtime.
type IngressHandler interface {
	Kind() string
	Source() string
	Handle(ctx context.Context, rec *domain.Record) error
}

// TopicDirectory resolves runtime topics by name without knowing their element type.
type TopicDirectory interface {
	Lookup(name string) (domain.Topic, bool)
	Names() []string
}
