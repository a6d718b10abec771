package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"reactWs/internal/modules/reactive/application/port"
	"reactWs/internal/modules/reactive/domain"
)

// ErrDuplicateSource is returned when a broker kind and source pair already has a handler.
var ErrDuplicateSource = errors.New("duplicate ingress source")

// IngressRegistry routes external records to the handler registered for their broker kind and
// source. A Kafka topic and an AMQP queue with the same name are distinct sources.
type IngressRegistry struct {
	mu       sync.RWMutex
	handlers map[string]port.IngressHandler
}

func NewIngressRegistry() *IngressRegistry {
	return &IngressRegistry{handlers: make(map[string]port.IngressHandler)}
}

func sourceKey(kind, source string) string {
	return kind + ":" + source
}

func (r *IngressRegistry) Register(h port.IngressHandler) error {
	key := sourceKey(h.Kind(), h.Source())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, key)
	}
	r.handlers[key] = h
	return nil
}

// Dispatch hands rec to its source's handler. Records from unknown sources are ignored.
func (r *IngressRegistry) Dispatch(ctx context.Context, rec *domain.Record) error {
	r.mu.RLock()
	handler, ok := r.handlers[sourceKey(rec.Kind, rec.Source)]
	r.mu.RUnlock()
	if !ok {
		slog.Debug("ingress record without handler", slog.String("kind", rec.Kind), slog.String("source", rec.Source))
		return nil
	}
	return handler.Handle(ctx, rec)
}

// Sources lists the registered kind:source keys in sorted order.
func (r *IngressRegistry) Sources() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.handlers))
	for s := range r.handlers {
		out = append(out, s)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}
