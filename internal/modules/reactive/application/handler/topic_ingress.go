package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reactWs/internal/modules/reactive/application/usecase"
	"reactWs/internal/modules/reactive/domain"
)

// TopicIngressHandler forwards the records of one external source (a Kafka topic or an AMQP
// queue) into a runtime topic.
type TopicIngressHandler struct {
	kind      string
	source    string
	topic     string
	publishUC *usecase.PublishUseCase
	observe   func(source, status string)
}

func NewTopicIngressHandler(kind, source, topic string, publishUC *usecase.PublishUseCase, observe func(source, status string)) *TopicIngressHandler {
	if observe == nil {
		observe = func(string, string) {}
	}
	return &TopicIngressHandler{
		kind:      kind,
		source:    strings.TrimSpace(source),
		topic:     strings.TrimSpace(topic),
		publishUC: publishUC,
		observe:   observe,
	}
}

func (h *TopicIngressHandler) Kind() string   { return h.kind }
func (h *TopicIngressHandler) Source() string { return h.source }

func (h *TopicIngressHandler) Handle(ctx context.Context, rec *domain.Record) error {
	delivered, err := h.publishUC.Execute(ctx, h.topic, rec.Value)
	if err != nil {
		h.observe(h.source, "failed")
		return fmt.Errorf("ingress %s -> %s: %w", h.source, h.topic, err)
	}
	h.observe(h.source, "published")
	slog.Debug("ingress record published", slog.String("source", h.source), slog.String("topic", h.topic), slog.String("key", rec.Key), slog.Int("delivered", delivered))
	return nil
}
