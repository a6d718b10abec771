package usecase

import (
	"context"
	"fmt"
	"strings"

	"reactWs/internal/modules/reactive/application/port"
	"reactWs/internal/modules/reactive/domain"
)

// PublishUseCase pushes externally produced payloads into runtime topics.
type PublishUseCase struct {
	topics port.TopicDirectory
}

func NewPublishUseCase(topics port.TopicDirectory) *PublishUseCase {
	return &PublishUseCase{topics: topics}
}

// Execute decodes payload with the topic's element type and publishes it. It returns how many
// links received the value.
func (uc *PublishUseCase) Execute(ctx context.Context, topic string, payload []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return 0, domain.ErrEmptyTopicName
	}
	t, ok := uc.topics.Lookup(topic)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownTopic, topic)
	}
	return t.PublishText(payload)
}

// TopicInfo summarizes one topic for listings.
type TopicInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Subscribers int    `json:"subscribers"`
}

// Topics lists every known topic in name order.
func (uc *PublishUseCase) Topics() []TopicInfo {
	names := uc.topics.Names()
	out := make([]TopicInfo, 0, len(names))
	for _, name := range names {
		t, ok := uc.topics.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, TopicInfo{Name: name, Type: t.ElemType().String(), Subscribers: t.Subscribers()})
	}
	return out
}
