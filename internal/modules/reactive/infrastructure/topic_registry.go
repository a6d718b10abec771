package infrastructure

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"

	"reactWs/internal/modules/reactive/domain"
)

// TopicRegistry holds every named topic of the process. Topics are created on first
// reference and never removed; the map is copy-on-write so readers never lock.
type TopicRegistry struct {
	topics   atomic.Pointer[map[string]domain.Topic]
	observer domain.PublishObserver
}

// NewTopicRegistry returns an empty registry. observer, when set, is attached to every topic
// the registry creates.
func NewTopicRegistry(observer domain.PublishObserver) *TopicRegistry {
	r := &TopicRegistry{observer: observer}
	empty := make(map[string]domain.Topic)
	r.topics.Store(&empty)
	return r
}

// GetOrCreate returns the topic called name, creating it through spawn if needed. Concurrent
// first references agree on a single topic.
func (r *TopicRegistry) GetOrCreate(name string, elem reflect.Type, spawn domain.TopicSpawner) (domain.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrEmptyTopicName
	}
	if t, ok := r.Lookup(name); ok {
		return matching(t, elem)
	}
	if spawn == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTopic, name)
	}

	created := spawn.SpawnTopic(name)
	for {
		cur := r.topics.Load()
		if t, ok := (*cur)[name]; ok {
			return matching(t, elem)
		}
		next := maps.Clone(*cur)
		next[name] = created
		if r.topics.CompareAndSwap(cur, &next) {
			break
		}
	}
	if r.observer != nil {
		created.Observe(r.observer)
	}
	slog.Debug("topic created", slog.String("topic", name), slog.String("type", created.ElemType().String()))
	return matching(created, elem)
}

// Prime makes sure the referenced topic exists with the spawner's element type.
func (r *TopicRegistry) Prime(ref domain.TopicRef) (domain.Topic, error) {
	if ref.Spawner == nil {
		return nil, fmt.Errorf("%w: %q has no element type", domain.ErrInjectionMismatch, ref.Name)
	}
	return r.GetOrCreate(ref.Name, ref.Spawner.ElemType(), ref.Spawner)
}

func matching(t domain.Topic, elem reflect.Type) (domain.Topic, error) {
	if elem != nil && t.ElemType() != elem {
		return nil, fmt.Errorf("%w: topic %q carries %s, requested %s", domain.ErrTopicTypeMismatch, t.Name(), t.ElemType(), elem)
	}
	return t, nil
}

func (r *TopicRegistry) Lookup(name string) (domain.Topic, bool) {
	t, ok := (*r.topics.Load())[name]
	return t, ok
}

// Names returns the registered topic names in sorted order.
func (r *TopicRegistry) Names() []string {
	return slices.Sorted(maps.Keys(*r.topics.Load()))
}

// Close shuts every topic down. Used at process shutdown only.
func (r *TopicRegistry) Close() {
	for _, t := range *r.topics.Load() {
		t.Close()
	}
}

// Topic returns the typed topic called name from r, creating it if needed.
func Topic[T any](r *TopicRegistry, name string) (*domain.MultiLinkProcessor[T], error) {
	var spawner *domain.MultiLinkProcessor[T]
	t, err := r.GetOrCreate(name, spawner.ElemType(), spawner)
	if err != nil {
		return nil, err
	}
	typed, ok := t.(*domain.MultiLinkProcessor[T])
	if !ok {
		return nil, fmt.Errorf("%w: topic %q is %T", domain.ErrTopicTypeMismatch, name, t)
	}
	return typed, nil
}
