package domain

import (
	"log/slog"
	"maps"
	"reflect"
	"sync/atomic"
	"weak"
)

// PublishObserver is notified after every publish with the fan-out outcome.
type PublishObserver func(topic string, delivered, dropped int)

// Topic is the element-type-erased view of a MultiLinkProcessor used by registries and
// external ingress.
type Topic interface {
	Name() string
	ElemType() reflect.Type
	Subscribe(link *Link) error
	Unsubscribe(link *Link)
	PublishText(data []byte) (int, error)
	Subscribers() int
	Observe(fn PublishObserver)
	Close()
}

// TopicSpawner creates topics of its own element type. The nil *MultiLinkProcessor[T]
// implements it, which lets templates create a topic from nothing but a field type.
type TopicSpawner interface {
	ElemType() reflect.Type
	SpawnTopic(name string) Topic
}

// TopicRef names a topic together with the spawner that can create it.
type TopicRef struct {
	Name    string
	Spawner TopicSpawner
}

type member struct {
	ref    weak.Pointer[Link]
	detach func()
}

// MultiLinkProcessor broadcasts every published value to the links subscribed to it.
// Delivery is ordered per link and unordered across links; membership is copy-on-write.
type MultiLinkProcessor[T any] struct {
	name     string
	members  atomic.Pointer[map[uint64]*member]
	closed   atomic.Bool
	observer atomic.Pointer[PublishObserver]
}

func NewMultiLinkProcessor[T any](name string) *MultiLinkProcessor[T] {
	p := &MultiLinkProcessor[T]{name: name}
	empty := make(map[uint64]*member)
	p.members.Store(&empty)
	return p
}

func (p *MultiLinkProcessor[T]) Name() string { return p.name }

func (*MultiLinkProcessor[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }

func (*MultiLinkProcessor[T]) SpawnTopic(name string) Topic {
	return NewMultiLinkProcessor[T](name)
}

// Subscribe adds link to the fan-out set. Subscribing twice is a no-op; earlier publishes
// are not replayed.
func (p *MultiLinkProcessor[T]) Subscribe(link *Link) error {
	if link == nil || link.Closed() {
		return ErrConnectionClosed
	}
	seq := link.seq
	m := &member{ref: weak.Make(link)}
	m.detach = link.OnClose(func() { p.remove(seq) })

	for {
		if p.closed.Load() {
			m.detach()
			return ErrTopicClosed
		}
		cur := p.members.Load()
		if _, ok := (*cur)[seq]; ok {
			m.detach()
			return nil
		}
		next := maps.Clone(*cur)
		next[seq] = m
		if p.members.CompareAndSwap(cur, &next) {
			break
		}
	}
	if p.closed.Load() {
		p.remove(seq)
		return ErrTopicClosed
	}
	// the link may have closed before the hook was in place
	if link.Closed() {
		p.remove(seq)
		return ErrConnectionClosed
	}
	return nil
}

// Unsubscribe removes link. Removing a link that is not subscribed is a no-op.
func (p *MultiLinkProcessor[T]) Unsubscribe(link *Link) {
	if link == nil {
		return
	}
	p.remove(link.seq)
}

func (p *MultiLinkProcessor[T]) remove(seq uint64) {
	for {
		cur := p.members.Load()
		m, ok := (*cur)[seq]
		if !ok {
			return
		}
		next := maps.Clone(*cur)
		delete(next, seq)
		if p.members.CompareAndSwap(cur, &next) {
			m.detach()
			return
		}
	}
}

// Publish hands v to every link subscribed when the call began and returns how many
// accepted it. Links that are gone or refuse the value are unsubscribed.
func (p *MultiLinkProcessor[T]) Publish(v T) int {
	if p.closed.Load() {
		return 0
	}
	snapshot := *p.members.Load()
	delivered, dropped := 0, 0
	for seq, m := range snapshot {
		link := m.ref.Value()
		if link == nil {
			p.remove(seq)
			dropped++
			continue
		}
		if err := link.proc.OnNext(v); err != nil {
			slog.Debug("topic dropped link", slog.String("topic", p.name), slog.String("linkId", link.id), slog.Any("error", err))
			p.remove(seq)
			dropped++
			continue
		}
		delivered++
	}
	if fn := p.observer.Load(); fn != nil {
		(*fn)(p.name, delivered, dropped)
	}
	return delivered
}

// PublishText decodes data as T and publishes it.
func (p *MultiLinkProcessor[T]) PublishText(data []byte) (int, error) {
	v, err := DecodeAs[T](data)
	if err != nil {
		return 0, err
	}
	return p.Publish(v), nil
}

func (p *MultiLinkProcessor[T]) Subscribers() int {
	return len(*p.members.Load())
}

func (p *MultiLinkProcessor[T]) Observe(fn PublishObserver) {
	if fn == nil {
		p.observer.Store(nil)
		return
	}
	p.observer.Store(&fn)
}

// Close shuts the topic down: current links are released and Subscribe fails from now on.
func (p *MultiLinkProcessor[T]) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	empty := make(map[uint64]*member)
	old := p.members.Swap(&empty)
	for _, m := range *old {
		m.detach()
	}
}
