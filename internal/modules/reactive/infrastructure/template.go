package infrastructure

import (
	"fmt"
	"reflect"
	"strings"

	"reactWs/internal/modules/reactive/domain"
)

// Arity tells the dispatcher what OnNext expects.
type Arity int

const (
	ArityPayload Arity = iota
	ArityLink
)

func (a Arity) String() string {
	if a == ArityLink {
		return "link"
	}
	return "payload"
}

const topicTag = "topic"

var (
	linkPtrType      = reflect.TypeFor[*domain.Link]()
	frameType        = reflect.TypeFor[domain.Frame]()
	errorType        = reflect.TypeFor[error]()
	topicSpawnerType = reflect.TypeFor[domain.TopicSpawner]()
)

// TopicField is a handler field that receives a shared topic at materialization.
type TopicField struct {
	Field    string
	Index    int
	Topic    string
	ElemType reflect.Type
	spawner  domain.TopicSpawner
}

// HandlerTemplate is everything the dispatcher needs to know about a handler type. It is
// built once at boot; connections only copy the prototype and inject topics.
type HandlerTemplate struct {
	Path     string
	Type     reflect.Type
	Topics   []TopicField
	Arity    Arity
	ElemType reflect.Type

	proto     reflect.Value
	onNextIdx int
}

// NewTemplate reflects over proto, a non-nil pointer to a struct implementing domain.Handler.
// The path comes from ReactTo unless path is given explicitly.
func NewTemplate(path string, proto domain.Handler) (*HandlerTemplate, error) {
	if proto == nil {
		return nil, fmt.Errorf("%w: nil prototype", domain.ErrInvalidHandler)
	}
	pv := reflect.ValueOf(proto)
	if pv.Kind() != reflect.Pointer || pv.IsNil() || pv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T must be a non-nil pointer to a struct", domain.ErrInvalidHandler, proto)
	}
	if path == "" {
		if r, ok := proto.(domain.Routed); ok {
			path = r.ReactTo()
		}
	}
	path = NormalizePath(path)
	if path == "" {
		return nil, fmt.Errorf("%w: %T declares no path", domain.ErrInvalidHandler, proto)
	}

	tpl := &HandlerTemplate{
		Path:  path,
		Type:  pv.Elem().Type(),
		proto: pv,
	}
	if err := tpl.classifyOnNext(pv.Type()); err != nil {
		return nil, err
	}
	if err := tpl.collectTopics(); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (t *HandlerTemplate) classifyOnNext(ptrType reflect.Type) error {
	m, ok := ptrType.MethodByName("OnNext")
	if !ok {
		return fmt.Errorf("%w: %s has no OnNext method", domain.ErrInvalidHandler, t.Type)
	}
	// receiver is In(0)
	if m.Type.NumIn() != 2 || m.Type.NumOut() != 1 || m.Type.Out(0) != errorType {
		return fmt.Errorf("%w: %s.OnNext must be func(T) error, got %s", domain.ErrInvalidHandler, t.Type, m.Type)
	}
	t.onNextIdx = m.Index
	param := m.Type.In(1)
	if param == linkPtrType {
		t.Arity = ArityLink
		return nil
	}
	t.Arity = ArityPayload
	t.ElemType = param
	return nil
}

func (t *HandlerTemplate) collectTopics() error {
	for i := 0; i < t.Type.NumField(); i++ {
		sf := t.Type.Field(i)
		name, ok := sf.Tag.Lookup(topicTag)
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("%w: %s.%s: %w", domain.ErrInjectionMismatch, t.Type, sf.Name, domain.ErrEmptyTopicName)
		}
		if !sf.IsExported() {
			return fmt.Errorf("%w: %s.%s must be exported to receive topic %q", domain.ErrInjectionMismatch, t.Type, sf.Name, name)
		}
		if !sf.Type.Implements(topicSpawnerType) || sf.Type.Kind() != reflect.Pointer {
			return fmt.Errorf("%w: %s.%s has type %s, want *MultiLinkProcessor[T]", domain.ErrInjectionMismatch, t.Type, sf.Name, sf.Type)
		}
		spawner := reflect.Zero(sf.Type).Interface().(domain.TopicSpawner)
		t.Topics = append(t.Topics, TopicField{
			Field:    sf.Name,
			Index:    i,
			Topic:    name,
			ElemType: spawner.ElemType(),
			spawner:  spawner,
		})
	}
	return nil
}

// Refs lists the topics this handler type needs.
func (t *HandlerTemplate) Refs() []domain.TopicRef {
	refs := make([]domain.TopicRef, 0, len(t.Topics))
	for _, f := range t.Topics {
		refs = append(refs, domain.TopicRef{Name: f.Topic, Spawner: f.spawner})
	}
	return refs
}

// Materialize builds a fresh handler for one connection: a shallow copy of the prototype
// with every topic field bound through resolve.
func (t *HandlerTemplate) Materialize(resolve func(TopicField) (domain.Topic, error)) (domain.Handler, error) {
	inst := reflect.New(t.Type)
	inst.Elem().Set(t.proto.Elem())
	for _, f := range t.Topics {
		topic, err := resolve(f)
		if err != nil {
			return nil, err
		}
		tv := reflect.ValueOf(topic)
		field := inst.Elem().Field(f.Index)
		if !tv.Type().AssignableTo(field.Type()) {
			return nil, fmt.Errorf("%w: topic %q is %s, field %s.%s is %s", domain.ErrInjectionMismatch, f.Topic, tv.Type(), t.Type, f.Field, field.Type())
		}
		field.Set(tv)
	}
	return inst.Interface().(domain.Handler), nil
}

// Deliver invokes OnNext on h for one inbound frame.
func (t *HandlerTemplate) Deliver(h domain.Handler, link *domain.Link, f domain.Frame) error {
	if t.Arity == ArityLink {
		if lh, ok := h.(domain.LinkHandler); ok {
			return lh.OnNext(link)
		}
	}
	var arg reflect.Value
	switch {
	case t.Arity == ArityLink:
		arg = reflect.ValueOf(link)
	case t.ElemType == frameType:
		// raw frames keep their text/binary type
		arg = reflect.ValueOf(f)
	default:
		v, err := domain.Decode(f.Data, t.ElemType)
		if err != nil {
			return err
		}
		arg = v
	}
	out := reflect.ValueOf(h).Method(t.onNextIdx).Call([]reflect.Value{arg})
	if err, _ := out[0].Interface().(error); err != nil {
		return err
	}
	return nil
}

// NormalizePath trims the path and makes sure it starts with a slash.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
