package port

import "reactWs/internal/modules/reactive/domain"

// HandlerBinder compiles a handler prototype and binds it to the path it reacts to.
type HandlerBinder interface {
	Bind(proto domain.Handler) (path string, topics []domain.TopicRef, err error)
}

// TopicProvider creates or returns the topic a reference points to.
type TopicProvider interface {
	Prime(ref domain.TopicRef) (domain.Topic, error)
}
