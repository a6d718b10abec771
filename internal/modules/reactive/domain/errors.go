package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPath is returned when no handler template is bound to the requested path.
	ErrUnknownPath = errors.New("unknown path")
	// ErrDuplicatePath is returned when a second template is registered for a bound path.
	ErrDuplicatePath = errors.New("duplicate path")
	// ErrTopicTypeMismatch is returned when a topic is requested with a different element type.
	ErrTopicTypeMismatch = errors.New("topic type mismatch")
	// ErrInjectionMismatch is returned when a topic field cannot receive a broadcaster.
	ErrInjectionMismatch = errors.New("injection mismatch")
	// ErrInvalidHandler is returned when a handler type does not satisfy the callback contract.
	ErrInvalidHandler = errors.New("invalid handler")
	// ErrInvalidRequest is returned for a non-positive request count.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConnectionClosed is returned when writing through a terminated link.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrTopicClosed is returned when subscribing to a topic that has been shut down.
	ErrTopicClosed = errors.New("topic closed")
	// ErrEmptyTopicName is returned when a topic is declared or looked up without a name.
	ErrEmptyTopicName = errors.New("empty topic name")
	// ErrUnknownTopic is returned by lookups for a topic nobody has declared.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrDecode is returned when a frame cannot be decoded into the declared element type.
	ErrDecode = errors.New("decode failed")
)

// HandlerError wraps anything a handler callback returned or panicked with.
type HandlerError struct {
	Callback string
	Cause    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed: %v", e.Callback, e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// TransportError wraps a failure reported by the inbound or outbound stream.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// IsHandlerFailure reports whether err originated in handler code.
func IsHandlerFailure(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}

// IsTransportFailure reports whether err originated in the transport.
func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
