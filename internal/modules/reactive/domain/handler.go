package domain

// Handler is the lifecycle every reactive handler implements. Handlers additionally declare
// exactly one OnNext method, either OnNext(*Link) error or OnNext(T) error for a payload
// type T; the runtime classifies it once when the handler type is registered.
//
// Returning an error (or panicking) from a callback ends the connection through OnError.
type Handler interface {
	OnSubscribe(sub *Subscription) error
	OnComplete()
	OnError(err error)
}

// Routed handlers name the path they react to.
type Routed interface {
	ReactTo() string
}

// LinkHandler receives its connection's link for every inbound frame instead of the payload.
type LinkHandler interface {
	Handler
	OnNext(link *Link) error
}
