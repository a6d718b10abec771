package handler

import (
	"reactWs/internal/modules/reactive/domain"
)

// EchoHandler answers every text frame on /echo with the same text.
type EchoHandler struct {
	link *domain.Link
}

func (*EchoHandler) ReactTo() string { return "/echo" }

func (h *EchoHandler) OnSubscribe(sub *domain.Subscription) error {
	h.link = sub.Link()
	return nil
}

func (h *EchoHandler) OnNext(msg string) error {
	return h.link.Reply(msg)
}

func (*EchoHandler) OnComplete() {}

func (*EchoHandler) OnError(error) {}

// PingHandler replies "pong" to any frame on /ping without looking at it.
type PingHandler struct{}

func (*PingHandler) ReactTo() string { return "/ping" }

func (*PingHandler) OnSubscribe(*domain.Subscription) error { return nil }

func (*PingHandler) OnNext(link *domain.Link) error {
	return link.ToProcessor().OnNext("pong")
}

func (*PingHandler) OnComplete() {}

func (*PingHandler) OnError(error) {}
