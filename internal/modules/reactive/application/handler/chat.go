package handler

import (
	"log/slog"
	"strings"
	"time"

	"reactWs/internal/modules/reactive/domain"
)

// ChatMessage is the JSON payload exchanged on /chat.
type ChatMessage struct {
	From   string    `json:"from"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// ChatHandler joins every /chat connection to the shared "chat" topic and publishes whatever
// its peer says to everyone in it, the sender included.
type ChatHandler struct {
	Room *domain.MultiLinkProcessor[ChatMessage] `topic:"chat"`

	link *domain.Link
}

func (*ChatHandler) ReactTo() string { return "/chat" }

func (h *ChatHandler) OnSubscribe(sub *domain.Subscription) error {
	h.link = sub.Link()
	return h.Room.Subscribe(h.link)
}

func (h *ChatHandler) OnNext(msg ChatMessage) error {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return nil
	}
	if msg.From == "" {
		msg.From = h.link.ID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	h.Room.Publish(msg)
	return nil
}

func (h *ChatHandler) OnComplete() {
	h.Room.Unsubscribe(h.link)
}

func (h *ChatHandler) OnError(err error) {
	h.Room.Unsubscribe(h.link)
	slog.Debug("chat connection failed", slog.Any("error", err))
}
