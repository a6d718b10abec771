package infrastructure

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"reactWs/internal/modules/reactive/domain"
)

// WebsocketConfig holds the limits the transport enforces on a single socket.
type WebsocketConfig struct {
	ReadLimit       int64
	ReadIdleTimeout time.Duration
	WriteTimeout    time.Duration
}

// WebsocketTransport adapts a gorilla connection to the runtime's inbound and outbound ports.
// Reads belong to the dispatch goroutine and writes to the sink pump, which matches gorilla's
// one-reader one-writer rule; control frames may come from anywhere.
type WebsocketTransport struct {
	conn *websocket.Conn
	cfg  WebsocketConfig
}

func NewWebsocketTransport(conn *websocket.Conn, cfg WebsocketConfig) *WebsocketTransport {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 1 << 16
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	t := &WebsocketTransport{conn: conn, cfg: cfg}
	conn.SetReadLimit(cfg.ReadLimit)
	t.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		t.extendReadDeadline()
		return nil
	})
	return t
}

func (t *WebsocketTransport) extendReadDeadline() {
	if t.cfg.ReadIdleTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadIdleTimeout))
	}
}

// Read returns the next data frame. A close handshake from the peer ends the stream with
// io.EOF; anything else, the idle deadline included, is returned as is. ctx is not consulted
// here: the dispatcher closes the socket to abort a pending read.
func (t *WebsocketTransport) Read(_ context.Context) (domain.Frame, error) {
	for {
		t.extendReadDeadline()
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return domain.Frame{}, io.EOF
			}
			return domain.Frame{}, err
		}
		switch mt {
		case websocket.TextMessage:
			return domain.Frame{Type: domain.TextFrame, Data: data}, nil
		case websocket.BinaryMessage:
			return domain.Frame{Type: domain.BinaryFrame, Data: data}, nil
		}
	}
}

func (t *WebsocketTransport) Write(_ context.Context, f domain.Frame) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	mt := websocket.TextMessage
	if f.Type == domain.BinaryFrame {
		mt = websocket.BinaryMessage
	}
	return t.conn.WriteMessage(mt, f.Data)
}

func (t *WebsocketTransport) Ping(_ context.Context) error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout))
}

// Close sends a close frame with code and reason and releases the socket.
func (t *WebsocketTransport) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.cfg.WriteTimeout))
	if err := t.conn.Close(); err != nil {
		return err
	}
	if werr != nil && werr != websocket.ErrCloseSent {
		return werr
	}
	return nil
}

func (t *WebsocketTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
