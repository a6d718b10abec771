package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"reactWs/internal/modules/reactive/infrastructure"
	"reactWs/internal/shared/auth"
	"reactWs/internal/shared/httputil"
)

// WebsocketOptions configures the upgrade endpoint.
type WebsocketOptions struct {
	Transport infrastructure.WebsocketConfig
	// Validator checks handshake tokens. With RequireToken unset a missing token is accepted
	// but a present one must still be valid.
	Validator    auth.TokenValidator
	RequireToken bool
	CheckOrigin  func(*http.Request) bool
	// BaseContext is cancelled at shutdown; hijacked connections outlive the request context
	// the server would otherwise cancel.
	BaseContext context.Context
}

var authErrors = httputil.NewErrorMapper().
	WithMapping(auth.ErrMissingToken, http.StatusUnauthorized, httputil.ClosePolicy, "missing token").
	WithMapping(auth.ErrInvalidToken, http.StatusUnauthorized, httputil.ClosePolicy, "invalid token").
	WithMapping(auth.ErrForbidden, http.StatusForbidden, httputil.ClosePolicy, "forbidden").
	WithDefault(http.StatusUnauthorized, "unauthorized")

// NewWebsocketHandler upgrades the request and hands the socket to the dispatcher, which
// decides from the request path which handler reacts to it.
func NewWebsocketHandler(dispatcher *infrastructure.Dispatcher, opts WebsocketOptions) echo.HandlerFunc {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}

	return func(c echo.Context) error {
		req := c.Request()
		path := req.URL.Path
		if !websocket.IsWebSocketUpgrade(req) {
			return echo.NewHTTPError(http.StatusUpgradeRequired, "websocket upgrade required")
		}

		if err := authorize(opts, req, path); err != nil {
			info := authErrors.Map(err)
			slog.Warn("ws handshake rejected", slog.String("path", path), slog.String("ip", c.RealIP()), slog.Int("status", info.Status), slog.Any("error", err))
			return echo.NewHTTPError(info.Status, info.Message)
		}

		conn, err := upgrader.Upgrade(c.Response(), req, nil)
		if err != nil {
			// the upgrader has already answered the request
			slog.Warn("ws upgrade failed", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		t := infrastructure.NewWebsocketTransport(conn, opts.Transport)
		slog.Debug("ws upgraded", slog.String("path", path), slog.String("remote", t.RemoteAddr()))

		if err := dispatcher.Dispatch(base, path, t, t); err != nil && !errors.Is(err, context.Canceled) {
			slog.Debug("ws connection ended with error", slog.String("path", path), slog.Any("error", err))
		}
		return nil
	}
}

func authorize(opts WebsocketOptions, req *http.Request, path string) error {
	token := auth.ExtractToken(req, "token")
	if token == "" {
		if opts.RequireToken {
			return auth.ErrMissingToken
		}
		return nil
	}
	if opts.Validator == nil {
		return nil
	}
	claims, err := opts.Validator.Validate(token)
	if err != nil {
		return err
	}
	if !claims.Allows(path) {
		return auth.ErrForbidden
	}
	return nil
}
