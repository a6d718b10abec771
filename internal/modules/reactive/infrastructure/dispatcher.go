package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"reactWs/internal/modules/reactive/application/port"
	"reactWs/internal/modules/reactive/domain"
	"reactWs/internal/shared/httputil"
	"reactWs/internal/shared/logging"
)

// DispatcherConfig tunes the per-connection outbound side.
type DispatcherConfig struct {
	SendBuffer   int
	PingInterval time.Duration
}

// Dispatcher drives accepted connections through their handler's lifecycle.
type Dispatcher struct {
	handlers *HandlerRegistry
	topics   *TopicRegistry
	cfg      DispatcherConfig
	metrics  *Metrics
	logger   *slog.Logger
	codes    *httputil.ErrorMapper
	newID    func() string
}

func NewDispatcher(handlers *HandlerRegistry, topics *TopicRegistry, cfg DispatcherConfig, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Dispatcher{
		handlers: handlers,
		topics:   topics,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		codes:    CloseCodes(),
		newID:    uuid.NewString,
	}
}

// CloseCodes maps runtime errors to HTTP statuses and WebSocket close codes.
func CloseCodes() *httputil.ErrorMapper {
	return httputil.NewErrorMapper().
		WithMapping(domain.ErrUnknownPath, http.StatusNotFound, httputil.ClosePolicy, "unknown path").
		WithMapping(domain.ErrUnknownTopic, http.StatusNotFound, httputil.ClosePolicy, "unknown topic").
		WithMapping(domain.ErrEmptyTopicName, http.StatusBadRequest, httputil.ClosePolicy, "topic name required").
		WithMapping(domain.ErrDecode, http.StatusBadRequest, httputil.CloseServerError, "payload does not match topic type").
		WithMapping(domain.ErrTopicClosed, http.StatusServiceUnavailable, httputil.CloseGoingAway, "topic closed").
		WithMapping(domain.ErrTopicTypeMismatch, http.StatusConflict, httputil.CloseServerError, "topic type mismatch").
		WithMapping(domain.ErrInjectionMismatch, http.StatusInternalServerError, httputil.CloseServerError, "handler misconfigured")
}

// Dispatch runs one connection to completion. It returns nil when the peer closed cleanly
// and the error that ended the connection otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, in port.Inbound, out port.Outbound) error {
	tpl, ok := d.handlers.Lookup(path)
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrUnknownPath, path)
		d.metrics.connectionRejected()
		d.logger.Info("ws connection rejected", slog.String("path", path), slog.Any("error", err))
		_ = out.Close(d.codes.CloseCode(err), "unknown path")
		return err
	}

	handler, err := tpl.Materialize(d.resolveTopic)
	if err != nil {
		d.logger.Error("ws handler materialize failed", slog.String("path", tpl.Path), slog.Any("error", err))
		_ = out.Close(d.codes.CloseCode(err), "handler unavailable")
		return err
	}

	id := d.newID()
	logger := logging.ForConnection(d.logger, id, tpl.Path)
	s := newSink(out, tpl.Path, d.cfg.SendBuffer, d.cfg.PingInterval, logger, d.metrics)
	go s.pump()

	link := domain.NewLink(id, s)
	c := &connection{
		tpl:     tpl,
		handler: handler,
		link:    link,
		sink:    s,
		in:      in,
		logger:  logger,
		metrics: d.metrics,
		codes:   d.codes,
	}
	c.sub = domain.NewSubscription(link, c.cancelled)
	return c.run(ctx)
}

func (d *Dispatcher) resolveTopic(f TopicField) (domain.Topic, error) {
	return d.topics.GetOrCreate(f.Topic, f.ElemType, f.spawner)
}

// connection holds the per-connection state. Every handler callback runs on the goroutine
// executing run.
type connection struct {
	tpl     *HandlerTemplate
	handler domain.Handler
	link    *domain.Link
	sub     *domain.Subscription
	sink    *sink
	in      port.Inbound
	state   domain.StateMachine
	logger  *slog.Logger
	metrics *Metrics
	codes   *httputil.ErrorMapper
}

func (c *connection) run(ctx context.Context) error {
	started := time.Now()
	c.metrics.connectionOpened()
	c.logger.Info("ws connection opened")
	defer func() {
		state := c.state.Load()
		c.metrics.connectionClosed(c.tpl.Path, state.String(), started)
		c.logger.Info("ws connection closed", slog.String("state", state.String()), slog.Duration("duration", time.Since(started)))
	}()

	// shutdown: closing the transport unblocks the pending read
	stop := context.AfterFunc(ctx, func() {
		c.link.Close()
		c.sink.close(httputil.CloseGoingAway, "server shutting down")
	})
	defer stop()

	c.state.Advance(domain.StateSubscribed, domain.StateNew)
	if err := c.invoke("OnSubscribe", func() error { return c.handler.OnSubscribe(c.sub) }); err != nil {
		c.fail(err)
		return err
	}
	c.state.Advance(domain.StateRunning, domain.StateSubscribed)

	for {
		frame, err := c.in.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) && ctx.Err() == nil {
				c.complete()
				return nil
			}
			return c.transportFailed(ctx, err)
		}
		c.metrics.frameIn(c.tpl.Path)

		if c.sub.Cancelled() {
			continue
		}
		ready, err := c.sub.Await(ctx)
		if err != nil {
			return c.transportFailed(ctx, err)
		}
		if !ready {
			c.logger.Debug("ws frame dropped after cancel")
			continue
		}

		if err := c.invoke("OnNext", func() error { return c.tpl.Deliver(c.handler, c.link, frame) }); err != nil {
			c.fail(err)
			return err
		}
	}
}

// cancelled is the subscription's cancel hook. The link goes first so topics stop writing
// into a connection that no longer wants values.
func (c *connection) cancelled() {
	c.state.Cancel()
	c.link.Close()
	c.logger.Debug("ws subscription cancelled")
}

func (c *connection) complete() {
	if c.state.Finish(domain.StateCompleted) {
		c.notify("OnComplete", c.handler.OnComplete)
	}
	c.link.Close()
	c.sink.close(httputil.CloseNormal, "")
}

func (c *connection) transportFailed(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	terr := &domain.TransportError{Cause: err}
	c.fail(terr)
	return terr
}

// fail ends the connection with err. OnError fires at most once and never after OnComplete.
func (c *connection) fail(err error) {
	if c.state.Finish(domain.StateErrored) {
		c.logger.Warn("ws connection failed", slog.Any("error", err))
		c.notify("OnError", func() { c.handler.OnError(err) })
	}
	c.link.Close()
	code := httputil.CloseServerError
	if domain.IsTransportFailure(err) {
		code = c.codes.CloseCode(errors.Unwrap(err))
	}
	c.sink.close(code, closeReason(code))
}

// invoke runs a handler callback and turns a returned error or a panic into a HandlerError.
func (c *connection) invoke(callback string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.HandlerError{Callback: callback, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &domain.HandlerError{Callback: callback, Cause: err}
	}
	return nil
}

// notify runs a terminal callback; a panic there is logged since nothing is left to report it to.
func (c *connection) notify(callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("ws handler panic", slog.String("callback", callback), slog.Any("panic", r))
		}
	}()
	fn()
}

func closeReason(code int) string {
	switch code {
	case httputil.CloseGoingAway:
		return "going away"
	case httputil.ClosePolicy:
		return "policy violation"
	case httputil.CloseServerError:
		return "handler error"
	default:
		return ""
	}
}
