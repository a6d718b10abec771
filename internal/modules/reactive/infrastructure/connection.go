package infrastructure

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reactWs/internal/modules/reactive/application/port"
	"reactWs/internal/modules/reactive/domain"
)

// sink is the outbound half of a connection. Writers enqueue frames; a single pump goroutine
// owns the transport and is the only one writing data frames or pings to it.
type sink struct {
	out       port.Outbound
	send      chan domain.Frame
	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once

	path         string
	pingInterval time.Duration
	logger       *slog.Logger
	metrics      *Metrics
}

func newSink(out port.Outbound, path string, buf int, pingInterval time.Duration, logger *slog.Logger, metrics *Metrics) *sink {
	if buf <= 0 {
		buf = 1
	}
	return &sink{
		out:          out,
		send:         make(chan domain.Frame, buf),
		done:         make(chan struct{}),
		pumpDone:     make(chan struct{}),
		path:         path,
		pingInterval: pingInterval,
		logger:       logger,
		metrics:      metrics,
	}
}

// Enqueue blocks while the buffer is full. It fails once the sink is closing or the pump
// stopped on a write error.
func (s *sink) Enqueue(f domain.Frame) error {
	select {
	case <-s.done:
		return domain.ErrConnectionClosed
	case <-s.pumpDone:
		return domain.ErrConnectionClosed
	default:
	}
	select {
	case s.send <- f:
		return nil
	case <-s.done:
		return domain.ErrConnectionClosed
	case <-s.pumpDone:
		return domain.ErrConnectionClosed
	}
}

func (s *sink) pump() {
	defer close(s.pumpDone)
	// writes are bounded by the transport's write deadline, not by the dispatch context
	ctx := context.Background()

	var tick <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case f := <-s.send:
			if !s.write(ctx, f) {
				return
			}
		case <-tick:
			if err := s.out.Ping(ctx); err != nil {
				s.logger.Warn("websocket ping error", slog.Any("error", err))
				return
			}
		case <-s.done:
			s.drain(ctx)
			return
		}
	}
}

func (s *sink) write(ctx context.Context, f domain.Frame) bool {
	if err := s.out.Write(ctx, f); err != nil {
		s.logger.Warn("websocket write error", slog.Any("error", err))
		return false
	}
	s.metrics.frameOut(s.path)
	return true
}

// drain flushes what is already buffered so replies queued before a close still reach the peer.
func (s *sink) drain(ctx context.Context) {
	for {
		select {
		case f := <-s.send:
			if !s.write(ctx, f) {
				return
			}
		default:
			return
		}
	}
}

// close stops the pump after draining and then closes the transport with code. Only the
// first call has an effect; later calls wait for it to finish.
func (s *sink) close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.pumpDone
		if err := s.out.Close(code, reason); err != nil {
			s.logger.Debug("websocket close error", slog.Int("code", code), slog.Any("error", err))
		}
	})
}
