package infrastructure

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reactWs/internal/modules/reactive/domain"
	"reactWs/internal/shared/logging"
)

var errSocketClosed = errors.New("use of closed connection")

type inbound struct {
	frame domain.Frame
	err   error
}

// fakeTransport plays the peer: the test pushes frames into it and reads back what the
// runtime wrote.
type fakeTransport struct {
	in     chan inbound
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []domain.Frame
	code    atomic.Int32
	reason  string
	pings   atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan inbound, 16), closed: make(chan struct{})}
}

func (f *fakeTransport) send(text string)  { f.in <- inbound{frame: domain.Text(text)} }
func (f *fakeTransport) hangUp()           { f.in <- inbound{err: io.EOF} }
func (f *fakeTransport) breakWith(e error) { f.in <- inbound{err: e} }

func (f *fakeTransport) Read(_ context.Context) (domain.Frame, error) {
	select {
	case m := <-f.in:
		return m.frame, m.err
	case <-f.closed:
		return domain.Frame{}, errSocketClosed
	}
}

func (f *fakeTransport) Write(_ context.Context, fr domain.Frame) error {
	select {
	case <-f.closed:
		return errSocketClosed
	default:
	}
	f.mu.Lock()
	f.written = append(f.written, fr)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Ping(_ context.Context) error {
	f.pings.Add(1)
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.once.Do(func() {
		f.code.Store(int32(code))
		f.mu.Lock()
		f.reason = reason
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.written))
	for _, fr := range f.written {
		out = append(out, fr.PayloadText())
	}
	return out
}

func (f *fakeTransport) closeCode() int { return int(f.code.Load()) }

// probe records which callbacks a handler saw. Prototypes carry a pointer to it, so every
// materialized copy reports into the same probe.
type probe struct {
	subscribed atomic.Bool
	next       atomic.Int32
	completed  atomic.Int32
	errored    atomic.Int32

	mu       sync.Mutex
	payloads []string
	err      error
	sub      *domain.Subscription
}

func (p *probe) record(payload string) {
	p.next.Add(1)
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
}

func (p *probe) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.payloads...)
}

func (p *probe) lastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *probe) subscription() *domain.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub
}

// scenario is a configurable string handler.
type scenario struct {
	path        string
	probe       *probe
	onSubscribe func(*scenario, *domain.Subscription) error
	onNext      func(*scenario, string) error

	link *domain.Link
}

func (h *scenario) ReactTo() string { return h.path }

func (h *scenario) OnSubscribe(sub *domain.Subscription) error {
	h.probe.subscribed.Store(true)
	h.probe.mu.Lock()
	h.probe.sub = sub
	h.probe.mu.Unlock()
	h.link = sub.Link()
	if h.onSubscribe != nil {
		return h.onSubscribe(h, sub)
	}
	return nil
}

func (h *scenario) OnNext(msg string) error {
	h.probe.record(msg)
	if h.onNext != nil {
		return h.onNext(h, msg)
	}
	return nil
}

func (h *scenario) OnComplete() { h.probe.completed.Add(1) }

func (h *scenario) OnError(err error) {
	h.probe.errored.Add(1)
	h.probe.mu.Lock()
	h.probe.err = err
	h.probe.mu.Unlock()
}

// selfReply answers through its link, ignoring the payload.
type selfReply struct {
	probe *probe
}

func (*selfReply) ReactTo() string { return "/test6" }

func (h *selfReply) OnSubscribe(*domain.Subscription) error {
	h.probe.subscribed.Store(true)
	return nil
}

func (h *selfReply) OnNext(link *domain.Link) error {
	h.probe.record("")
	return link.ToProcessor().OnNext("test6-ping")
}

func (h *selfReply) OnComplete()   { h.probe.completed.Add(1) }
func (h *selfReply) OnError(error) { h.probe.errored.Add(1) }

// fanOut joins topic test-8 and republishes whatever arrives.
type fanOut struct {
	Broadcaster *domain.MultiLinkProcessor[string] `topic:"test-8"`
	probe       *probe
}

func (*fanOut) ReactTo() string { return "/test8" }

func (h *fanOut) OnSubscribe(sub *domain.Subscription) error {
	h.probe.subscribed.Store(true)
	h.probe.mu.Lock()
	h.probe.sub = sub
	h.probe.mu.Unlock()
	return h.Broadcaster.Subscribe(sub.Link())
}

func (h *fanOut) OnNext(msg string) error {
	h.probe.record(msg)
	h.Broadcaster.Publish(msg)
	return nil
}

func (h *fanOut) OnComplete()   { h.probe.completed.Add(1) }
func (h *fanOut) OnError(error) { h.probe.errored.Add(1) }

func newTestRuntime(t *testing.T, protos ...domain.Handler) (*Dispatcher, *TopicRegistry) {
	t.Helper()
	handlers := NewHandlerRegistry()
	topics := NewTopicRegistry(nil)
	for _, proto := range protos {
		_, refs, err := handlers.Bind(proto)
		require.NoError(t, err)
		for _, ref := range refs {
			_, err := topics.Prime(ref)
			require.NoError(t, err)
		}
	}
	d := NewDispatcher(handlers, topics, DispatcherConfig{SendBuffer: 8}, nil, logging.Discard())
	return d, topics
}

func dispatchAsync(ctx context.Context, d *Dispatcher, path string, tr *fakeTransport) <-chan error {
	done := make(chan error, 1)
	go func() { done <- d.Dispatch(ctx, path, tr, tr) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch did not finish")
		return nil
	}
}
