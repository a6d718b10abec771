package domain

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Outlet is the outbound sink of one connection.
type Outlet interface {
	Enqueue(f Frame) error
}

var linkSeq atomic.Uint64

// Link is the reply channel of a single connection. Topics hold it weakly; the owning
// connection closes it on teardown, which detaches it from every topic it joined.
type Link struct {
	id   string
	seq  uint64
	proc *Processor

	done      chan struct{}
	closeOnce sync.Once
	hooks     *closeHooks
}

// closeHooks lives apart from the Link so that the remove funcs handed to topics do not
// keep the link reachable.
type closeHooks struct {
	mu     sync.Mutex
	seq    uint64
	fns    map[uint64]func()
	closed bool
}

// NewLink binds a link to the connection sink out.
func NewLink(id string, out Outlet) *Link {
	return &Link{
		id:    id,
		seq:   linkSeq.Add(1),
		proc:  &Processor{out: out},
		done:  make(chan struct{}),
		hooks: &closeHooks{fns: make(map[uint64]func())},
	}
}

func (l *Link) ID() string { return l.id }

// Reply sends v to this link's peer.
func (l *Link) Reply(v any) error {
	return l.proc.OnNext(v)
}

// ToProcessor exposes the per-connection processor so topics can write into it.
func (l *Link) ToProcessor() *Processor { return l.proc }

// Done is closed once the link is invalidated.
func (l *Link) Done() <-chan struct{} { return l.done }

func (l *Link) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Close invalidates the link and runs its close hooks once.
func (l *Link) Close() {
	l.closeOnce.Do(func() {
		l.proc.closed.Store(true)
		close(l.done)
		l.invokeCloseHooks()
	})
}

// OnClose registers fn to run when the link closes and returns a func that removes it.
// If the link is already closed fn runs immediately.
func (l *Link) OnClose(fn func()) (remove func()) {
	h := l.hooks
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		fn()
		return func() {}
	}
	h.seq++
	key := h.seq
	h.fns[key] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.fns, key)
		h.mu.Unlock()
	}
}

func (l *Link) invokeCloseHooks() {
	h := l.hooks
	h.mu.Lock()
	h.closed = true
	fns := make([]func(), 0, len(h.fns))
	for _, fn := range h.fns {
		fns = append(fns, fn)
	}
	h.fns = make(map[uint64]func())
	h.mu.Unlock()

	for _, fn := range fns {
		func(hook func()) {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("link close hook panic", slog.String("linkId", l.id), slog.Any("error", r))
				}
			}()
			hook()
		}(fn)
	}
}

// Processor is the write side of a link. Its mutex is the per-link guard: every writer, be it
// the handler replying or a topic fanning out, goes through it one at a time.
type Processor struct {
	mu     sync.Mutex
	out    Outlet
	closed atomic.Bool
}

// OnNext encodes v and hands it to the connection sink.
func (p *Processor) OnNext(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return ErrConnectionClosed
	}
	return p.out.Enqueue(frame)
}
