package domain

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Outlet that keeps every frame it is handed.
type recorder struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (r *recorder) Enqueue(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.PayloadText())
	}
	return out
}

func TestLinkReplyKeepsCallOrder(t *testing.T) {
	out := &recorder{}
	link := NewLink("l1", out)

	require.NoError(t, link.Reply("a"))
	require.NoError(t, link.ToProcessor().OnNext("b"))
	require.NoError(t, link.Reply(3))

	assert.Equal(t, []string{"a", "b", "3"}, out.texts())
	assert.Equal(t, "l1", link.ID())
}

func TestLinkClosedRejectsWrites(t *testing.T) {
	out := &recorder{}
	link := NewLink("l1", out)
	link.Close()
	link.Close()

	assert.True(t, link.Closed())
	assert.ErrorIs(t, link.Reply("late"), ErrConnectionClosed)
	assert.ErrorIs(t, link.ToProcessor().OnNext("late"), ErrConnectionClosed)
	assert.Empty(t, out.texts())

	select {
	case <-link.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestLinkSurfacesOutletError(t *testing.T) {
	boom := errors.New("sink full")
	link := NewLink("l1", &recorder{err: boom})
	assert.ErrorIs(t, link.Reply("x"), boom)
}

func TestLinkCloseHooks(t *testing.T) {
	link := NewLink("l1", &recorder{})

	var calls []string
	link.OnClose(func() { calls = append(calls, "first") })
	remove := link.OnClose(func() { calls = append(calls, "removed") })
	link.OnClose(func() { panic("hook panic") })
	remove()

	link.Close()
	assert.Equal(t, []string{"first"}, calls)

	// registering after close runs immediately
	ran := false
	link.OnClose(func() { ran = true })
	assert.True(t, ran)
}

func TestProcessorSerializesConcurrentWriters(t *testing.T) {
	out := &recorder{}
	link := NewLink("l1", out)

	const writers, each = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_ = link.ToProcessor().OnNext(i)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, out.texts(), writers*each)
}
