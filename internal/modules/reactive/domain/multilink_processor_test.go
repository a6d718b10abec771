package domain

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLinkFanOut(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("test-8")
	const k = 5
	outs := make([]*recorder, k)
	links := make([]*Link, k)
	for i := range outs {
		outs[i] = &recorder{}
		links[i] = NewLink(fmt.Sprintf("l%d", i), outs[i])
		require.NoError(t, topic.Subscribe(links[i]))
	}

	assert.Equal(t, k, topic.Publish("hello"))
	for i, out := range outs {
		assert.Equal(t, []string{"hello"}, out.texts(), "link %d", i)
	}
	runtime.KeepAlive(links)
}

func TestMultiLinkSubscribeIdempotent(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("t")
	out := &recorder{}
	link := NewLink("l", out)

	require.NoError(t, topic.Subscribe(link))
	require.NoError(t, topic.Subscribe(link))
	assert.Equal(t, 1, topic.Subscribers())

	assert.Equal(t, 1, topic.Publish("once"))
	assert.Equal(t, []string{"once"}, out.texts())

	topic.Unsubscribe(link)
	topic.Unsubscribe(link)
	assert.Equal(t, 0, topic.Subscribers())
	assert.Equal(t, 0, topic.Publish("nobody"))
}

func TestMultiLinkNoReplay(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("t")
	topic.Publish("before")

	out := &recorder{}
	link := NewLink("l", out)
	require.NoError(t, topic.Subscribe(link))
	topic.Publish("after")

	assert.Equal(t, []string{"after"}, out.texts())
	runtime.KeepAlive(link)
}

func TestMultiLinkDropsClosedLinks(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("t")
	live, dead := &recorder{}, &recorder{}
	liveLink, deadLink := NewLink("live", live), NewLink("dead", dead)
	require.NoError(t, topic.Subscribe(liveLink))
	require.NoError(t, topic.Subscribe(deadLink))

	deadLink.Close()
	assert.Equal(t, 1, topic.Subscribers(), "close hook unsubscribes")
	assert.Equal(t, 1, topic.Publish("x"))
	assert.Empty(t, dead.texts())
	runtime.KeepAlive(liveLink)
	assert.ErrorIs(t, topic.Subscribe(deadLink), ErrConnectionClosed)
}

func TestMultiLinkDropsRejectingLinks(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("t")
	var observed []int
	topic.Observe(func(name string, delivered, dropped int) {
		assert.Equal(t, "t", name)
		observed = append(observed, delivered, dropped)
	})

	bad := NewLink("bad", &recorder{err: ErrConnectionClosed})
	good := NewLink("good", &recorder{})
	require.NoError(t, topic.Subscribe(bad))
	require.NoError(t, topic.Subscribe(good))

	assert.Equal(t, 1, topic.Publish("x"))
	assert.Equal(t, 1, topic.Subscribers())
	assert.Equal(t, []int{1, 1}, observed)
	runtime.KeepAlive(good)
}

func TestMultiLinkClose(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("t")
	link := NewLink("l", &recorder{})
	require.NoError(t, topic.Subscribe(link))

	topic.Close()
	topic.Close()
	assert.Equal(t, 0, topic.Subscribers())
	assert.ErrorIs(t, topic.Subscribe(link), ErrTopicClosed)
	assert.Equal(t, 0, topic.Publish("x"))
}

func TestMultiLinkPerLinkOrderUnderConcurrentPublishers(t *testing.T) {
	topic := NewMultiLinkProcessor[int]("t")
	out := &recorder{}
	link := NewLink("l", out)
	require.NoError(t, topic.Subscribe(link))

	const publishers, each = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				topic.Publish(p*1000 + i)
			}
		}()
	}
	wg.Wait()

	// each publisher's values must arrive in the order it published them
	last := make(map[int]int)
	for _, s := range out.texts() {
		var v int
		_, err := fmt.Sscan(s, &v)
		require.NoError(t, err)
		p, i := v/1000, v%1000
		if prev, ok := last[p]; ok {
			require.Greater(t, i, prev, "publisher %d out of order", p)
		}
		last[p] = i
	}
	assert.Len(t, out.texts(), publishers*each)
	runtime.KeepAlive(link)
}

func TestMultiLinkPublishText(t *testing.T) {
	type reading struct {
		Sensor string  `json:"sensor"`
		Value  float64 `json:"value"`
	}
	topic := NewMultiLinkProcessor[reading]("readings")
	out := &recorder{}
	link := NewLink("l", out)
	require.NoError(t, topic.Subscribe(link))

	n, err := topic.PublishText([]byte(`{"sensor":"a","value":1.5}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.JSONEq(t, `{"sensor":"a","value":1.5}`, out.texts()[0])

	_, err = topic.PublishText([]byte(`nope`))
	assert.ErrorIs(t, err, ErrDecode)
	runtime.KeepAlive(link)
}

func TestMultiLinkSpawnerFromNil(t *testing.T) {
	var spawner TopicSpawner = (*MultiLinkProcessor[int])(nil)
	assert.Equal(t, reflect.TypeFor[int](), spawner.ElemType())

	topic := spawner.SpawnTopic("n")
	assert.Equal(t, "n", topic.Name())
	_, ok := topic.(*MultiLinkProcessor[int])
	assert.True(t, ok)
}

func TestMultiLinkForgetsCollectedLinks(t *testing.T) {
	topic := NewMultiLinkProcessor[string]("t")
	func() {
		link := NewLink("gone", &recorder{})
		require.NoError(t, topic.Subscribe(link))
	}()
	runtime.GC()
	runtime.GC()

	assert.Equal(t, 0, topic.Publish("x"))
	assert.Equal(t, 0, topic.Subscribers())
}
