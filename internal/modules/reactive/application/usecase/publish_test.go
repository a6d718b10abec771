package usecase

import (
	"context"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reactWs/internal/modules/reactive/domain"
)

type outlet struct{ frames []domain.Frame }

func (o *outlet) Enqueue(f domain.Frame) error {
	o.frames = append(o.frames, f)
	return nil
}

type directory map[string]domain.Topic

func (d directory) Lookup(name string) (domain.Topic, bool) {
	t, ok := d[name]
	return t, ok
}

func (d directory) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func TestPublishDecodesWithTopicType(t *testing.T) {
	counts := domain.NewMultiLinkProcessor[int]("counts")
	out := &outlet{}
	link := domain.NewLink("l1", out)
	require.NoError(t, counts.Subscribe(link))

	uc := NewPublishUseCase(directory{"counts": counts})
	delivered, err := uc.Execute(context.Background(), " counts ", []byte("42"))
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, out.frames, 1)
	assert.Equal(t, "42", out.frames[0].PayloadText())

	_, err = uc.Execute(context.Background(), "counts", []byte("forty-two"))
	assert.ErrorIs(t, err, domain.ErrDecode)
	runtime.KeepAlive(link)
}

func TestPublishErrors(t *testing.T) {
	uc := NewPublishUseCase(directory{})

	_, err := uc.Execute(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrEmptyTopicName)

	_, err = uc.Execute(context.Background(), "ghost", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnknownTopic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = uc.Execute(ctx, "ghost", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopicsListing(t *testing.T) {
	news := domain.NewMultiLinkProcessor[string]("news")
	link := domain.NewLink("l1", &outlet{})
	require.NoError(t, news.Subscribe(link))

	uc := NewPublishUseCase(directory{
		"news":   news,
		"counts": domain.NewMultiLinkProcessor[int]("counts"),
	})
	assert.Equal(t, []TopicInfo{
		{Name: "counts", Type: "int", Subscribers: 0},
		{Name: "news", Type: "string", Subscribers: 1},
	}, uc.Topics())
	runtime.KeepAlive(link)
}
