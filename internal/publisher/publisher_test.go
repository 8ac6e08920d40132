package publisher

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/compression"
	"github.com/earthring/scenecast/internal/scene"
	"github.com/earthring/scenecast/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnouncer struct {
	ok      bool
	calls   int
	remote  string
	self    string
	visible bool
	store   *chunkstore.Store
}

func (f *fakeAnnouncer) AnnounceURL(ctx context.Context, id chunkstore.ID, remote, self string) (string, bool) {
	f.calls++
	f.remote, f.self = remote, self
	if f.store != nil {
		_, f.visible = f.store.Lookup(id)
	}
	return "http://" + self + "/chunk/" + id.String() + "?_=1", f.ok
}

type fakeHub struct {
	announcements []streaming.Announcement
}

func (f *fakeHub) Broadcast(a streaming.Announcement) bool {
	f.announcements = append(f.announcements, a)
	return true
}

func newPublisher(t *testing.T, announcer Announcer, hub Broadcaster, notifyAddr string) (*Publisher, *chunkstore.Store) {
	t.Helper()
	store := chunkstore.NewStore()
	p, err := New(Options{
		Store:         store,
		Notifier:      announcer,
		Hub:           hub,
		SelfAddress:   "10.0.0.9:8080",
		NotifyAddress: notifyAddr,
	})
	require.NoError(t, err)
	return p, store
}

func TestNewRequiresStoreAndAddress(t *testing.T) {
	_, err := New(Options{SelfAddress: "10.0.0.9:8080"})
	assert.Error(t, err)
	_, err = New(Options{Store: chunkstore.NewStore()})
	assert.Error(t, err)
}

func TestPublishSequence(t *testing.T) {
	announcer := &fakeAnnouncer{ok: true}
	hub := &fakeHub{}
	p, store := newPublisher(t, announcer, hub, "10.0.0.5:5555")
	announcer.store = store

	req := SampleRequest(1337)
	req.RawAssets = map[string][]byte{"depth.exr": {1, 2, 3}}

	res, err := p.Publish(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Notified)
	assert.True(t, res.Broadcast)
	assert.False(t, res.Replaced)
	assert.Equal(t, []string{"http://10.0.0.9:8080/texture/1337/tex_0.png"}, res.TextureURLs)

	// Announced only after the chunk was visible.
	assert.Equal(t, 1, announcer.calls)
	assert.True(t, announcer.visible)
	assert.Equal(t, "10.0.0.5:5555", announcer.remote)
	assert.Equal(t, "10.0.0.9:8080", announcer.self)

	c, ok := store.Lookup(1337)
	require.True(t, ok)
	doc, err := scene.Decode([]byte(c.Document()))
	require.NoError(t, err)
	require.Len(t, doc.Images, 1)
	assert.Equal(t, res.TextureURLs[0], doc.Images[0].URI)

	_, ok = c.Image("tex_0.png")
	assert.True(t, ok)
	raw, ok := c.Raw("depth.exr")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	require.Len(t, hub.announcements, 1)
	assert.EqualValues(t, 1337, hub.announcements[0].ChunkID)
	assert.Equal(t, res.URL, hub.announcements[0].URL)
}

func TestPublishNotificationFailureStillPublishes(t *testing.T) {
	announcer := &fakeAnnouncer{ok: false}
	p, store := newPublisher(t, announcer, nil, "10.0.0.5:5555")

	res, err := p.Publish(context.Background(), SampleRequest(5))
	require.NoError(t, err)
	assert.False(t, res.Notified)

	_, ok := store.Lookup(5)
	assert.True(t, ok)
}

func TestPublishSkipsNotificationWithoutRemote(t *testing.T) {
	announcer := &fakeAnnouncer{ok: true}
	hub := &fakeHub{}
	p, _ := newPublisher(t, announcer, hub, "")

	res, err := p.Publish(context.Background(), SampleRequest(6))
	require.NoError(t, err)
	assert.Zero(t, announcer.calls)
	assert.False(t, res.Notified)
	assert.True(t, strings.HasPrefix(res.URL, "http://10.0.0.9:8080/chunk/6?_="))
	require.Len(t, hub.announcements, 1)
}

func TestPublishReplacesExistingID(t *testing.T) {
	p, store := newPublisher(t, nil, nil, "")

	_, err := p.Publish(context.Background(), SampleRequest(7))
	require.NoError(t, err)

	req := SampleRequest(7)
	req.Textures = nil
	res, err := p.Publish(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Replaced)

	c, ok := store.Lookup(7)
	require.True(t, ok)
	assert.Empty(t, c.ImageNames(), "replacement is not merged with the earlier chunk")
}

func TestConcurrentPublishSameIDOneFirstWriter(t *testing.T) {
	p, _ := newPublisher(t, nil, nil, "")

	const publishers = 8
	results := make(chan *Result, publishers)
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Publish(context.Background(), SampleRequest(11))
			if err != nil {
				t.Errorf("publish: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	first := 0
	for res := range results {
		if !res.Replaced {
			first++
		}
	}
	assert.Equal(t, 1, first)
}

func TestPublishEncodeFailurePublishesNothing(t *testing.T) {
	announcer := &fakeAnnouncer{ok: true}
	p, store := newPublisher(t, announcer, nil, "10.0.0.5:5555")

	_, err := p.Publish(context.Background(), Request{ChunkID: 8})
	assert.Error(t, err)

	_, ok := store.Lookup(8)
	assert.False(t, ok)
	assert.Zero(t, announcer.calls)
}

func TestPublishInvalidTexturePublishesNothing(t *testing.T) {
	p, store := newPublisher(t, nil, nil, "")

	req := SampleRequest(9)
	req.Textures = append(req.Textures, &compression.Raster{Width: 4, Height: 4, Channels: 3})
	_, err := p.Publish(context.Background(), req)
	assert.Error(t, err)

	_, ok := store.Lookup(9)
	assert.False(t, ok)
}

func TestTextureNaming(t *testing.T) {
	assert.Equal(t, "tex_3.png", TextureFilename(3))
	assert.Equal(t, "http://127.0.0.1:8080/texture/0/tex_0.png", TextureURL("127.0.0.1:8080", 0, "tex_0.png"))
}
