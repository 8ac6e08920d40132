// Package publisher turns reconstructed geometry and textures into a
// published chunk and announces it.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/compression"
	"github.com/earthring/scenecast/internal/notify"
	"github.com/earthring/scenecast/internal/performance"
	"github.com/earthring/scenecast/internal/scene"
	"github.com/earthring/scenecast/internal/streaming"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Announcer pushes the update message for a chunk
type Announcer interface {
	AnnounceURL(ctx context.Context, id chunkstore.ID, remote, self string) (string, bool)
}

// Broadcaster fans an announcement out to websocket subscribers
type Broadcaster interface {
	Broadcast(a streaming.Announcement) bool
}

// Options configures a Publisher. Notifier and Hub are optional.
type Options struct {
	Store    *chunkstore.Store
	Notifier Announcer
	Hub      Broadcaster
	Metrics  *performance.Metrics

	// SelfAddress is the host:port consumers fetch from
	SelfAddress string
	// NotifyAddress is the remote PULL socket; empty skips push notifications
	NotifyAddress string
}

// Request is one reconstructed scene to publish
type Request struct {
	ChunkID  chunkstore.ID
	Geometry scene.Geometry
	// Textures are served as tex_0.png, tex_1.png, ...
	Textures []*compression.Raster
	// RawAssets are served verbatim, e.g. depth.exr
	RawAssets map[string][]byte
}

// Result describes a completed publish
type Result struct {
	ChunkID     chunkstore.ID
	URL         string
	TextureURLs []string
	Replaced    bool
	Notified    bool
	Broadcast   bool
}

// Publisher encodes, stores and announces reconstructed scenes
type Publisher struct {
	opts Options
}

// New creates a publisher
func New(opts Options) (*Publisher, error) {
	if opts.Store == nil {
		return nil, errors.New("publisher needs a store")
	}
	if opts.SelfAddress == "" {
		return nil, errors.New("publisher needs a self address")
	}
	return &Publisher{opts: opts}, nil
}

// TextureFilename names the i-th texture of a chunk
func TextureFilename(i int) string {
	return fmt.Sprintf("tex_%d.png", i)
}

// TextureURL is the data-plane URL of a chunk texture
func TextureURL(self string, id chunkstore.ID, filename string) string {
	return fmt.Sprintf("http://%s/texture/%d/%s", self, id, filename)
}

// Publish encodes the scene, installs the chunk and announces it. An error
// means nothing was published. A failed announcement is logged and reported
// in the result; the chunk is still published.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	logger := log.WithField("chunk_id", req.ChunkID)
	self := p.opts.SelfAddress

	filenames := make([]string, len(req.Textures))
	urls := make([]string, len(req.Textures))
	for i := range req.Textures {
		filenames[i] = TextureFilename(i)
		urls[i] = TextureURL(self, req.ChunkID, filenames[i])
	}

	document, err := scene.Encode(req.Geometry, urls)
	if err != nil {
		return nil, errors.Wrapf(err, "encode scene for chunk %d", req.ChunkID)
	}

	b := chunkstore.NewBuilder(document)
	for i, r := range req.Textures {
		if err := b.AddImage(filenames[i], r); err != nil {
			return nil, errors.Wrapf(err, "chunk %d", req.ChunkID)
		}
	}
	for name, data := range req.RawAssets {
		if err := b.AddRaw(name, data); err != nil {
			return nil, errors.Wrapf(err, "chunk %d", req.ChunkID)
		}
	}

	replaced := p.opts.Store.Publish(req.ChunkID, b.Build())
	p.opts.Metrics.ChunkPublished()
	if replaced {
		logger.Info("Replaced existing chunk")
	}

	result := &Result{
		ChunkID:     req.ChunkID,
		TextureURLs: urls,
		Replaced:    replaced,
	}

	if p.opts.Notifier != nil && p.opts.NotifyAddress != "" {
		result.URL, result.Notified = p.opts.Notifier.AnnounceURL(ctx, req.ChunkID, p.opts.NotifyAddress, self)
		p.opts.Metrics.Notification(result.Notified)
		if !result.Notified {
			logger.WithField("endpoint", p.opts.NotifyAddress).Warn("Chunk published but notification failed")
		}
	}
	if result.URL == "" {
		result.URL = notify.ChunkURL(self, req.ChunkID, time.Now().UnixMilli())
	}

	if p.opts.Hub != nil {
		result.Broadcast = p.opts.Hub.Broadcast(streaming.Announcement{ChunkID: req.ChunkID, URL: result.URL})
		p.opts.Metrics.Broadcast(result.Broadcast)
	}

	logger.WithFields(log.Fields{
		"textures": len(req.Textures),
		"raw":      len(req.RawAssets),
		"notified": result.Notified,
	}).Info("Published chunk")
	return result, nil
}
