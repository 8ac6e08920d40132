// Package streaming fans chunk announcements out to websocket subscribers,
// for consumers that cannot bind a ZeroMQ PULL socket.
package streaming

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Message types sent to subscribers
const (
	MessageChunkUpdate = "chunk_update"
	MessagePong        = "pong"
	MessageError       = "error"
)

const (
	broadcastQueueSize  = 256
	subscriberQueueSize = 64
)

// ErrHubStopped is returned when subscribing to a hub that is no longer running
var ErrHubStopped = errors.New("hub stopped")

// Announcement says that a chunk can be fetched at URL
type Announcement struct {
	ChunkID chunkstore.ID `json:"chunk_id"`
	URL     string        `json:"url"`
}

// Message is the envelope for everything exchanged with subscribers
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorMessage is sent when a subscriber message cannot be handled
type ErrorMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Hub owns the set of subscribers. All changes to the set happen on the Run
// goroutine.
type Hub struct {
	subscribers map[*Subscriber]bool
	broadcast   chan []byte
	register    chan *Subscriber
	unregister  chan *Subscriber
	done        chan struct{}

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		broadcast:   make(chan []byte, broadcastQueueSize),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		done:        make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for sub := range h.subscribers {
				h.drop(sub)
			}
			log.Info("Stream hub stopped")
			return

		case sub := <-h.register:
			h.subscribers[sub] = true
			h.setCount(len(h.subscribers))
			log.WithFields(log.Fields{"subscriber": sub.id, "version": sub.version}).Info("Subscriber registered")

		case sub := <-h.unregister:
			if h.subscribers[sub] {
				h.drop(sub)
				log.WithField("subscriber", sub.id).Info("Subscriber unregistered")
			}

		case message := <-h.broadcast:
			for sub := range h.subscribers {
				select {
				case sub.send <- message:
				default:
					// Too slow to keep up; it can reconnect and poll.
					h.drop(sub)
					log.WithField("subscriber", sub.id).Warn("Disconnected slow subscriber")
				}
			}
		}
	}
}

func (h *Hub) drop(sub *Subscriber) {
	delete(h.subscribers, sub)
	close(sub.send)
	h.setCount(len(h.subscribers))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast queues a chunk announcement for every subscriber. It never
// blocks: when the queue is full the announcement is dropped and false is
// returned.
func (h *Hub) Broadcast(a Announcement) bool {
	data, err := json.Marshal(a)
	if err != nil {
		log.WithError(err).Error("Failed to marshal announcement")
		return false
	}
	message, err := json.Marshal(Message{Type: MessageChunkUpdate, Data: data})
	if err != nil {
		log.WithError(err).Error("Failed to marshal announcement envelope")
		return false
	}

	select {
	case h.broadcast <- message:
		return true
	default:
		log.WithField("chunk_id", a.ChunkID).Warn("Broadcast queue full, dropping announcement")
		return false
	}
}

func (h *Hub) add(sub *Subscriber) error {
	select {
	case h.register <- sub:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) remove(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

func newSubscriberID() string {
	return uuid.NewString()
}
