package api

import (
	"net/http"
	"strings"

	"github.com/earthring/scenecast/internal/config"
	"github.com/earthring/scenecast/internal/streaming"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Supported WebSocket protocol versions
	ProtocolVersion1 = "scenecast-v1"
)

// Supported versions in order (highest first)
var supportedVersions = []string{ProtocolVersion1}

// WebSocketHandlers upgrades subscribers onto the stream hub
type WebSocketHandlers struct {
	hub      *streaming.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandlers creates a new WebSocket handlers instance
func NewWebSocketHandlers(hub *streaming.Hub, cors config.CORSConfig) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Native clients send no Origin
				return origin == "" || cors.AllowsOrigin(origin)
			},
		},
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	requested := r.Header.Get("Sec-WebSocket-Protocol")
	version := negotiateVersion(requested)
	if version == "" {
		log.WithField("requested", requested).Warn("WebSocket version negotiation failed")
		respondWithError(w, http.StatusBadRequest, "Unsupported protocol version")
		return
	}

	var responseHeaders http.Header
	if requested != "" {
		responseHeaders = http.Header{}
		responseHeaders.Set("Sec-WebSocket-Protocol", version)
	}

	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		// Upgrade has already written an HTTP error
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	if _, err := h.hub.Serve(conn, version); err != nil {
		log.WithError(err).Warn("Failed to register subscriber")
	}
}

// negotiateVersion selects the highest supported protocol version
func negotiateVersion(requested string) string {
	if requested == "" {
		// Default to v1 if no version specified
		return ProtocolVersion1
	}

	requestedVersions := strings.Split(requested, ",")
	for i := range requestedVersions {
		requestedVersions[i] = strings.TrimSpace(requestedVersions[i])
	}

	for _, supported := range supportedVersions {
		for _, v := range requestedVersions {
			if v == supported {
				return supported
			}
		}
	}
	return ""
}
