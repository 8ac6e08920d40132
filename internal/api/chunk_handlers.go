package api

import (
	"net/http"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/performance"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// ChunkHandlers serves chunk documents
type ChunkHandlers struct {
	store   *chunkstore.Store
	metrics *performance.Metrics
}

// NewChunkHandlers creates a new instance of ChunkHandlers.
func NewChunkHandlers(store *chunkstore.Store, metrics *performance.Metrics) *ChunkHandlers {
	return &ChunkHandlers{store: store, metrics: metrics}
}

// GetChunk handles GET /chunk/{id}.
// Responds with the chunk's scene document and its declared content type.
func (h *ChunkHandlers) GetChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkIDFromRequest(w, r)
	if !ok {
		return
	}

	chunk, found := h.store.Lookup(id)
	h.metrics.Lookup("chunk", found)
	if !found {
		respondWithError(w, http.StatusNotFound, msgChunkNotFound)
		return
	}

	writeBody(w, chunk.ContentType(), []byte(chunk.Document()))
}

// chunkIDFromRequest parses the {id} route variable, answering 400 itself
// when it is malformed.
func chunkIDFromRequest(w http.ResponseWriter, r *http.Request) (chunkstore.ID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := chunkstore.ParseID(raw)
	if err != nil {
		log.WithError(err).WithField("path", r.URL.Path).Debug("Rejected chunk id")
		respondWithError(w, http.StatusBadRequest, msgInvalidChunkID)
		return 0, false
	}
	return id, true
}
