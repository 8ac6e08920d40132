package api

import (
	"net/http"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/config"
	"github.com/earthring/scenecast/internal/performance"
	"github.com/earthring/scenecast/internal/streaming"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the collaborators the data plane serves from.
// Hub and Metrics are optional.
type Dependencies struct {
	Config  *config.Config
	Store   *chunkstore.Store
	Hub     *streaming.Hub
	Metrics *performance.Metrics
}

// NewRouter registers every data-plane route and wraps them in the
// middleware chain: recovery, CORS, security headers, rate limit.
func NewRouter(deps Dependencies) http.Handler {
	router := mux.NewRouter()
	// Filenames are map keys and must reach handlers exactly as requested.
	router.SkipClean(true)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	SetupChunkRoutes(router, deps.Store, deps.Metrics)
	router.Handle("/health", HealthHandler(deps.Store)).Methods(http.MethodGet)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}
	if deps.Hub != nil {
		ws := NewWebSocketHandlers(deps.Hub, deps.Config.CORS)
		router.HandleFunc("/ws", ws.HandleWebSocket).Methods(http.MethodGet)
	}

	var h http.Handler = router
	h = RateLimitMiddleware(deps.Config.RateLimit.Requests, deps.Config.RateLimit.Window)(h)
	h = SecurityHeadersMiddleware(h)
	h = CORSMiddleware(deps.Config.CORS)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.StandardLogger()),
		handlers.PrintRecoveryStack(deps.Config.Server.IsDevelopment()),
	)(h)
	return h
}

// SetupChunkRoutes registers the chunk document and texture routes
func SetupChunkRoutes(router *mux.Router, store *chunkstore.Store, metrics *performance.Metrics) {
	chunks := NewChunkHandlers(store, metrics)
	textures := NewTextureHandlers(store, metrics)

	// Documents are JSON text and compress well; textures are already compressed.
	router.Handle("/chunk/{id}",
		metrics.InstrumentRoute("chunk", handlers.CompressHandler(http.HandlerFunc(chunks.GetChunk))),
	).Methods(http.MethodGet, http.MethodHead)

	router.Handle("/texture/{id}/{filename:.+}",
		metrics.InstrumentRoute("texture", http.HandlerFunc(textures.GetTexture)),
	).Methods(http.MethodGet, http.MethodHead)
}
