package api

import (
	"net/http"

	"github.com/earthring/scenecast/internal/chunkstore"
)

// ServiceName is reported by the health endpoint
const ServiceName = "scenecast-server"

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Chunks  int    `json:"chunks"`
}

// HealthHandler responds to health check requests
func HealthHandler(store *chunkstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: ServiceName,
			Chunks:  store.Len(),
		})
	}
}
