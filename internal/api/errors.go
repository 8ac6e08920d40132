package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// Error bodies returned by the data plane
const (
	msgInvalidChunkID  = "Invalid chunk id"
	msgInvalidMaxSize  = "Invalid max_size"
	msgChunkNotFound   = "Chunk not found"
	msgTextureNotFound = "Texture not found"
	msgEXRNotFound     = "EXR file not found"
	msgEncodeFailed    = "Failed to encode texture"
)

// respondWithError writes a short plain-text reason
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(message)); err != nil {
		log.WithError(err).Debug("Failed to write error response")
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Failed to write JSON response")
	}
}

// writeBody sends a fully prepared body with an explicit length
func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		// Client went away mid-response
		log.WithError(err).Debug("Failed to write response body")
	}
}
