package api

import (
	"net/http"
	"strconv"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/compression"
	"github.com/earthring/scenecast/internal/performance"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Largest accepted ?max_size
const maxDownscaleSize = 8192

// TextureHandlers serves the image and raw assets of a chunk
type TextureHandlers struct {
	store   *chunkstore.Store
	metrics *performance.Metrics
}

// NewTextureHandlers creates a new instance of TextureHandlers.
func NewTextureHandlers(store *chunkstore.Store, metrics *performance.Metrics) *TextureHandlers {
	return &TextureHandlers{store: store, metrics: metrics}
}

// GetTexture handles GET /texture/{id}/{filename}.
//
// The suffix decides where the asset is looked up: .png and .jpg/.jpeg come
// from the chunk's rasters and are encoded per request, .exr is served
// verbatim from the raw assets, and anything else is served as a binary
// blob from either map, raw first.
func (h *TextureHandlers) GetTexture(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkIDFromRequest(w, r)
	if !ok {
		return
	}
	filename := mux.Vars(r)["filename"]

	maxSize, err := parseMaxSize(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, msgInvalidMaxSize)
		return
	}

	chunk, found := h.store.Lookup(id)
	if !found {
		h.metrics.Lookup("texture", false)
		respondWithError(w, http.StatusNotFound, msgChunkNotFound)
		return
	}

	logger := log.WithFields(log.Fields{"chunk_id": id, "filename": filename})
	format := compression.FormatForFilename(filename)

	switch format {
	case compression.PNG, compression.JPEG:
		img, ok := chunk.Image(filename)
		h.metrics.Lookup("texture", ok)
		if !ok {
			respondWithError(w, http.StatusNotFound, msgTextureNotFound)
			return
		}
		h.writeRaster(w, logger, img, format, format.ContentType(), maxSize)

	case compression.EXR:
		raw, ok := chunk.Raw(filename)
		h.metrics.Lookup("texture", ok)
		if !ok {
			respondWithError(w, http.StatusNotFound, msgEXRNotFound)
			return
		}
		writeBody(w, compression.ContentTypeEXR, raw)

	default:
		if raw, ok := chunk.Raw(filename); ok {
			h.metrics.Lookup("texture", true)
			writeBody(w, compression.ContentTypeBinary, raw)
			return
		}
		if img, ok := chunk.Image(filename); ok {
			h.metrics.Lookup("texture", true)
			h.writeRaster(w, logger, img, compression.PNG, compression.ContentTypeBinary, maxSize)
			return
		}
		h.metrics.Lookup("texture", false)
		respondWithError(w, http.StatusNotFound, msgTextureNotFound)
	}
}

// writeRaster encodes img completely before sending anything, so an encode
// failure never leaves a partial body.
func (h *TextureHandlers) writeRaster(w http.ResponseWriter, logger *log.Entry, img *compression.Raster, format compression.Format, contentType string, maxSize int) {
	op := h.metrics.StartEncode(format.String())
	body, err := compression.EncodeRaster(img, format, maxSize)
	op.End()
	if err != nil {
		logger.WithError(err).Error("Failed to encode texture")
		respondWithError(w, http.StatusInternalServerError, msgEncodeFailed)
		return
	}
	writeBody(w, contentType, body)
}

// parseMaxSize reads the optional ?max_size downscale bound; 0 means none
func parseMaxSize(r *http.Request) (int, error) {
	v := r.URL.Query().Get("max_size")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > maxDownscaleSize {
		return 0, strconv.ErrRange
	}
	return n, nil
}
