package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/config"
	"github.com/earthring/scenecast/internal/performance"
	"github.com/earthring/scenecast/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        "0",
			Environment: "test",
		},
		Network:   config.NetworkConfig{AdvertiseAddress: "127.0.0.1:8080"},
		RateLimit: config.RateLimitConfig{Window: time.Minute},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*testutil.HTTPTestHelper, *chunkstore.Store, *performance.Metrics) {
	t.Helper()
	store := chunkstore.NewStore()
	metrics := performance.NewMetrics()
	router := NewRouter(Dependencies{Config: cfg, Store: store, Metrics: metrics})
	return testutil.NewHTTPTestHelper(router), store, metrics
}

func TestGetChunk(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	fixture := testutil.PublishFixture(store, 42)

	rr := helper.MakeRequest(http.MethodGet, "/chunk/42")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, chunkstore.DefaultContentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, fixture.Document, rr.Body.String())
}

func TestGetChunkHead(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 1)

	rr := helper.MakeRequest(http.MethodHead, "/chunk/1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, chunkstore.DefaultContentType, rr.Header().Get("Content-Type"))
}

func TestGetChunkCompressed(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	fixture := testutil.PublishFixture(store, 7)

	rr := helper.MakeRequestWithHeaders(http.MethodGet, "/chunk/7", map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, fixture.Document, string(body))
}

func TestGetChunkErrors(t *testing.T) {
	helper, _, _ := newTestRouter(t, testConfig())

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"never published", "/chunk/5", http.StatusNotFound, msgChunkNotFound},
		{"letters", "/chunk/abc", http.StatusBadRequest, msgInvalidChunkID},
		{"negative", "/chunk/-1", http.StatusBadRequest, msgInvalidChunkID},
		{"fraction", "/chunk/1.5", http.StatusBadRequest, msgInvalidChunkID},
		{"overflow", "/chunk/99999999999999999999", http.StatusBadRequest, msgInvalidChunkID},
		{"missing id", "/chunk/", http.StatusNotFound, "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := helper.MakeRequest(http.MethodGet, tt.path)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.body, rr.Body.String())
			assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
		})
	}
}

func TestChunkMethodNotAllowed(t *testing.T) {
	helper, _, _ := newTestRouter(t, testConfig())
	rr := helper.MakeRequest(http.MethodPost, "/chunk/1")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGetTexturePNG(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 3)

	rr := helper.MakeRequest(http.MethodGet, "/texture/3/tex_0.png")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestGetTextureJPEG(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 3)

	rr := helper.MakeRequest(http.MethodGet, "/texture/3/photo.jpg")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
}

func TestGetTextureEXRVerbatim(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	fixture := testutil.PublishFixture(store, 3)

	rr := helper.MakeRequest(http.MethodGet, "/texture/3/depth.exr")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/exr", rr.Header().Get("Content-Type"))
	assert.Equal(t, fixture.Raw["depth.exr"], rr.Body.Bytes())
}

func TestGetTextureUnknownSuffix(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	fixture := testutil.PublishFixture(store, 3)

	rr := helper.MakeRequest(http.MethodGet, "/texture/3/meta")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, fixture.Raw["meta"], rr.Body.Bytes())

	// Rasters under unrecognised names are served as PNG bytes.
	rr = helper.MakeRequest(http.MethodGet, "/texture/3/mask.gray")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	cfg, err := png.DecodeConfig(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
}

func TestGetTextureErrors(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 3)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"unknown chunk", "/texture/4/tex_0.png", http.StatusNotFound, msgChunkNotFound},
		{"missing png", "/texture/3/tex_9.png", http.StatusNotFound, msgTextureNotFound},
		{"missing jpeg", "/texture/3/tex_0.jpeg", http.StatusNotFound, msgTextureNotFound},
		{"missing exr", "/texture/3/normals.exr", http.StatusNotFound, msgEXRNotFound},
		{"exr is not a raster", "/texture/3/depth.png", http.StatusNotFound, msgTextureNotFound},
		{"missing blob", "/texture/3/notes.txt", http.StatusNotFound, msgTextureNotFound},
		{"path is not cleaned", "/texture/3/../tex_0.png", http.StatusNotFound, msgTextureNotFound},
		{"bad id", "/texture/x/tex_0.png", http.StatusBadRequest, msgInvalidChunkID},
		{"zero max_size", "/texture/3/tex_0.png?max_size=0", http.StatusBadRequest, msgInvalidMaxSize},
		{"huge max_size", "/texture/3/tex_0.png?max_size=9000", http.StatusBadRequest, msgInvalidMaxSize},
		{"text max_size", "/texture/3/tex_0.png?max_size=big", http.StatusBadRequest, msgInvalidMaxSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := helper.MakeRequest(http.MethodGet, tt.path)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.body, rr.Body.String())
		})
	}
}

func TestGetTextureDownscaled(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 3)

	rr := helper.MakeRequest(http.MethodGet, "/texture/3/tex_0.png?max_size=8")
	require.Equal(t, http.StatusOK, rr.Code)
	cfg, err := png.DecodeConfig(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	assert.Equal(t, 4, cfg.Height)

	// Raw assets ignore the bound.
	rr = helper.MakeRequest(http.MethodGet, "/texture/3/depth.exr?max_size=8")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetTextureEncodeFailure(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())

	r := testutil.GradientRaster(4, 4, 3)
	b := chunkstore.NewBuilder("{}")
	require.NoError(t, b.AddImage("tex_0.png", r))
	store.Publish(1, b.Build())

	// Corrupt the stored raster behind the store's back.
	r.Pix = r.Pix[:5]

	rr := helper.MakeRequest(http.MethodGet, "/texture/1/tex_0.png")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, msgEncodeFailed, rr.Body.String())
}

func TestHealth(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 1)
	testutil.PublishFixture(store, 2)

	rr := helper.MakeRequest(http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Service: ServiceName, Chunks: 2}, resp)
}

func TestMetricsEndpoint(t *testing.T) {
	helper, store, _ := newTestRouter(t, testConfig())
	testutil.PublishFixture(store, 1)

	helper.MakeRequest(http.MethodGet, "/chunk/1")
	helper.MakeRequest(http.MethodGet, "/chunk/2")

	rr := helper.MakeRequest(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `scenecast_lookups_total{resource="chunk",result="hit"} 1`)
	assert.Contains(t, body, `scenecast_lookups_total{resource="chunk",result="miss"} 1`)
	assert.Contains(t, body, `scenecast_http_requests_total{code="200",method="get",route="chunk"} 1`)
}

func TestRouterWithoutMetrics(t *testing.T) {
	router := NewRouter(Dependencies{Config: testConfig(), Store: chunkstore.NewStore()})
	helper := testutil.NewHTTPTestHelper(router)

	assert.Equal(t, http.StatusNotFound, helper.MakeRequest(http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, helper.MakeRequest(http.MethodGet, "/ws").Code)
	assert.Equal(t, http.StatusNotFound, helper.MakeRequest(http.MethodGet, "/chunk/1").Code)
}
