package testutil

import (
	"net/http"
	"net/http/httptest"
)

// HTTPTestHelper provides utilities for HTTP testing
type HTTPTestHelper struct {
	Handler http.Handler
}

// NewHTTPTestHelper creates a new HTTP test helper
func NewHTTPTestHelper(handler http.Handler) *HTTPTestHelper {
	return &HTTPTestHelper{Handler: handler}
}

// MakeRequest executes a body-less request against the handler
func (h *HTTPTestHelper) MakeRequest(method, path string) *httptest.ResponseRecorder {
	return h.MakeRequestWithHeaders(method, path, nil)
}

// MakeRequestWithHeaders executes a body-less request with custom headers
func (h *HTTPTestHelper) MakeRequestWithHeaders(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rr := httptest.NewRecorder()
	h.Handler.ServeHTTP(rr, req)
	return rr
}
