package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codedrop/internal/api"
	"codedrop/internal/config"
	"codedrop/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               8080,
		Secret:             "test-secret",
		Env:                "development",
		BaseURL:            "http://localhost:8080",
		UploadMaxSize:      1 << 20,
		StorageQuota:       4 << 20,
		AnonymousExpiresIn: 24 * time.Hour,
		AnonymousRateLimit: 3,
	}
}

// newRouter builds the routes without a database. Only routes that answer
// before touching a repository may be exercised.
func newRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	provider, err := storage.NewLocalStorage(t.TempDir(), cfg.BaseURL)
	require.NoError(t, err)

	srv, err := NewServer(cfg, nil, provider)
	require.NoError(t, err)
	return srv.RegisterRoutes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewServer_RequiresProvider(t *testing.T) {
	_, err := NewServer(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestRoutes_NotFoundIsJSON(t *testing.T) {
	router := newRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Not found", resp.Error)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	router := newRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/anonymous-upload", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, decodeError(t, rec).Success)
}

func TestRoutes_ProtectedRequireToken(t *testing.T) {
	router := newRouter(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/uploads"},
		{http.MethodPost, "/api/uploads"},
		{http.MethodDelete, "/api/uploads/6b1f0b6e-4c1a-4a57-9f3e-2d0f3a7c9e11"},
		{http.MethodGet, "/api/dashboard/stats"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRoutes_RejectsForgedToken(t *testing.T) {
	router := newRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutes_AnonymousCode(t *testing.T) {
	router := newRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anonymous-code", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Regexp(t, `^\d{8}$`, resp.Code)
}

func TestRoutes_AnonymousDownloadRequiresCode(t *testing.T) {
	router := newRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anonymous-download", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Code is required", decodeError(t, rec).Error)
}

func TestRoutes_AnonymousRateLimit(t *testing.T) {
	cfg := testConfig()
	router := newRouter(t, cfg)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/anonymous-code", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < cfg.AnonymousRateLimit; i++ {
		require.Equal(t, http.StatusOK, send())
	}
	assert.Equal(t, http.StatusTooManyRequests, send())

	// Other clients and authenticated routes are unaffected
	req := httptest.NewRequest(http.MethodGet, "/api/anonymous-code", nil)
	req.RemoteAddr = "198.51.100.2:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_RateLimitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.AnonymousRateLimit = 0
	router := newRouter(t, cfg)

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anonymous-code", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRoutes_Metrics(t *testing.T) {
	router := newRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anonymous-code", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `path="/api/anonymous-code"`))
}

func TestRoutes_ServeUnknownObject(t *testing.T) {
	router := newRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/f/../../etc/passwd", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransferTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, transferTimeout(0))
	assert.Equal(t, 40*time.Second, transferTimeout(10<<20))
}
