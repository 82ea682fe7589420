package middleware

import (
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func do(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDReusesWellFormedHeader(t *testing.T) {
	r := newRouter(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	rec := do(r, http.MethodGet, "/x", map[string]string{RequestIDHeader: "client-req-0001"})
	assert.Equal(t, "client-req-0001", rec.Body.String())

	rec = do(r, http.MethodGet, "/x", map[string]string{RequestIDHeader: "bad id\n"})
	assert.NotEqual(t, "bad id\n", rec.Body.String())
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter("auth", 2, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := newRouter(rl.Middleware())
	r.GET("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/login", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/login", nil).Code)

	rec := do(r, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/login", nil).Code)
}

func TestRecoveryHidesPanicValue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := newRouter(RequestID(), Recovery(logger))
	r.GET("/boom", func(c *gin.Context) { panic("secret detail") })

	rec := do(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS([]string{"https://app.test"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := do(r, http.MethodOptions, "/x", map[string]string{"Origin": "https://app.test"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.test"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCacheControlLetsHandlerOverride(t *testing.T) {
	r := newRouter(CacheControl("/api"))
	r.GET("/api/catalog", func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=60")
		c.Status(http.StatusOK)
	})
	r.GET("/api/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, "public, max-age=60", do(r, http.MethodGet, "/api/catalog", nil).Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(do(r, http.MethodGet, "/api/me", nil).Header().Get("Cache-Control"), "no-cache"))
}

func TestRequestSizeLimit(t *testing.T) {
	r := newRouter(RequestSizeLimit(4))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("too large"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCompressionSkipsExcludedPrefix(t *testing.T) {
	r := newRouter(Compression(gzip.DefaultCompression, "/metrics"))
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "plain") })
	r.GET("/api/x", func(c *gin.Context) { c.String(http.StatusOK, "zipped") })

	accept := map[string]string{"Accept-Encoding": "gzip"}
	assert.Empty(t, do(r, http.MethodGet, "/metrics", accept).Header().Get("Content-Encoding"))
	assert.Equal(t, "gzip", do(r, http.MethodGet, "/api/x", accept).Header().Get("Content-Encoding"))
}
