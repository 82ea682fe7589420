package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/course-market-go/pkg/apperrors"
)

func run(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestErrorWithLogExposesOnlyAppErrorCode(t *testing.T) {
	_, env := run(t, func(c *gin.Context) {
		ErrorWithLog(nil, c, http.StatusBadGateway, "Payment gateway is unavailable.",
			apperrors.Upstream("Payment gateway is unavailable.", errors.New("secret upstream detail")))
	})
	assert.False(t, env.Success)
	assert.Equal(t, "upstream_unavailable", env.Error)

	_, env = run(t, func(c *gin.Context) {
		ErrorWithLog(nil, c, http.StatusInternalServerError, "failed", errors.New("pq: relation missing"))
	})
	assert.Nil(t, env.Error)
}

func TestCacheHeaders(t *testing.T) {
	rec, env := run(t, func(c *gin.Context) {
		SuccessWithPublicCache(c, http.StatusOK, []int{1}, "", nil, 60)
	})
	assert.True(t, env.Success)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	rec, _ = run(t, func(c *gin.Context) { SuccessWithCache(c, http.StatusOK, nil, "", 30) })
	assert.Equal(t, "private, max-age=30", rec.Header().Get("Cache-Control"))

	rec, _ = run(t, func(c *gin.Context) { SuccessWithCache(c, http.StatusOK, nil, "", 0) })
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}
