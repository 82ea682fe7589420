package request

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReadString(t *testing.T) {
	got, err := ReadString("  Go Basics ")
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", got)

	_, err = ReadString("   ")
	assert.Error(t, err)
	_, err = ReadString(12.0)
	assert.Error(t, err)
}

func TestReadInt(t *testing.T) {
	got, err := ReadInt(4.0)
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	_, err = ReadInt(4.5)
	assert.Error(t, err)
	_, err = ReadInt("4")
	assert.Error(t, err)
}

func TestReadFloat(t *testing.T) {
	got, err := ReadFloat(49.99)
	require.NoError(t, err)
	assert.Equal(t, 49.99, got)

	got, err = ReadFloat(3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	_, err = ReadFloat("49.99")
	assert.Error(t, err)
	_, err = ReadFloat(nil)
	assert.Error(t, err)
}

func TestHandlerMapsContextErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Handler(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/missing", func(c *gin.Context) { _ = c.Error(gorm.ErrRecordNotFound) })
	r.GET("/dup", func(c *gin.Context) { _ = c.Error(gorm.ErrDuplicatedKey) })
	r.GET("/other", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })

	for path, want := range map[string]int{
		"/missing": http.StatusNotFound,
		"/dup":     http.StatusConflict,
		"/other":   http.StatusInternalServerError,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
