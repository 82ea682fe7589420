package bunny

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCourseCollection(t *testing.T) {
	var gotPath, gotKey string
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotKey = r.URL.Path, r.Header.Get("AccessKey")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"guid":"col-1"}`))
	}))
	defer server.Close()

	client := NewStreamClient("lib", "secret", server.URL, "", "", 0)
	id, err := client.CreateCourseCollection(context.Background(), "ada", "Go Basics")
	require.NoError(t, err)

	assert.Equal(t, "col-1", id)
	assert.Equal(t, "/library/lib/collections", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "ada - Go Basics", payload["name"])
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewStreamClient("lib", "bad", server.URL, "", "", 0).DeleteVideo(context.Background(), "v1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSignedVideoURL(t *testing.T) {
	client := NewStreamClient("lib", "key", "https://video.test", "sign", "cdn.test/", 60)
	client.now = func() time.Time { return time.Unix(1000, 0) }

	url, err := client.SignedVideoURL("abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.test/abc/playlist.m3u8?token="))
	assert.True(t, strings.HasSuffix(url, "&expires=1060"))
	assert.NotContains(t, url, "=&")

	_, err = NewStreamClient("lib", "key", "", "", "", 0).SignedVideoURL("abc")
	assert.Error(t, err)
}

func TestStorageUploadAndPaths(t *testing.T) {
	var gotPath, gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath, gotBody, gotType = r.URL.Path, string(body), r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewStorageClient("zone", "pw", server.URL, "images.test")
	url, err := client.UploadStream(context.Background(), "courses/c1/thumb.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "https://images.test/courses/c1/thumb.png", url)
	assert.Equal(t, "/zone/courses/c1/thumb.png", gotPath)
	assert.Equal(t, "png", gotBody)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "courses/c1/thumb.png", client.ExtractRelativePath(url))
	assert.Equal(t, "relative/path", client.ExtractRelativePath("relative/path"))
}
