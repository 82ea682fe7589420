package bunny

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StreamClient manages lecture videos in a Bunny Stream library.
type StreamClient struct {
	endpoint
	libraryID   string
	baseURL     string
	securityKey string
	deliveryURL string
	expiresIn   int
	now         func() time.Time
}

// NewStreamClient creates a new Bunny Stream client.
func NewStreamClient(libraryID, apiKey, baseURL, securityKey, deliveryURL string, expiresIn int) *StreamClient {
	return &StreamClient{
		endpoint: endpoint{
			service:    "stream",
			accessKey:  apiKey,
			httpClient: &http.Client{Timeout: 30 * time.Second},
		},
		libraryID:   libraryID,
		baseURL:     strings.TrimRight(baseURL, "/"),
		securityKey: securityKey,
		deliveryURL: deliveryURL,
		expiresIn:   expiresIn,
		now:         time.Now,
	}
}

type guidResponse struct {
	GUID string `json:"guid"`
}

func (c *StreamClient) libraryURL(format string, args ...interface{}) string {
	return fmt.Sprintf("%s/library/%s", c.baseURL, c.libraryID) + fmt.Sprintf(format, args...)
}

// CreateCourseCollection creates the collection that groups a course's lecture videos.
// The collection is named "<prefix> - <courseTitle>".
func (c *StreamClient) CreateCourseCollection(ctx context.Context, prefix, courseTitle string) (string, error) {
	payload := map[string]string{"name": fmt.Sprintf("%s - %s", prefix, courseTitle)}

	var result guidResponse
	if err := c.doJSON(ctx, http.MethodPost, c.libraryURL("/collections"), payload, &result); err != nil {
		return "", err
	}
	return result.GUID, nil
}

// DeleteCollection deletes a collection by ID.
func (c *StreamClient) DeleteCollection(ctx context.Context, collectionID string) error {
	return c.do(ctx, http.MethodDelete, c.libraryURL("/collections/%s", collectionID), nil, "", nil)
}

// CreateVideo creates an empty video entry ready for upload.
func (c *StreamClient) CreateVideo(ctx context.Context, title, collectionID string) (string, error) {
	payload := map[string]string{"title": title, "collectionId": collectionID}

	var result guidResponse
	if err := c.doJSON(ctx, http.MethodPost, c.libraryURL("/videos"), payload, &result); err != nil {
		return "", err
	}
	return result.GUID, nil
}

// DeleteVideo deletes a video by ID.
func (c *StreamClient) DeleteVideo(ctx context.Context, videoID string) error {
	return c.do(ctx, http.MethodDelete, c.libraryURL("/videos/%s", videoID), nil, "", nil)
}

// SignedVideoURL returns a token-authenticated HLS playlist URL that expires after
// the configured number of seconds.
func (c *StreamClient) SignedVideoURL(videoID string) (string, error) {
	if strings.TrimSpace(videoID) == "" {
		return "", errors.New("videoID is required")
	}
	if strings.TrimSpace(c.securityKey) == "" || strings.TrimSpace(c.deliveryURL) == "" {
		return "", errors.New("bunny stream signing configuration is missing")
	}

	delivery := strings.TrimRight(strings.TrimSpace(c.deliveryURL), "/")
	if !strings.HasPrefix(delivery, "http://") && !strings.HasPrefix(delivery, "https://") {
		delivery = "https://" + delivery
	}

	expiresIn := c.expiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	expiration := c.now().Unix() + int64(expiresIn)

	urlPath := "/" + strings.Trim(videoID, "/") + "/playlist.m3u8"
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", c.securityKey, urlPath, expiration)))
	token := base64.RawURLEncoding.EncodeToString(hash[:])

	return fmt.Sprintf("%s%s?token=%s&expires=%d", delivery, urlPath, token, expiration), nil
}

// VideoUploadInfo is what a lecturer's client needs to upload a video directly.
type VideoUploadInfo struct {
	VideoID      string `json:"videoId"`
	UploadURL    string `json:"uploadURL"`
	LibraryID    string `json:"libraryId"`
	ExpiresAt    int64  `json:"expiresAt"`
	ExpiresInSec int    `json:"expiresIn"`
}

// GenerateVideoUploadInfo creates a video entry and returns its direct upload target.
func (c *StreamClient) GenerateVideoUploadInfo(ctx context.Context, title, collectionID string, expirationSeconds int) (*VideoUploadInfo, error) {
	videoID, err := c.CreateVideo(ctx, title, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create video: %w", err)
	}

	if expirationSeconds <= 0 {
		expirationSeconds = 86400
	}

	return &VideoUploadInfo{
		VideoID:      videoID,
		UploadURL:    c.libraryURL("/videos/%s", videoID),
		LibraryID:    c.libraryID,
		ExpiresAt:    c.now().Unix() + int64(expirationSeconds),
		ExpiresInSec: expirationSeconds,
	}, nil
}
