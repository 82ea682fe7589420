package bunny

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StorageClient stores course images in a Bunny Storage zone served through a CDN host.
type StorageClient struct {
	endpoint
	zoneName string
	baseURL  string
	hostname string
}

// NewStorageClient creates a new Bunny Storage client.
func NewStorageClient(zoneName, password, baseURL, hostname string) *StorageClient {
	return &StorageClient{
		endpoint: endpoint{
			service:    "storage",
			accessKey:  password,
			httpClient: &http.Client{Timeout: 60 * time.Second},
		},
		zoneName: zoneName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		hostname: strings.TrimSuffix(strings.TrimPrefix(hostname, "https://"), "/"),
	}
}

func (c *StorageClient) objectURL(remotePath string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.zoneName, strings.TrimPrefix(remotePath, "/"))
}

// UploadStream uploads reader to remotePath and returns the public CDN URL.
func (c *StorageClient) UploadStream(ctx context.Context, remotePath string, reader io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := c.do(ctx, http.MethodPut, c.objectURL(remotePath), reader, contentType, nil); err != nil {
		return "", err
	}
	return c.GetPublicURL(remotePath), nil
}

// DeleteFile deletes a file from the zone.
func (c *StorageClient) DeleteFile(ctx context.Context, remotePath string) error {
	return c.do(ctx, http.MethodDelete, c.objectURL(remotePath), nil, "", nil)
}

// GetPublicURL constructs the public CDN URL for a file.
func (c *StorageClient) GetPublicURL(remotePath string) string {
	return fmt.Sprintf("https://%s/%s", c.hostname, strings.TrimPrefix(remotePath, "/"))
}

// ExtractRelativePath turns a CDN URL back into a zone path. Values that are not
// CDN URLs are returned unchanged.
func (c *StorageClient) ExtractRelativePath(cdnURL string) string {
	return strings.TrimPrefix(cdnURL, fmt.Sprintf("https://%s/", c.hostname))
}
