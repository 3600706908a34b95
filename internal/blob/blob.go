// Package blob stores binary attachments through a storage REST API
// and serves them by public URL.
package blob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds the storage API settings.
type Config struct {
	BaseURL string
	APIKey  string
	Bucket  string
}

// Client uploads objects into one bucket.
type Client struct {
	http    *resty.Client
	baseURL string
	bucket  string
}

// New creates a storage client.
func New(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(30 * time.Second)
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		bucket:  cfg.Bucket,
	}
}

// Upload stores an object and returns its path within the bucket.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Post(fmt.Sprintf("/object/%s/%s", c.bucket, path))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("storage returned %s for %s", resp.Status(), path)
	}
	return path, nil
}

// PublicURL returns the public URL for an object path.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, path)
}
