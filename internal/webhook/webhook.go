// Package webhook posts JSON payloads to a configured relay endpoint.
// Callers treat delivery as best effort.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client posts to one fixed webhook URL.
type Client struct {
	http *resty.Client
	url  string
}

// New creates a webhook client for the given URL.
func New(url string) *Client {
	return &Client{
		http: resty.New().SetTimeout(5 * time.Second),
		url:  url,
	}
}

// Post sends the body as JSON and returns the response status code.
func (c *Client) Post(ctx context.Context, body any) (int, error) {
	if c.url == "" {
		return 0, fmt.Errorf("webhook URL not configured")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.url)
	if err != nil {
		return 0, fmt.Errorf("webhook post failed: %w", err)
	}
	return resp.StatusCode(), nil
}
