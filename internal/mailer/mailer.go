// Package mailer delivers outbound email through an HTTP email API.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/birdtrack/support-platform/internal/support"
)

// Config holds the email provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	From    string
}

// Client is a thin client for the provider's send endpoint.
type Client struct {
	http *resty.Client
	from string
}

// New creates a mail client.
func New(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(10 * time.Second)
	return &Client{http: http, from: cfg.From}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers one email and returns the provider message id.
func (c *Client) Send(ctx context.Context, mail support.Mail) (string, error) {
	var out sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    c.from,
			To:      mail.To,
			Subject: mail.Subject,
			Text:    mail.Text,
			HTML:    mail.HTML,
		}).
		SetResult(&out).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("email provider returned %s", resp.Status())
	}
	return out.ID, nil
}
