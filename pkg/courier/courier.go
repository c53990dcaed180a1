// Package courier pushes outbound replies to the chat-surface webhook.
// Delivery is best-effort: the conversation state machine never depends
// on a delivery having landed.
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/pawdesk/groomflow/agent/contract"
)

type Config struct {
	URL     string        `split_words:"true" required:"true"`
	Token   string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ contractx.Courier = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("courier url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Deliver posts one reply to the webhook. Non-2xx and transport errors
// surface as ErrUpstreamUnavailable so callers can log-and-continue.
func (c *Client) Deliver(ctx context.Context, out contractx.Outbound) error {
	if strings.TrimSpace(out.ConversationID) == "" {
		return fmt.Errorf("%w: outbound conversation id is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(out.Reply) == "" {
		return fmt.Errorf("%w: outbound reply is empty", contractx.ErrValidation)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build outbound request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: deliver reply: %v", contractx.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: webhook status=%d", contractx.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}
