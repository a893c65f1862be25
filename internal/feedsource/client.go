// Package feedsource is the HTTP client for the remote notification feed,
// the external collaborator that serves the push and in-app channels. The
// client only ever reads; read state is owned by this service, never by the
// feed.
package feedsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Shiftline/shiftline-notify/types"
)

// RemoteNotification is one item as the feed API serializes it. The remote ID
// is only unique within its channel; callers must pair it with the channel to
// form a full identity.
type RemoteNotification struct {
	RemoteID  string          `json:"remoteId"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Category  string          `json:"category"`
	Priority  string          `json:"priority"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Client talks to the remote feed API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new feed-source client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchChannel retrieves one channel's notifications for a user. A transport
// failure, non-2xx status, or malformed body is returned as an error; the
// engine wraps it as a fetch failure and keeps the previous feed.
func (c *Client) FetchChannel(ctx context.Context, channel types.Channel, userID string) ([]RemoteNotification, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}

	endpoint := fmt.Sprintf("%s/v1/feeds/%s?userId=%s", c.baseURL, channel, url.QueryEscape(userID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s channel: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return nil, fmt.Errorf("%s channel fetch failed with status %d: %s", channel, resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("%s channel fetch failed with status %d", channel, resp.StatusCode)
	}

	var payload struct {
		Notifications []RemoteNotification `json:"notifications"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s channel response: %w", channel, err)
	}

	return payload.Notifications, nil
}

// FetchPush retrieves the push-delivered channel.
func (c *Client) FetchPush(ctx context.Context, userID string) ([]RemoteNotification, error) {
	return c.FetchChannel(ctx, types.ChannelPush, userID)
}

// FetchInApp retrieves the in-app channel.
func (c *Client) FetchInApp(ctx context.Context, userID string) ([]RemoteNotification, error) {
	return c.FetchChannel(ctx, types.ChannelInApp, userID)
}

// Ping probes the feed API health endpoint, for readiness reporting.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("feed source unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed source health returned status %d", resp.StatusCode)
	}
	return nil
}
