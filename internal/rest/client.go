// Package rest talks to the chat server's HTTP bootstrap endpoints.
// They return the same message shape the socket uses and exist so a
// fresh session can render history before the socket settles.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/saifulwebid/ngobrol/internal/protocol"
)

// Client fetches conversation and notification history over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given API base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchChats returns the full conversation between two users.
func (c *Client) FetchChats(ctx context.Context, user1, user2 string) ([]protocol.Message, error) {
	q := url.Values{}
	q.Set("user1", user1)
	q.Set("user2", user2)
	return c.fetch(ctx, "/api/chats", q)
}

// FetchNotifs returns the notification history addressed to a user.
func (c *Client) FetchNotifs(ctx context.Context, userID string) ([]protocol.Message, error) {
	q := url.Values{}
	q.Set("userId", userID)
	return c.fetch(ctx, "/api/notifs", q)
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]protocol.Message, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, body)
	}

	// The server marshals an empty list as JSON null.
	var msgs []protocol.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if msgs == nil {
		msgs = []protocol.Message{}
	}
	return msgs, nil
}
