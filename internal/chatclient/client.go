// Package chatclient calls a remote shopassist /chat endpoint.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopassist/internal/chat"
)

const (
	// DefaultURL is the chat endpoint inside the compose network.
	DefaultURL = "http://llm:8000/chat"
	// DefaultTimeout bounds one relayed request.
	DefaultTimeout = 60 * time.Second
	// NoResponseText is returned when the reply carries no "response" field.
	NoResponseText = "I couldn't generate a response."

	maxErrorBody = 4096
)

// ErrUpstream wraps non-2xx answers from the chat endpoint.
var ErrUpstream = errors.New("chat endpoint error")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithAuthToken sends Authorization: Bearer <token> on every request.
func WithAuthToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// Client posts chat requests to a remote endpoint. It satisfies
// router.Chatter.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// New returns a client for url, or DefaultURL when url is empty.
func New(url string, opts ...Option) *Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	c := &Client{url: url, http: &http.Client{Timeout: DefaultTimeout}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL is the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// wireResponse keeps Response optional so a missing field can be told apart
// from an empty answer.
type wireResponse struct {
	Response *string `json:"response"`
	Model    string  `json:"model"`
}

// Chat posts req and decodes the reply. Non-2xx statuses return an error
// wrapping ErrUpstream with the server's message.
func (c *Client) Chat(ctx context.Context, req chat.Request) (chat.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return chat.Response{}, fmt.Errorf("chatclient: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return chat.Response{}, fmt.Errorf("chatclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return chat.Response{}, fmt.Errorf("chatclient: post %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return chat.Response{}, fmt.Errorf("%w: %d %s", ErrUpstream, resp.StatusCode, upstreamMessage(resp.Body))
	}
	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chat.Response{}, fmt.Errorf("chatclient: decode response: %w", err)
	}
	text := NoResponseText
	if out.Response != nil {
		text = *out.Response
	}
	return chat.Response{Response: text, Model: out.Model}, nil
}

// upstreamMessage extracts "message" from an error envelope, falling back to
// the raw body.
func upstreamMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var env struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Message != "" {
		return env.Message
	}
	return strings.TrimSpace(string(raw))
}
