// Package client provides a typed HTTP client for the tierd API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the tierd HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithToken sends the bearer token with every request. Required when the
// server's auth_token is set.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks the server's liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reports service mode, corpus size, and query totals.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Answer retrieves tiered content for a query. An empty documentKey
// answers from the newest document.
func (c *Client) Answer(ctx context.Context, query, documentKey string) (*Answer, error) {
	in := map[string]string{"query": query}
	if documentKey != "" {
		in["document_key"] = documentKey
	}
	var out Answer
	if err := c.post(ctx, "/api/v1/answer", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summarize generates the reduced tiers for content without storing it.
func (c *Client) Summarize(ctx context.Context, content string) (*Digest, error) {
	in := map[string]string{"content": content}
	var out Digest
	if err := c.post(ctx, "/api/v1/summarize", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest stores a document under key and returns the digest metadata.
func (c *Client) Ingest(ctx context.Context, key, content string) (*IngestResult, error) {
	in := map[string]string{"key": key, "content": content}
	var out IngestResult
	if err := c.post(ctx, "/api/v1/ingest", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Classify reports the intent classification for a query without
// retrieving content.
func (c *Client) Classify(ctx context.Context, query string) (*Classification, error) {
	in := map[string]string{"query": query}
	var out Classification
	if err := c.post(ctx, "/api/v1/classify", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the aggregate statistics dashboard.
func (c *Client) Stats(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	if err := c.get(ctx, "/api/v1/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetStats zeroes the aggregate statistics.
func (c *Client) ResetStats(ctx context.Context) error {
	return c.post(ctx, "/api/v1/stats/reset", nil, nil)
}

// Documents lists the known document keys.
func (c *Client) Documents(ctx context.Context) ([]string, error) {
	var out struct {
		Documents []string `json:"documents"`
	}
	if err := c.get(ctx, "/api/v1/documents", &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
