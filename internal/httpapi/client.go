package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

// DefaultClientTimeout bounds one client request.
const DefaultClientTimeout = 30 * time.Second

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client talks to a running mcpvector server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL, e.g. "http://127.0.0.1:5000".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Search runs a query.
func (c *Client) Search(ctx context.Context, req api.SearchRequest) (api.SearchResponse, error) {
	var resp api.SearchResponse
	err := c.do(ctx, http.MethodPost, PathSearch, req, &resp)
	return resp, err
}

// Status fetches the index status.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, PathStatus, nil, &resp)
	return resp, err
}

// Run triggers a reconciliation.
func (c *Client) Run(ctx context.Context, req api.RunRequest) (api.RunResponse, error) {
	var resp api.RunResponse
	err := c.do(ctx, http.MethodPost, PathRun, req, &resp)
	return resp, err
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, PathHealth, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach mcpvector at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb ErrorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if json.Unmarshal(data, &eb) != nil || eb.Detail == "" {
			eb.Detail = strings.TrimSpace(string(data))
		}
		return &StatusError{StatusCode: resp.StatusCode, Detail: eb.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
