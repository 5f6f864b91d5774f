package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs an API client for the given bind address or URL.
func NewClient(address, token string) *Client {
	base := strings.TrimSpace(address)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit admits a new task.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks", req, &resp)
	return resp, err
}

// Status fetches one task snapshot.
func (c *Client) Status(ctx context.Context, id string) (TaskSnapshot, error) {
	var resp TaskSnapshot
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// List fetches task snapshots filtered by state and/or key.
func (c *Client) List(ctx context.Context, states []string, key string) (ListResponse, error) {
	query := url.Values{}
	for _, state := range states {
		if strings.TrimSpace(state) != "" {
			query.Add("state", state)
		}
	}
	if strings.TrimSpace(key) != "" {
		query.Set("key", key)
	}
	path := "/api/tasks"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp ListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Cancel requests cancellation of a task.
func (c *Client) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	var resp CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp, err
}

// Logs fetches a task's execution log.
func (c *Client) Logs(ctx context.Context, id string) (LogsResponse, error) {
	var resp LogsResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id)+"/logs", nil, &resp)
	return resp, err
}

// Stats fetches queue statistics.
func (c *Client) Stats(ctx context.Context) (QueueStats, error) {
	var resp QueueStats
	err := c.do(ctx, http.MethodGet, "/api/queue/stats", nil, &resp)
	return resp, err
}

// Pause stops task dispatch.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/queue/pause", nil, nil)
}

// Resume restarts task dispatch.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/queue/resume", nil, nil)
}

// Clear removes terminal tasks.
func (c *Client) Clear(ctx context.Context) (ClearResponse, error) {
	var resp ClearResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/clear", nil, &resp)
	return resp, err
}

// DaemonStatus fetches daemon runtime state.
func (c *Client) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if unmarshalErr := json.Unmarshal(data, &apiErr); unmarshalErr == nil && apiErr.Error != "" {
			return decorateStatus(resp.StatusCode, apiErr.Error)
		}
		return decorateStatus(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decorateStatus maps HTTP status codes back to the queue's error taxonomy
// so CLI callers can branch with errors.Is.
func decorateStatus(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", queue.ErrNotFound, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", queue.ErrValidation, message)
	default:
		return fmt.Errorf("api error (status %d): %s", status, message)
	}
}
