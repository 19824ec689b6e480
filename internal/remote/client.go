// Package remote is a thin client for the optimizer service's result,
// status, and list endpoints.
//
// Responses are untrusted and variable: payloads stay loosely typed
// (map[string]any) at this boundary and are coerced into strong types by the
// transformer, never here and never past it. The list endpoint's shape
// drift (bare array vs. object wrapper) is also absorbed here so callers
// always see a plain slice.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Payload is a raw remote response body. Only the transformer may interpret it.
type Payload map[string]any

// ServiceError is an unexpected non-2xx response from the optimizer service.
// A 404 is not a ServiceError — "not found" is a valid null outcome.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("remote: optimizer returned status %d: %s", e.Status, e.Body)
}

// maxErrorBodyBytes bounds how much of an error response we retain.
const maxErrorBodyBytes = 1024

// Client calls the remote optimizer service. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the optimizer service at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchResult looks up a finished operation by id. Returns (nil, nil) when
// the remote service has no result for the id.
func (c *Client) FetchResult(ctx context.Context, key, operationID string) (Payload, error) {
	return c.getPayload(ctx, key, "/result/"+url.PathEscape(operationID))
}

// FetchStatus looks up an in-progress operation by id, used as a fallback
// when the result endpoint has nothing yet. Same null-on-404 contract as
// FetchResult.
func (c *Client) FetchStatus(ctx context.Context, key, operationID string) (Payload, error) {
	return c.getPayload(ctx, key, "/status/"+url.PathEscape(operationID))
}

func (c *Client) getPayload(ctx context.Context, key, path string) (Payload, error) {
	resp, err := c.get(ctx, key, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &ServiceError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("remote: decode %s: %w", path, err)
	}
	return payload, nil
}

// ListRecent requests a page of the caller's recent operations. The response
// shape is not guaranteed — a bare array, or an object wrapping an
// "operations" or "results" array all occur in the wild. All three normalize
// to a slice; an empty or malformed body degrades to an empty slice rather
// than an error, because a transient empty list must not abort the rest of
// a sync.
func (c *Client) ListRecent(ctx context.Context, key string, limit, offset int) ([]Payload, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	path := "/list?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	resp, err := c.get(ctx, key, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return []Payload{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &ServiceError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read list body: %w", err)
	}

	return normalizeList(body, c.logger), nil
}

// normalizeList absorbs the list endpoint's shape drift into one slice type.
func normalizeList(body []byte, logger *slog.Logger) []Payload {
	var bare []Payload
	if err := json.Unmarshal(body, &bare); err == nil {
		if bare == nil {
			return []Payload{}
		}
		return bare
	}

	var wrapped struct {
		Operations []Payload `json:"operations"`
		Results    []Payload `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Operations != nil {
			return wrapped.Operations
		}
		if wrapped.Results != nil {
			return wrapped.Results
		}
	}

	logger.Debug("remote: unrecognized list response shape, treating as empty",
		"body_len", len(body))
	return []Payload{}
}

func (c *Client) get(ctx context.Context, key, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: send request: %w", err)
	}
	return resp, nil
}
