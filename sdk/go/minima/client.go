package minima

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the root of the Minima API, e.g. "https://api.minima.dev".
	BaseURL string
	// Token is the identity-provider bearer token sent on every request.
	Token string
	// HTTPClient overrides the default HTTP client when set.
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to the Minima API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("minima: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("minima: invalid BaseURL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    httpClient,
	}, nil
}

// Results lists mirrored optimization results, filtered and paginated.
func (c *Client) Results(ctx context.Context, opts ResultsOptions) (*ResultPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Strategy != "" {
		q.Set("strategy", opts.Strategy)
	}
	if !opts.StartDate.IsZero() {
		q.Set("start_date", opts.StartDate.Format(time.RFC3339))
	}
	if !opts.EndDate.IsZero() {
		q.Set("end_date", opts.EndDate.Format(time.RFC3339))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.SortBy != "" {
		q.Set("sort_by", opts.SortBy)
	}
	if opts.SortOrder != "" {
		q.Set("sort_order", opts.SortOrder)
	}
	if opts.Sync {
		q.Set("sync", "true")
	}

	path := "/v1/results"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var page ResultPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Result fetches a single result by operation id, syncing it from the
// optimizer on a cache miss.
func (c *Client) Result(ctx context.Context, operationID string) (*Result, error) {
	var res Result
	if err := c.get(ctx, "/v1/results/"+url.PathEscape(operationID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SyncResult forces a refresh of one result from the optimizer.
func (c *Client) SyncResult(ctx context.Context, operationID string) (*Result, error) {
	var res Result
	if err := c.post(ctx, "/v1/results/"+url.PathEscape(operationID)+"/sync", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SyncBatch syncs up to 100 operation ids in one call. Per-item failures are
// reported in the summary outcomes, not as an error.
func (c *Client) SyncBatch(ctx context.Context, operationIDs []string) (*SyncSummary, error) {
	body := map[string]any{"operation_ids": operationIDs}
	var summary SyncSummary
	if err := c.post(ctx, "/v1/results/sync", body, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// CreateKey stores a new optimizer key. The returned plaintext is shown
// exactly once; Minima keeps only the ciphertext.
func (c *Client) CreateKey(ctx context.Context, name string) (*KeyWithPlaintext, error) {
	body := map[string]any{"name": name}
	var key KeyWithPlaintext
	if err := c.post(ctx, "/v1/keys", body, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// ListKeys lists stored keys, display prefixes only.
func (c *Client) ListKeys(ctx context.Context) (*KeyList, error) {
	var list KeyList
	if err := c.get(ctx, "/v1/keys", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// RevokeKey deactivates a key. Revocation is permanent.
func (c *Client) RevokeKey(ctx context.Context, id uuid.UUID) error {
	return c.doDelete(ctx, "/v1/keys/"+id.String())
}

// Health checks service and database health. No token required.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.get(ctx, "/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("minima: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("minima: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("minima: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("minima: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}

	// Responses use a {data, meta} envelope; unwrap before decoding.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Data) > 0 {
		data = envelope.Data
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("minima: decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(status int, data []byte) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		return &Error{StatusCode: status, Code: body.Error.Code, Message: body.Error.Message}
	}
	return &Error{StatusCode: status, Code: "unknown", Message: http.StatusText(status)}
}
