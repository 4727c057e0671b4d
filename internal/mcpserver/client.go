package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the creditrail API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // API key, e.g. "sk_..."
}

// RailClient is a pure HTTP client for the creditrail API. All tools are
// read-only: credits move through webhooks and the debit endpoints, never
// through an LLM session.
type RailClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewRailClient creates a new client for the creditrail API.
func NewRailClient(cfg Config) *RailClient {
	return &RailClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP GET to the API and returns the response body.
func (c *RailClient) doRequest(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetBalance returns the key owner's current credit balance.
func (c *RailClient) GetBalance(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, "/v1/credits/balance", nil)
}

// GetHistory returns the key owner's ledger history, newest first.
func (c *RailClient) GetHistory(ctx context.Context, limit, offset int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return c.doRequest(ctx, "/v1/credits/history", q)
}

// GetOrder returns a single order owned by the key owner.
func (c *RailClient) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	return c.doRequest(ctx, "/v1/orders/"+url.PathEscape(orderID), nil)
}

// ListOrders lists the key owner's orders, newest first.
func (c *RailClient) ListOrders(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, "/v1/orders", q)
}

// ListUnreconciled lists orders stuck awaiting a payment event. Requires an
// admin key.
func (c *RailClient) ListUnreconciled(ctx context.Context, olderThan string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if olderThan != "" {
		q.Set("olderThan", olderThan)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, "/v1/admin/unreconciled", q)
}

// EventCounts returns webhook event marker counts by status. Requires an
// admin key.
func (c *RailClient) EventCounts(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, "/v1/admin/events", nil)
}
