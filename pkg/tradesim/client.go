// Package tradesim provides a Go client for the tradesim-server API.
package tradesim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the tradesim-server HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client targeting baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type definitionRequest struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Params string `json:"params"`
}

// ListStrategies returns all resolvable strategy names and stored
// definitions.
func (c *Client) ListStrategies(ctx context.Context) (*StrategiesResponse, error) {
	var out StrategiesResponse
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStrategy fetches a single stored definition by name.
func (c *Client) GetStrategy(ctx context.Context, name string) (*Definition, error) {
	var out Definition
	if err := c.do(ctx, http.MethodGet, "/api/strategies/"+name, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddStrategy stores a new strategy definition.
func (c *Client) AddStrategy(ctx context.Context, name, kind, params string) (*Definition, error) {
	var out Definition
	req := definitionRequest{Name: name, Kind: kind, Params: params}
	if err := c.do(ctx, http.MethodPost, "/api/strategies", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditStrategy replaces the kind and params of a stored definition.
func (c *Client) EditStrategy(ctx context.Context, name, kind, params string) (*Definition, error) {
	var out Definition
	req := definitionRequest{Kind: kind, Params: params}
	if err := c.do(ctx, http.MethodPut, "/api/strategies/"+name, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStrategy removes a stored definition.
func (c *Client) DeleteStrategy(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/strategies/"+name, nil, nil)
}

// RunBacktest executes a backtest and returns its result.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*Result, error) {
	var out Result
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableLive enables a strategy for live trading. Zero Balance and empty
// Timeframe fields use the server defaults.
func (c *Client) EnableLive(ctx context.Context, req EnableRequest) error {
	return c.do(ctx, http.MethodPost, "/api/live/enable", req, nil)
}

// DisableLive stops a live strategy.
func (c *Client) DisableLive(ctx context.Context, strategyName string) error {
	return c.do(ctx, http.MethodPost, "/api/live/disable/"+strategyName, nil, nil)
}

// LiveResults returns current results for all live strategies.
func (c *Client) LiveResults(ctx context.Context) (map[string]*Result, error) {
	var out struct {
		Results map[string]*Result `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/live/results", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// StopLive stops every live runner.
func (c *Client) StopLive(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/live/stop", nil, nil)
}
