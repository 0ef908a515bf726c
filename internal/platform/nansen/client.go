// Package nansen is the HTTP client for the Nansen smart-money analytics
// API, plus a deterministic fixture client for offline runs.
package nansen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
)

const (
	dexTradesPath     = "/api/v1/smart-money/dex-trades"
	tokenScreenerPath = "/api/v1/token-screener"
	netflowPath       = "/api/v1/smart-money/netflow"
	addressLabelsPath = "/api/beta/profiler/address/labels"
)

// Client queries the Nansen API. All endpoints are POST with a JSON filter
// payload; responses are returned as the raw decoded envelope so the
// normalizer can pick the rows out of whichever shape the endpoint uses.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

// NewClient creates a new Nansen client. maxRetries bounds the retry loop on
// 5xx responses; 0 means no retries.
func NewClient(baseURL, apiKey string, maxRetries int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchDexTrades queries recent smart-money DEX trades.
func (c *Client) FetchDexTrades(ctx context.Context, filters map[string]any) (map[string]any, error) {
	payload, err := c.doPost(ctx, dexTradesPath, filters)
	if err != nil {
		return nil, fmt.Errorf("nansen: fetch dex trades: %w", err)
	}
	return payload, nil
}

// FetchTokenScreener queries the token screener for volume and liquidity
// aggregates over the requested window.
func (c *Client) FetchTokenScreener(ctx context.Context, filters map[string]any) (map[string]any, error) {
	payload, err := c.doPost(ctx, tokenScreenerPath, filters)
	if err != nil {
		return nil, fmt.Errorf("nansen: fetch token screener: %w", err)
	}
	return payload, nil
}

// FetchNetflows queries smart-money netflow aggregates per token.
func (c *Client) FetchNetflows(ctx context.Context, filters map[string]any) (map[string]any, error) {
	payload, err := c.doPost(ctx, netflowPath, filters)
	if err != nil {
		return nil, fmt.Errorf("nansen: fetch netflows: %w", err)
	}
	return payload, nil
}

// FetchAddressLabels resolves the provider labels assigned to one address on
// one chain.
func (c *Client) FetchAddressLabels(ctx context.Context, chain, address string) ([]domain.AddressLabel, error) {
	payload, err := c.doPost(ctx, addressLabelsPath, map[string]any{
		"parameters": map[string]any{
			"chain":   chain,
			"address": address,
		},
		"pagination": map[string]any{"page": 1, "per_page": 100},
	})
	if err != nil {
		return nil, fmt.Errorf("nansen: fetch address labels: %w", err)
	}

	var labels []domain.AddressLabel
	for _, row := range rows(payload) {
		label, _ := row["label"].(string)
		if label == "" {
			continue
		}
		category, _ := row["category"].(string)
		labels = append(labels, domain.AddressLabel{Label: label, Category: category})
	}
	return labels, nil
}

// rows extracts the record list from a response envelope, accepting both
// {"data": [...]} and {"result": {"data": [...]}} shapes.
func rows(payload map[string]any) []map[string]any {
	raw, ok := payload["data"]
	if !ok {
		if result, ok := payload["result"].(map[string]any); ok {
			raw = result["data"]
		}
	}

	var out []map[string]any
	switch items := raw.(type) {
	case []any:
		for _, item := range items {
			if row, ok := item.(map[string]any); ok {
				out = append(out, row)
			}
		}
	case []map[string]any:
		out = items
	}
	return out
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doPost executes one POST with retries on 5xx. Rate limiting and auth
// failures map to the domain sentinels so callers can branch on them.
func (c *Client) doPost(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		payload, retryable, err := c.attempt(ctx, path, jsonBody)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, path string, jsonBody []byte) (map[string]any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, fmt.Errorf("HTTP 429: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return payload, false, nil
}
