// Package gecko is a client for the GeckoTerminal token price API, used by
// the trade simulator to mark open positions to market.
package gecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// networkMap translates our chain names into GeckoTerminal network slugs.
var networkMap = map[string]string{
	"ethereum": "eth",
	"eth":      "eth",
	"solana":   "sol",
	"sol":      "sol",
	"base":     "base",
	"bsc":      "bsc",
	"arbitrum": "arb",
	"optimism": "opt",
	"polygon":  "polygon",
	"matic":    "polygon",
}

// Client queries GeckoTerminal for spot token prices. The API is public and
// unauthenticated; only a modest timeout guards it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a GeckoTerminal client against the given base URL, e.g.
// "https://api.geckoterminal.com/api/v2".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetPrices returns the current USD price per token address on one chain.
// Addresses are lowercased both in the request and in the returned map;
// tokens the API has no price for are simply absent from the result.
func (c *Client) GetPrices(ctx context.Context, chain string, addresses []string) (map[string]float64, error) {
	network := resolveNetwork(chain)
	if network == "" {
		return nil, fmt.Errorf("gecko: unsupported network %q", chain)
	}

	lowered := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr != "" {
			lowered = append(lowered, strings.ToLower(addr))
		}
	}
	if len(lowered) == 0 {
		return map[string]float64{}, nil
	}

	url := fmt.Sprintf("%s/simple/networks/%s/token_price/%s", c.baseURL, network, strings.Join(lowered, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("gecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	for _, flag := range []string{
		"include_market_cap",
		"mcap_fdv_fallback",
		"include_24hr_vol",
		"include_24hr_price_change",
		"include_total_reserve_in_usd",
	} {
		q.Set(flag, "false")
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gecko: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gecko: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gecko: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Attributes struct {
				TokenPrices map[string]*string `json:"token_prices"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("gecko: decode response: %w", err)
	}

	prices := make(map[string]float64, len(payload.Data.Attributes.TokenPrices))
	for addr, raw := range payload.Data.Attributes.TokenPrices {
		if raw == nil {
			continue
		}
		price, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			continue
		}
		prices[strings.ToLower(addr)] = price
	}
	return prices, nil
}

// resolveNetwork maps a chain name to its GeckoTerminal slug, passing through
// names not in the map since GeckoTerminal adds networks faster than we track
// aliases.
func resolveNetwork(chain string) string {
	if chain == "" {
		return ""
	}
	normalized := strings.ToLower(chain)
	if slug, ok := networkMap[normalized]; ok {
		return slug
	}
	return normalized
}
