// Package zeroex is the HTTP client for the 0x Swap API (allowance-holder
// flavor), used for both simulated pricing and live quote retrieval.
package zeroex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pricePath = "/swap/allowance-holder/price"
	quotePath = "/swap/allowance-holder/quote"
)

// APIError is a non-2xx response from the 0x API. The message is the API's
// own "message" field when the body is JSON, the raw body otherwise.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("0x API returned %d: %s", e.StatusCode, e.Message)
}

// Transaction is the ready-to-sign transaction a quote carries.
type Transaction struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
	Value    string `json:"value"`
}

// SwapResponse is the decoded price or quote payload. Raw preserves the full
// response for persistence; typed fields cover what the trading flow reads.
type SwapResponse struct {
	SellAmount      string       `json:"sellAmount"`
	BuyAmount       string       `json:"buyAmount"`
	AllowanceTarget string       `json:"allowanceTarget"`
	Zid             string       `json:"zid"`
	Transaction     *Transaction `json:"transaction"`
	Issues          struct {
		Allowance *struct {
			Spender string `json:"spender"`
		} `json:"allowance"`
	} `json:"issues"`

	Raw map[string]any `json:"-"`
}

// AllowanceSpender returns the address that needs the sell-token allowance,
// preferring the top-level allowanceTarget over the issues block. Empty means
// no allowance is required.
func (r *SwapResponse) AllowanceSpender() string {
	if r.AllowanceTarget != "" {
		return r.AllowanceTarget
	}
	if r.Issues.Allowance != nil {
		return r.Issues.Allowance.Spender
	}
	return ""
}

// SwapParams are the query parameters shared by price and quote calls.
type SwapParams struct {
	ChainID     int64
	SellToken   string
	BuyToken    string
	SellAmount  string
	Taker       string
	SlippageBps int
}

// Client talks to the 0x Swap API.
type Client struct {
	baseURL    string
	apiKey     string
	version    string
	httpClient *http.Client
}

// NewClient creates a 0x client. version selects the API generation via the
// 0x-version header; "v2" is current.
func NewClient(baseURL, apiKey, version string) *Client {
	if version == "" {
		version = "v2"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		version: version,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// GetPrice returns indicative pricing without reserving a quote.
func (c *Client) GetPrice(ctx context.Context, params SwapParams) (*SwapResponse, error) {
	return c.doSwapRequest(ctx, pricePath, params)
}

// GetQuote returns a firm quote including the transaction to sign.
func (c *Client) GetQuote(ctx context.Context, params SwapParams) (*SwapResponse, error) {
	return c.doSwapRequest(ctx, quotePath, params)
}

func (c *Client) doSwapRequest(ctx context.Context, path string, params SwapParams) (*SwapResponse, error) {
	query := url.Values{}
	query.Set("chainId", strconv.FormatInt(params.ChainID, 10))
	query.Set("sellToken", params.SellToken)
	query.Set("buyToken", params.BuyToken)
	query.Set("sellAmount", params.SellAmount)
	query.Set("taker", params.Taker)
	if params.SlippageBps > 0 {
		query.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("zeroex: create request: %w", err)
	}
	req.Header.Set("0x-api-key", c.apiKey)
	req.Header.Set("0x-version", c.version)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zeroex: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("zeroex: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		message := string(body)
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			message = payload.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	var swap SwapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("zeroex: decode response: %w", err)
	}
	if err := json.Unmarshal(body, &swap.Raw); err != nil {
		return nil, fmt.Errorf("zeroex: decode raw response: %w", err)
	}
	return &swap, nil
}
