package nansen

import (
	"context"
	"fmt"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
)

// FixtureClient serves deterministic canned payloads shaped like the real
// API responses. It lets the whole pipeline run without credentials or
// network access.
type FixtureClient struct {
	chains []string
}

// NewFixtureClient creates a fixture client emitting data for the given
// chains. An empty list defaults to ethereum.
func NewFixtureClient(chains []string) *FixtureClient {
	if len(chains) == 0 {
		chains = []string{"ethereum"}
	}
	return &FixtureClient{chains: chains}
}

// FetchDexTrades returns three mock trades per chain with notionals large
// enough to clear the default filter.
func (c *FixtureClient) FetchDexTrades(_ context.Context, _ map[string]any) (map[string]any, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var rows []map[string]any
	for _, chain := range c.chains {
		for i := 1; i <= 3; i++ {
			rows = append(rows, map[string]any{
				"tokenSymbol":   fmt.Sprintf("MOCK%d", i),
				"token_address": fmt.Sprintf("0x%040d", i),
				"chain":         chain,
				"address":       fmt.Sprintf("0xwallet%034d", i),
				"usdNotional":   float64(150000 * i),
				"txHash":        fmt.Sprintf("0xtx%037d", i),
				"timestamp":     now,
			})
		}
	}
	return map[string]any{"data": rows}, nil
}

// FetchTokenScreener returns screener rows matching the mock trades.
func (c *FixtureClient) FetchTokenScreener(_ context.Context, _ map[string]any) (map[string]any, error) {
	var rows []map[string]any
	for _, chain := range c.chains {
		for i := 1; i <= 3; i++ {
			rows = append(rows, map[string]any{
				"tokenSymbol":   fmt.Sprintf("MOCK%d", i),
				"token_address": fmt.Sprintf("0x%040d", i),
				"chain":         chain,
				"liquidity":     float64(100000 * i),
				"buy_volume":    float64(50000 * i),
				"sell_volume":   float64(25000 * i),
				"netflow":       float64(25000 * i),
			})
		}
	}
	return map[string]any{"data": rows}, nil
}

// FetchNetflows returns one positive netflow row per chain, covering MOCK1.
func (c *FixtureClient) FetchNetflows(_ context.Context, _ map[string]any) (map[string]any, error) {
	var rows []map[string]any
	for _, chain := range c.chains {
		rows = append(rows, map[string]any{
			"tokenSymbol":      "MOCK1",
			"token_address":    fmt.Sprintf("0x%040d", 1),
			"chain":            chain,
			"net_flow_24h_usd": 10000.0,
			"net_flow_7d_usd":  70000.0,
			"net_flow_30d_usd": 100000.0,
			"trader_count":     5,
		})
	}
	return map[string]any{"data": rows}, nil
}

// FetchAddressLabels tags every address with a single mock label.
func (c *FixtureClient) FetchAddressLabels(_ context.Context, _, _ string) ([]domain.AddressLabel, error) {
	return []domain.AddressLabel{{Label: "Smart Money Mock", Category: "mock"}}, nil
}
