package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/platform/nansen"
	"github.com/wycheng/smartflow/internal/store/memory"
)

type stubAlpha struct {
	score float64
}

func (s stubAlpha) ScoreWallet(context.Context, string) (float64, error) {
	return s.score, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineRunOnceWithFixtures(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	client := nansen.NewFixtureClient([]string{"ethereum"})
	enricher := NewEnricher(client, stubAlpha{score: 0.42}, true, logger)

	stores := Stores{
		Tokens:  memory.NewTokenStore(),
		Wallets: memory.NewWalletStore(),
		Events:  memory.NewEventStore(),
		Signals: memory.NewSignalStore(),
		Runs:    memory.NewRunStore(),
	}

	pipeline := NewPipeline(
		QueryConfig{
			Chains:          []string{"ethereum"},
			MinUSDNotional:  100000,
			TokenAgeMinDays: 1,
			TokenAgeMaxDays: 365,
		},
		client,
		enricher,
		Correlator{NetflowMinPositive: 1000},
		NewThresholdFilter(FilterConfig{MinUSDNotional: 100000, LiquidityMinScore: 0.5}, stores.Events),
		testScorer(),
		stores,
		logger,
	)

	result, err := pipeline.RunOnce(ctx)
	require.NoError(t, err)

	// The fixtures emit three tokens across all sources but only MOCK1 has a
	// netflow row, so the all-or-nothing merge keeps exactly one group.
	assert.Equal(t, 3, result.Stats["dex_events"])
	assert.Equal(t, 3, result.Stats["token_screener_events"])
	assert.Equal(t, 1, result.Stats["netflow_events"])
	assert.Equal(t, 7, result.Stats["total_events"])
	assert.Equal(t, 1, result.Stats["merged_events"])
	assert.Equal(t, 1, result.Stats["signals"])
	assert.Equal(t, 1, result.BuySignals)
	assert.Equal(t, 0, result.SellSignals)

	require.Len(t, result.Signals, 1)
	signal := result.Signals[0]
	assert.Equal(t, "MOCK1", signal.Token.Symbol)
	assert.Equal(t, domain.SignalBuy, signal.Type)
	assert.True(t, signal.HasReason("smart_buy"))
	assert.True(t, signal.HasReason("netflow_buy"))
	assert.True(t, signal.HasReason("label"))
	assert.True(t, signal.HasReason("alpha"))
	assert.Greater(t, signal.Score, 0.0)

	// Entities were persisted through the stores.
	token, err := stores.Tokens.Get(ctx, "MOCK1", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, token.LiquidityScore)

	wallet, err := stores.Wallets.Get(ctx, fmt.Sprintf("0xwallet%034d", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Smart Money Mock"}, wallet.Labels)
	assert.Equal(t, 0.42, wallet.AlphaScore)

	signals, err := stores.Signals.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, signals, 1)

	runs, err := stores.Runs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Equal(t, 7, runs[0].EventCount)
	assert.Equal(t, 1, runs[0].SignalCount)
}

func TestPipelineBuildDexFilters(t *testing.T) {
	pipeline := NewPipeline(QueryConfig{
		Chains:           []string{"ethereum", "base"},
		MinUSDNotional:   100000,
		DexIncludeLabels: []string{"Fund", "Smart Trader"},
		TokenAgeMinDays:  1,
		TokenAgeMaxDays:  365,
		TradeValueMax:    5000000,
	}, nil, nil, Correlator{}, nil, nil, Stores{}, discardLogger())

	payload := pipeline.buildDexFilters()
	assert.Equal(t, []string{"ethereum", "base"}, payload["chains"])

	filters := payload["filters"].(map[string]any)
	assert.Equal(t, []string{"Fund", "Smart Trader"}, filters["include_smart_money_labels"])
	assert.NotContains(t, filters, "exclude_smart_money_labels")
	assert.Equal(t, map[string]any{"min": 1, "max": 365}, filters["token_bought_age_days"])
	assert.Equal(t, map[string]any{"min": 100000.0, "max": 5000000.0}, filters["trade_value_usd"])
	assert.Equal(t, map[string]any{"page": 1, "per_page": 100}, payload["pagination"])
}

func TestPipelineDexQueryUsesTradeValueFloor(t *testing.T) {
	// When a dedicated trade-value floor is configured, the upstream query
	// uses it instead of the local signal threshold.
	pipeline := NewPipeline(QueryConfig{
		Chains:         []string{"ethereum"},
		MinUSDNotional: 100000,
		TradeValueMin:  10000,
		TradeValueMax:  10000000,
	}, nil, nil, Correlator{}, nil, nil, Stores{}, discardLogger())

	filters := pipeline.buildDexFilters()["filters"].(map[string]any)
	assert.Equal(t, map[string]any{"min": 10000.0, "max": 10000000.0}, filters["trade_value_usd"])
}

func TestPipelineStampsDefaultChainOnSingleChainDexRows(t *testing.T) {
	logger := discardLogger()
	client := &chainlessDexClient{inner: nansen.NewFixtureClient([]string{"ethereum"})}
	enricher := NewEnricher(client, stubAlpha{}, false, logger)

	stores := Stores{
		Tokens:  memory.NewTokenStore(),
		Wallets: memory.NewWalletStore(),
		Events:  memory.NewEventStore(),
		Signals: memory.NewSignalStore(),
		Runs:    memory.NewRunStore(),
	}

	pipeline := NewPipeline(
		QueryConfig{Chains: []string{"ethereum"}, MinUSDNotional: 100000},
		client,
		enricher,
		Correlator{},
		NewThresholdFilter(FilterConfig{MinUSDNotional: 100000, LiquidityMinScore: 0.5}, stores.Events),
		testScorer(),
		stores,
		logger,
	)

	result, err := pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	// Dex rows arrived without a chain field; the single configured chain is
	// stamped so correlation against screener rows still happens.
	assert.Equal(t, 1, result.Stats["merged_events"])
	require.Len(t, result.Signals, 1)
	assert.Equal(t, "ethereum", result.Signals[0].Token.Chain)
}

// chainlessDexClient strips the chain field from dex rows to simulate the
// upstream omitting it.
type chainlessDexClient struct {
	inner *nansen.FixtureClient
}

func (c *chainlessDexClient) FetchDexTrades(ctx context.Context, filters map[string]any) (map[string]any, error) {
	payload, err := c.inner.FetchDexTrades(ctx, filters)
	if err != nil {
		return nil, err
	}
	if rows, ok := payload["data"].([]map[string]any); ok {
		for _, row := range rows {
			delete(row, "chain")
		}
	}
	return payload, nil
}

func (c *chainlessDexClient) FetchTokenScreener(ctx context.Context, filters map[string]any) (map[string]any, error) {
	return c.inner.FetchTokenScreener(ctx, filters)
}

func (c *chainlessDexClient) FetchNetflows(ctx context.Context, filters map[string]any) (map[string]any, error) {
	return c.inner.FetchNetflows(ctx, filters)
}

func (c *chainlessDexClient) FetchAddressLabels(ctx context.Context, chain, address string) ([]domain.AddressLabel, error) {
	return c.inner.FetchAddressLabels(ctx, chain, address)
}
