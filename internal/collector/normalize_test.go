package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/domain"
)

func TestNormalizerDexTradesFieldAliases(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{
				"token_bought_symbol":  "PEPE",
				"token_bought_address": "0xabc",
				"chain":                "ethereum",
				"trader_address":       "0xwallet",
				"trade_value_usd":      125000.0,
				"transaction_hash":     "0xtx",
				"block_timestamp":      "2026-08-20T10:00:00Z",
				"token_sold_symbol":    "WETH",
			},
		},
	}

	events, err := Normalizer{}.DexTrades(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, domain.SourceDexTrades, event.Source)
	assert.Equal(t, "PEPE", event.Token.Symbol)
	assert.Equal(t, "0xabc", event.Token.Address)
	assert.Equal(t, "ethereum", event.Token.Chain)
	assert.Equal(t, "0xwallet", event.Wallet.Address)
	assert.Equal(t, 125000.0, event.Features.USDNotional)
	assert.Equal(t, "0xtx", event.TxHash)
	assert.Equal(t, "WETH", event.Features.Metadata["token_sold_symbol"])
	assert.Equal(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), event.OccurredAt)
	// No liquidityScore field defaults the trade's token to fully liquid.
	assert.Equal(t, 1.0, event.Token.LiquidityScore)
}

func TestNormalizerDexTradesBadTimestamp(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{
				"tokenSymbol": "PEPE",
				"timestamp":   "not-a-timestamp",
			},
		},
	}

	_, err := Normalizer{}.DexTrades(payload)
	require.ErrorIs(t, err, domain.ErrNormalization)
}

func TestNormalizerDexTradesMissingTimestampDefaultsToNow(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{"tokenSymbol": "PEPE"},
		},
	}

	before := time.Now().UTC()
	events, err := Normalizer{}.DexTrades(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].OccurredAt.Before(before))
}

func TestNormalizerTokenScreener(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{
				"token_symbol": "PEPE",
				"chain":        "ethereum",
				"liquidity":    50000.0,
				"buy_volume":   30000.0,
				"sell_volume":  10000.0,
				"netflow":      20000.0,
			},
		},
	}

	events, err := Normalizer{}.TokenScreener(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, domain.SourceTokenScreener, event.Source)
	assert.Equal(t, 50000.0, event.Token.LiquidityScore)
	assert.Equal(t, 30000.0, event.Features.Metadata["buy_volume"])
	assert.Nil(t, event.Wallet)
}

func TestNormalizerNetflows(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{
				"token_symbol":     "PEPE",
				"chain":            "ethereum",
				"net_flow_24h_usd": 10000.0,
				"net_flow_7d_usd":  70000.0,
				"trader_count":     5.0,
			},
			map[string]any{
				"chain":           "ethereum",
				"address":         "0xcohort",
				"cohort":          "Fund",
				"net_flow_7d_usd": -5000.0,
			},
		},
	}

	events, err := Normalizer{}.Netflows(payload)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 10000.0, events[0].Features.SmartMoneyNetflow)
	assert.Nil(t, events[0].Wallet)
	assert.Equal(t, 70000.0, events[0].Features.Metadata["net_flow_7d_usd"])

	// A row without a symbol still normalizes, under the UNKNOWN bucket.
	assert.Equal(t, "UNKNOWN", events[1].Token.Symbol)
	require.NotNil(t, events[1].Wallet)
	assert.Equal(t, "0xcohort", events[1].Wallet.Address)
	assert.Equal(t, []string{"Fund"}, events[1].Wallet.Labels)
	assert.Equal(t, -5000.0, events[1].Features.SmartMoneyNetflow)
}

func TestFloatFieldAcceptsNumericStrings(t *testing.T) {
	v, ok := floatField(map[string]any{"usdNotional": "123.5"}, "usdNotional")
	require.True(t, ok)
	assert.Equal(t, 123.5, v)

	_, ok = floatField(map[string]any{"usdNotional": "abc"}, "usdNotional")
	assert.False(t, ok)
}
