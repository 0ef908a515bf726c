package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/domain"
)

func dexEvent(symbol, chain string, usd float64) domain.Event {
	return domain.Event{
		Source: domain.SourceDexTrades,
		Token:  domain.Token{Symbol: symbol, Chain: chain, LiquidityScore: 1.0},
		Wallet: &domain.Wallet{Address: "0xwallet"},
		Features: domain.EventFeature{
			USDNotional: usd,
			Metadata:    map[string]any{},
		},
	}
}

func screenerEvent(symbol, chain string, liquidity float64) domain.Event {
	return domain.Event{
		Source: domain.SourceTokenScreener,
		Token:  domain.Token{Symbol: symbol, Chain: chain, Address: "0xtoken", LiquidityScore: liquidity},
		Features: domain.EventFeature{
			Metadata: map[string]any{"buy_volume": 1000.0},
		},
	}
}

func netflowEvent(symbol, chain string, netflow float64) domain.Event {
	return domain.Event{
		Source: domain.SourceNetflows,
		Token:  domain.Token{Symbol: symbol, Chain: chain},
		Features: domain.EventFeature{
			SmartMoneyNetflow: netflow,
			Metadata:          map[string]any{"net_flow_7d_usd": netflow},
		},
	}
}

func TestMergeRequiresAllThreeSources(t *testing.T) {
	correlator := Correlator{}

	// PEPE has all three sources, DOGE is missing the netflow witness.
	merged := correlator.Merge([]domain.Event{
		dexEvent("PEPE", "ethereum", 150000),
		dexEvent("DOGE", "ethereum", 200000),
		screenerEvent("PEPE", "ethereum", 80000),
		screenerEvent("DOGE", "ethereum", 90000),
		netflowEvent("PEPE", "ethereum", 50000),
	})

	require.Len(t, merged, 1)
	assert.Equal(t, "PEPE", merged[0].Token.Symbol)
}

func TestMergeNetflowMagnitudeGate(t *testing.T) {
	correlator := Correlator{NetflowMinPositive: 10000}

	merged := correlator.Merge([]domain.Event{
		dexEvent("PEPE", "ethereum", 150000),
		screenerEvent("PEPE", "ethereum", 80000),
		netflowEvent("PEPE", "ethereum", 5000),
	})
	assert.Empty(t, merged, "netflow below the magnitude gate must drop the group")

	// A strongly negative netflow clears the gate; direction is the scorer's
	// concern, not the merger's.
	merged = correlator.Merge([]domain.Event{
		dexEvent("PEPE", "ethereum", 150000),
		screenerEvent("PEPE", "ethereum", 80000),
		netflowEvent("PEPE", "ethereum", -50000),
	})
	require.Len(t, merged, 1)
	assert.Equal(t, -50000.0, merged[0].Features.SmartMoneyNetflow)
}

func TestMergeOverlaysWitnessFacts(t *testing.T) {
	correlator := Correlator{}

	dex := dexEvent("PEPE", "ethereum", 150000)
	dex.Token.Address = ""

	merged := correlator.Merge([]domain.Event{
		dex,
		screenerEvent("PEPE", "ethereum", 40000),
		screenerEvent("PEPE", "ethereum", 80000),
		netflowEvent("PEPE", "ethereum", 20000),
		netflowEvent("PEPE", "ethereum", -60000),
	})

	require.Len(t, merged, 1)
	event := merged[0]

	// Highest liquidity screener row and largest-magnitude netflow row win.
	assert.Equal(t, 80000.0, event.Token.LiquidityScore)
	assert.Equal(t, -60000.0, event.Features.SmartMoneyNetflow)
	assert.Equal(t, -60000.0, event.Features.Metadata["netflow_value"])
	assert.Equal(t, 1000.0, event.Features.Metadata["screener_buy_volume"])
	assert.Equal(t, -60000.0, event.Features.Metadata["netflow_7d_usd"])
	// Empty dex token address is backfilled from the screener witness.
	assert.Equal(t, "0xtoken", event.Token.Address)
}

func TestMergeClonesDoNotAliasInput(t *testing.T) {
	correlator := Correlator{}

	dex := dexEvent("PEPE", "ethereum", 150000)
	merged := correlator.Merge([]domain.Event{
		dex,
		screenerEvent("PEPE", "ethereum", 80000),
		netflowEvent("PEPE", "ethereum", 50000),
	})

	require.Len(t, merged, 1)
	merged[0].Features.Metadata["mutated"] = true
	merged[0].Wallet.Labels = append(merged[0].Wallet.Labels, "x")

	assert.NotContains(t, dex.Features.Metadata, "mutated")
	assert.Empty(t, dex.Wallet.Labels)
}

func TestMergeEmitsOneEventPerDexTrade(t *testing.T) {
	correlator := Correlator{}

	merged := correlator.Merge([]domain.Event{
		dexEvent("PEPE", "ethereum", 150000),
		dexEvent("PEPE", "ethereum", 250000),
		screenerEvent("PEPE", "ethereum", 80000),
		netflowEvent("PEPE", "ethereum", 50000),
	})

	require.Len(t, merged, 2)
	assert.Equal(t, 150000.0, merged[0].Features.USDNotional)
	assert.Equal(t, 250000.0, merged[1].Features.USDNotional)
}
