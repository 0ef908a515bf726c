package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreRange(t *testing.T) {
	r := ScoreRange{Min: 100, Max: 200}

	v, ok := r.score(50, true)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = r.score(150, true)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	v, ok = r.score(500, true)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = r.score(150, false)
	assert.False(t, ok)

	_, ok = ScoreRange{Min: 5, Max: 5}.score(5, true)
	assert.False(t, ok)
}

func TestCandidatesBuildRanksAndSplits(t *testing.T) {
	svc := NewCandidateService(DefaultCandidateConfig())

	overview := []TokenOverview{
		{
			TokenSymbol: "MID", Chain: "ethereum", TokenAddress: "0x2",
			// Volume 1.05M -> 0.5, netflow 250k -> 0.5, price change 0.5 ->
			// 0.5; no liquidity, no smart money.
			Market: &MarketData{Volume: 1_050_000, Netflow: 250_000, PriceChange: 0.5},
		},
		{
			TokenSymbol: "TOP", Chain: "ethereum", TokenAddress: "0x1",
			Market: &MarketData{Volume: 3_000_000, Netflow: 600_000, PriceChange: 1.2, Liquidity: 6_000_000},
			SmartMoney: &SmartMoneySummary{
				EventCount:       6,
				TotalUSDNotional: 600_000,
				NetflowSum:       150_000,
			},
		},
		{
			TokenSymbol: "FLOOR", Chain: "ethereum", TokenAddress: "0x3",
			// Every fact at or below its range minimum scores zero, so the
			// composite is zero and the row is dropped.
			Market: &MarketData{Volume: 100_000, Netflow: -10, Liquidity: 200_000},
		},
	}

	set := svc.Build(overview)

	require.Len(t, set.All, 2)
	assert.Equal(t, "TOP", set.All[0].TokenSymbol)
	assert.Equal(t, "MID", set.All[1].TokenSymbol)

	top := set.All[0]
	assert.Equal(t, 1.0, top.CompositeScore)
	assert.Equal(t, 1.0, top.MarketScore)
	assert.Equal(t, 1.0, top.LiquidityScore)
	assert.Equal(t, 1.0, top.SmartMoneyScore)
	assert.True(t, top.HasSmartMoney)

	mid := set.All[1]
	assert.Equal(t, 0.5, mid.MarketScore)
	// Only the market component is present, so the composite is the market
	// score after weight normalization.
	assert.Equal(t, 0.5, mid.CompositeScore)
	assert.False(t, mid.HasSmartMoney)

	require.Len(t, set.WithSmartMoney, 1)
	assert.Equal(t, "TOP", set.WithSmartMoney[0].TokenSymbol)
	require.Len(t, set.WithoutSmartMoney, 1)
	assert.Equal(t, "MID", set.WithoutSmartMoney[0].TokenSymbol)
}

func TestCandidatesBuildHonorsTopN(t *testing.T) {
	cfg := DefaultCandidateConfig()
	cfg.TopN = 1
	svc := NewCandidateService(cfg)

	overview := []TokenOverview{
		{TokenSymbol: "A", Market: &MarketData{Volume: 2_000_000}},
		{TokenSymbol: "B", Market: &MarketData{Volume: 1_500_000}},
		{TokenSymbol: "C", Market: &MarketData{Volume: 1_000_000}},
	}

	set := svc.Build(overview)
	assert.Len(t, set.All, 3)
	assert.Len(t, set.WithoutSmartMoney, 1)
	assert.Equal(t, "A", set.WithoutSmartMoney[0].TokenSymbol)
}

func TestCandidatesScoresAreRoundedToFourDecimals(t *testing.T) {
	svc := NewCandidateService(DefaultCandidateConfig())

	// Volume 100,001 over the 100k-2M range is 1/1,900,000, which needs
	// rounding at the fourth decimal.
	set := svc.Build([]TokenOverview{
		{TokenSymbol: "TINY", Market: &MarketData{Volume: 123_456}},
	})
	require.Len(t, set.All, 1)
	c := set.All[0]
	assert.Equal(t, 0.0123, c.MarketScore)
	assert.Equal(t, 0.0123, c.CompositeScore)
}
