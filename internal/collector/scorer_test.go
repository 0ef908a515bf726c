package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/domain"
)

func testScorer() *Scorer {
	return NewScorer(ScorerConfig{
		MinUSDNotional:    100000,
		VolumeZThreshold:  1.645,
		LiquidityMinScore: 0.5,
		WeightUSD:         0.25,
		WeightLabel:       0.25,
		WeightAlpha:       0.25,
		WeightVolZ:        0.15,
		WeightBias:        0.10,
		PenaltyExplosive:  0.15,
		PenaltyLowLiq:     0.10,
	})
}

func TestScorerBuySignalWithFullEvidence(t *testing.T) {
	event := dexEvent("PEPE", "ethereum", 150000)
	event.Wallet.Labels = []string{"Fund"}
	event.Wallet.AlphaScore = 0.8
	event.Features.SmartMoneyNetflow = 50000

	signal, err := testScorer().Score(event)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalBuy, signal.Type)
	// 0.25*1.5 + 0.25 + 0.25*0.8 + 0.10 bias
	assert.InDelta(t, 0.925, signal.Score, 1e-9)
	assert.Equal(t, []string{"smart_buy", "label", "alpha", "netflow_buy"}, signal.ReasonCodes())
	require.Len(t, signal.Wallets, 1)
	assert.Equal(t, "0xwallet", signal.Wallets[0].Address)
}

func TestScorerSellOnNegativeNetflowWithoutBuyEvidence(t *testing.T) {
	event := dexEvent("PEPE", "ethereum", 0)
	event.Features.SmartMoneyNetflow = -50000

	signal, err := testScorer().Score(event)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalSell, signal.Type)
	assert.True(t, signal.HasReason("netflow_sell"))
	assert.False(t, signal.HasReason("smart_buy"))
	assert.InDelta(t, 0.10, signal.Score, 1e-9)
}

func TestScorerBuyEvidenceDominatesNegativeNetflow(t *testing.T) {
	event := dexEvent("PEPE", "ethereum", 150000)
	event.Features.SmartMoneyNetflow = -50000

	signal, err := testScorer().Score(event)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalBuy, signal.Type)
	assert.True(t, signal.HasReason("netflow_sell"))
}

func TestScorerScoreNeverNegative(t *testing.T) {
	event := dexEvent("PEPE", "ethereum", 0)
	event.Token.LiquidityScore = 0.1

	signal, err := testScorer().Score(event)
	require.NoError(t, err)

	assert.Equal(t, 0.0, signal.Score)
	assert.True(t, signal.HasReason("penalty_liq"))
}

func TestScorerExplosiveVolumePenalty(t *testing.T) {
	event := dexEvent("PEPE", "ethereum", 150000)
	event.Features.VolumeJump = 6

	signal, err := testScorer().Score(event)
	require.NoError(t, err)

	assert.True(t, signal.HasReason("vol_jump"))
	assert.True(t, signal.HasReason("penalty_explosive"))
	// 0.25*1.5 + 0.15*2 (capped) - 0.15
	assert.InDelta(t, 0.525, signal.Score, 1e-9)
}

func TestScorerRejectsEventWithoutWallet(t *testing.T) {
	event := dexEvent("PEPE", "ethereum", 150000)
	event.Wallet = nil

	_, err := testScorer().Score(event)
	require.ErrorIs(t, err, domain.ErrScoring)
}
