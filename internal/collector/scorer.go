package collector

import (
	"fmt"
	"math"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
)

// ScorerConfig holds the weights and thresholds of the linear scoring model.
type ScorerConfig struct {
	MinUSDNotional    float64
	VolumeZThreshold  float64
	LiquidityMinScore float64

	WeightUSD        float64
	WeightLabel      float64
	WeightAlpha      float64
	WeightVolZ       float64
	WeightBias       float64
	PenaltyExplosive float64
	PenaltyLowLiq    float64
}

// Scorer converts a merged event into a weighted signal. The model is an
// explainable linear combination: every contribution appends a reason, so a
// signal can always be audited back to the facts that produced it.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates one event. It fails with ErrScoring if the event has no
// wallet, since a signal requires an actor; in practice a missing wallet
// means an upstream contract violation.
func (s *Scorer) Score(event domain.Event) (domain.Signal, error) {
	if event.Wallet == nil {
		return domain.Signal{}, fmt.Errorf("collector: event for %s has no wallet: %w", event.Token.Symbol, domain.ErrScoring)
	}

	var (
		score   float64
		reasons []domain.SignalReason
		isBuy   bool
	)

	usd := event.Features.USDNotional
	score += s.cfg.WeightUSD * math.Min(usd/math.Max(s.cfg.MinUSDNotional, 1), 2.0)
	if usd != 0 {
		isBuy = true
		reasons = append(reasons, domain.SignalReason{
			Code:    "smart_buy",
			Message: fmt.Sprintf("smart money bought $%.0f notional", usd),
		})
	}

	if len(event.Wallet.Labels) > 0 {
		score += s.cfg.WeightLabel
		reasons = append(reasons, domain.SignalReason{
			Code:    "label",
			Message: fmt.Sprintf("wallet carries label %q", event.Wallet.Labels[0]),
		})
	}

	if alpha := event.Wallet.AlphaScore; alpha > 0 {
		score += s.cfg.WeightAlpha * alpha
		reasons = append(reasons, domain.SignalReason{
			Code:    "alpha",
			Message: fmt.Sprintf("wallet alpha score %.4f", alpha),
		})
	}

	vol := event.Features.VolumeJump
	score += s.cfg.WeightVolZ * math.Min(vol/math.Max(s.cfg.VolumeZThreshold, 1), 2.0)
	if vol != 0 {
		reasons = append(reasons, domain.SignalReason{
			Code:    "vol_jump",
			Message: fmt.Sprintf("volume jump %.2f over baseline", vol),
		})
	}

	netflow := event.Features.SmartMoneyNetflow
	switch {
	case netflow > 0:
		score += s.cfg.WeightBias
		isBuy = true
		reasons = append(reasons, domain.SignalReason{
			Code:    "netflow_buy",
			Message: fmt.Sprintf("smart money netflow +$%.0f", netflow),
		})
	case netflow < 0:
		score += s.cfg.WeightBias
		reasons = append(reasons, domain.SignalReason{
			Code:    "netflow_sell",
			Message: fmt.Sprintf("smart money netflow -$%.0f", -netflow),
		})
	}

	if vol > 3*s.cfg.VolumeZThreshold {
		score -= s.cfg.PenaltyExplosive
		reasons = append(reasons, domain.SignalReason{
			Code:    "penalty_explosive",
			Message: "volume jump beyond 3x threshold, distrusting extreme volatility",
		})
	}

	if event.Token.LiquidityScore < s.cfg.LiquidityMinScore {
		score -= s.cfg.PenaltyLowLiq
		reasons = append(reasons, domain.SignalReason{
			Code:    "penalty_liq",
			Message: fmt.Sprintf("liquidity score %.2f below minimum", event.Token.LiquidityScore),
		})
	}

	// Buy evidence dominates: a negative netflow only classifies as sell
	// when nothing marked the event a buy.
	signalType := domain.SignalBuy
	if netflow < 0 && !isBuy {
		signalType = domain.SignalSell
	}

	return domain.Signal{
		Token:       event.Token.Clone(),
		Wallets:     []domain.Wallet{event.Wallet.Clone()},
		Score:       math.Max(score, 0),
		Type:        signalType,
		Reasons:     reasons,
		GeneratedAt: time.Now().UTC(),
		Metadata: map[string]any{
			"source_event": string(event.Source),
			"signal_type":  string(signalType),
		},
	}, nil
}
