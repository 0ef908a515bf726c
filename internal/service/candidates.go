package service

import (
	"math"
	"sort"
)

// ScoreRange is a [Min, Max] window for min-max normalization. Values at or
// below Min score 0, at or above Max score 1, linear in between.
type ScoreRange struct {
	Min float64
	Max float64
}

func (r ScoreRange) score(value float64, present bool) (float64, bool) {
	if !present || r.Max <= r.Min {
		return 0, false
	}
	if value <= r.Min {
		return 0, true
	}
	if value >= r.Max {
		return 1, true
	}
	return (value - r.Min) / (r.Max - r.Min), true
}

// CandidateConfig holds the normalization windows and list size for candidate
// ranking. Zero values fall back to DefaultCandidateConfig.
type CandidateConfig struct {
	TopN               int
	VolumeRange        ScoreRange
	LiquidityRange     ScoreRange
	NetflowRange       ScoreRange
	PriceChangeRange   ScoreRange
	SmartNotionalRange ScoreRange
	SmartNetflowRange  ScoreRange
	SmartEventRange    ScoreRange
}

// DefaultCandidateConfig returns the production normalization windows.
func DefaultCandidateConfig() CandidateConfig {
	return CandidateConfig{
		TopN:               10,
		VolumeRange:        ScoreRange{Min: 100_000, Max: 2_000_000},
		LiquidityRange:     ScoreRange{Min: 200_000, Max: 5_000_000},
		NetflowRange:       ScoreRange{Min: 0, Max: 500_000},
		PriceChangeRange:   ScoreRange{Min: 0, Max: 1},
		SmartNotionalRange: ScoreRange{Min: 50_000, Max: 500_000},
		SmartNetflowRange:  ScoreRange{Min: 0, Max: 100_000},
		SmartEventRange:    ScoreRange{Min: 1, Max: 5},
	}
}

// Composite score weights: market heat dominates, smart-money participation
// second, pool depth third.
const (
	marketWeight    = 0.5
	liquidityWeight = 0.2
	smartWeight     = 0.3
)

// TradeCandidate is one ranked token with its component scores.
type TradeCandidate struct {
	TokenSymbol     string             `json:"token_symbol"`
	TokenAddress    string             `json:"token_address"`
	Chain           string             `json:"chain"`
	CompositeScore  float64            `json:"composite_score"`
	MarketScore     float64            `json:"market_score"`
	LiquidityScore  float64            `json:"liquidity_score"`
	SmartMoneyScore float64            `json:"smart_money_score"`
	HasSmartMoney   bool               `json:"has_smart_money"`
	Market          *MarketData        `json:"market,omitempty"`
	SmartMoney      *SmartMoneySummary `json:"smart_money,omitempty"`
}

// CandidateSet is the ranked output split by smart-money participation.
type CandidateSet struct {
	All               []TradeCandidate `json:"all"`
	WithSmartMoney    []TradeCandidate `json:"with_smart_money"`
	WithoutSmartMoney []TradeCandidate `json:"without_smart_money"`
}

// CandidateService ranks overview rows into trade candidates. Each component
// score is the mean of the min-max scores of the facts that are present, so a
// token is never punished for facts the upstream did not report.
type CandidateService struct {
	cfg CandidateConfig
}

// NewCandidateService creates the service. A zero TopN falls back to the
// default list size.
func NewCandidateService(cfg CandidateConfig) *CandidateService {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultCandidateConfig().TopN
	}
	return &CandidateService{cfg: cfg}
}

// Build scores every overview row and returns the ranked candidate set.
// Rows with a non-positive composite score are dropped.
func (s *CandidateService) Build(overview []TokenOverview) CandidateSet {
	var candidates []TradeCandidate
	for _, entry := range overview {
		if candidate, ok := s.scoreEntry(entry); ok {
			candidates = append(candidates, candidate)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CompositeScore != candidates[j].CompositeScore {
			return candidates[i].CompositeScore > candidates[j].CompositeScore
		}
		return candidates[i].MarketScore > candidates[j].MarketScore
	})

	set := CandidateSet{All: candidates}
	for _, c := range candidates {
		if c.HasSmartMoney {
			if len(set.WithSmartMoney) < s.cfg.TopN {
				set.WithSmartMoney = append(set.WithSmartMoney, c)
			}
		} else if len(set.WithoutSmartMoney) < s.cfg.TopN {
			set.WithoutSmartMoney = append(set.WithoutSmartMoney, c)
		}
	}
	return set
}

func (s *CandidateService) scoreEntry(entry TokenOverview) (TradeCandidate, bool) {
	marketScore, marketOK := s.scoreMarket(entry.Market)
	liquidityScore, liquidityOK := s.scoreLiquidity(entry.Market)
	smartScore, smartOK := s.scoreSmartMoney(entry.SmartMoney)

	var accum, totalWeight float64
	if marketOK {
		accum += marketScore * marketWeight
		totalWeight += marketWeight
	}
	if liquidityOK {
		accum += liquidityScore * liquidityWeight
		totalWeight += liquidityWeight
	}
	if smartOK {
		accum += smartScore * smartWeight
		totalWeight += smartWeight
	}
	if totalWeight <= 0 {
		return TradeCandidate{}, false
	}
	composite := accum / totalWeight
	if composite <= 0 {
		return TradeCandidate{}, false
	}

	return TradeCandidate{
		TokenSymbol:     entry.TokenSymbol,
		TokenAddress:    entry.TokenAddress,
		Chain:           entry.Chain,
		CompositeScore:  round4(composite),
		MarketScore:     round4(marketScore),
		LiquidityScore:  round4(liquidityScore),
		SmartMoneyScore: round4(smartScore),
		HasSmartMoney:   entry.SmartMoney != nil && entry.SmartMoney.EventCount > 0,
		Market:          entry.Market,
		SmartMoney:      entry.SmartMoney,
	}, true
}

func (s *CandidateService) scoreMarket(market *MarketData) (float64, bool) {
	if market == nil {
		return 0, false
	}
	var scores []float64
	if v, ok := s.cfg.VolumeRange.score(market.Volume, market.Volume != 0); ok {
		scores = append(scores, v)
	}
	if v, ok := s.cfg.NetflowRange.score(market.Netflow, market.Netflow != 0); ok {
		scores = append(scores, v)
	}
	if v, ok := s.cfg.PriceChangeRange.score(market.PriceChange, market.PriceChange != 0); ok {
		scores = append(scores, v)
	}
	return mean(scores)
}

func (s *CandidateService) scoreLiquidity(market *MarketData) (float64, bool) {
	if market == nil || market.Liquidity == 0 {
		return 0, false
	}
	return s.cfg.LiquidityRange.score(market.Liquidity, true)
}

func (s *CandidateService) scoreSmartMoney(smart *SmartMoneySummary) (float64, bool) {
	if smart == nil {
		return 0, false
	}
	var scores []float64
	if v, ok := s.cfg.SmartNotionalRange.score(smart.TotalUSDNotional, smart.TotalUSDNotional != 0); ok {
		scores = append(scores, v)
	}
	if v, ok := s.cfg.SmartNetflowRange.score(smart.NetflowSum, smart.NetflowSum != 0); ok {
		scores = append(scores, v)
	}
	if v, ok := s.cfg.SmartEventRange.score(float64(smart.EventCount), smart.EventCount > 0); ok {
		scores = append(scores, v)
	}
	return mean(scores)
}

func mean(scores []float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
