package collector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
)

// FilterConfig holds the threshold-filter parameters.
type FilterConfig struct {
	// MinUSDNotional is the static notional gate used when Dynamic is off.
	MinUSDNotional float64
	// Dynamic switches the notional gate to a rolling percentile of the
	// persisted notional history per (symbol, chain).
	Dynamic           bool
	Quantile          float64
	LookbackMinutes   int
	MinSamples        int
	FallbackThreshold float64
	LiquidityMinScore float64
}

// FilterStats counts how events fared against each gate within one pass.
type FilterStats struct {
	Evaluated     int
	Passed        int
	FailNotional  int
	FailLiquidity int
	FailBlacklist int
}

// Map renders the stats for run-history persistence.
func (s FilterStats) Map() map[string]int {
	return map[string]int{
		"evaluated":         s.Evaluated,
		"passed":            s.Passed,
		"fail_usd_notional": s.FailNotional,
		"fail_liquidity":    s.FailLiquidity,
		"fail_blacklist":    s.FailBlacklist,
	}
}

// ThresholdFilter gates merged events on notional, liquidity, and blacklist.
// The notional threshold is either a static floor or a per-token rolling
// percentile resolved from the persisted event history.
type ThresholdFilter struct {
	cfg    FilterConfig
	events domain.EventStore
}

// NewThresholdFilter creates a filter. The event store is only consulted in
// dynamic mode and may be nil otherwise.
func NewThresholdFilter(cfg FilterConfig, events domain.EventStore) *ThresholdFilter {
	return &ThresholdFilter{cfg: cfg, events: events}
}

// Apply runs the three gates over events in order and returns the survivors
// together with per-gate stats. Thresholds are cached per (symbol, chain)
// for the duration of one pass so the history query runs at most once per
// token.
func (f *ThresholdFilter) Apply(ctx context.Context, events []domain.Event) ([]domain.Event, FilterStats, error) {
	var stats FilterStats
	thresholds := make(map[mergeKey]float64)

	passed := make([]domain.Event, 0, len(events))
	for _, event := range events {
		stats.Evaluated++

		threshold, err := f.resolveThreshold(ctx, event, thresholds)
		if err != nil {
			return nil, stats, err
		}

		if event.Features.USDNotional < threshold {
			stats.FailNotional++
			continue
		}
		if event.Token.LiquidityScore < f.cfg.LiquidityMinScore {
			stats.FailLiquidity++
			continue
		}
		if len(event.Token.BlacklistFlags) > 0 {
			stats.FailBlacklist++
			continue
		}

		stats.Passed++
		passed = append(passed, event)
	}

	return passed, stats, nil
}

// resolveThreshold returns the notional gate for the event's token, caching
// per (symbol, chain) within the pass.
func (f *ThresholdFilter) resolveThreshold(ctx context.Context, event domain.Event, cache map[mergeKey]float64) (float64, error) {
	if !f.cfg.Dynamic {
		return f.cfg.MinUSDNotional, nil
	}

	symbol, chain := event.MergeKey()
	key := mergeKey{symbol: symbol, chain: chain}
	if threshold, ok := cache[key]; ok {
		return threshold, nil
	}

	since := time.Now().UTC().Add(-time.Duration(f.cfg.LookbackMinutes) * time.Minute)
	history, err := f.events.NotionalHistory(ctx, symbol, chain, since)
	if err != nil {
		return 0, fmt.Errorf("collector: notional history for %s/%s: %w", symbol, chain, err)
	}

	threshold := f.cfg.FallbackThreshold
	if len(history) >= f.cfg.MinSamples {
		// The fallback acts as a floor so a quiet window can never open the
		// gate wider than the configured minimum.
		threshold = math.Max(percentile(history, f.cfg.Quantile), f.cfg.FallbackThreshold)
	}

	cache[key] = threshold
	return threshold, nil
}

// percentile computes the q-th percentile of values using linear
// interpolation between order statistics (rank = q*(n-1)). Linear beats
// nearest-rank here: the threshold moves smoothly run to run instead of
// flapping on small samples.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	rank := q * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
