package collector

import (
	"math"

	"github.com/wycheng/smartflow/internal/domain"
)

// Correlator merges normalized events across the three sources. A token only
// survives when all three sources saw it; partial groups are dropped whole
// so the scorer never runs on missing context.
type Correlator struct {
	// NetflowMinPositive is the minimum netflow magnitude (absolute value)
	// a group's netflow witness must carry; weaker groups are discarded.
	NetflowMinPositive float64
}

type mergeKey struct {
	symbol string
	chain  string
}

type sourceBuckets struct {
	dex      []domain.Event
	screener []domain.Event
	netflow  []domain.Event
}

// Merge groups events by (token symbol, chain), applies the all-or-nothing
// source gate and the netflow magnitude gate, then emits one clone per
// surviving dex event with the screener and netflow witness facts overlaid.
// Group order follows first appearance in the input, so output is
// deterministic for a given upstream page order.
func (c Correlator) Merge(events []domain.Event) []domain.Event {
	grouped := make(map[mergeKey]*sourceBuckets)
	var order []mergeKey

	for _, event := range events {
		symbol, chain := event.MergeKey()
		key := mergeKey{symbol: symbol, chain: chain}
		buckets, ok := grouped[key]
		if !ok {
			buckets = &sourceBuckets{}
			grouped[key] = buckets
			order = append(order, key)
		}
		switch event.Source {
		case domain.SourceDexTrades:
			buckets.dex = append(buckets.dex, event)
		case domain.SourceTokenScreener:
			buckets.screener = append(buckets.screener, event)
		case domain.SourceNetflows:
			buckets.netflow = append(buckets.netflow, event)
		}
	}

	var merged []domain.Event
	for _, key := range order {
		buckets := grouped[key]
		if len(buckets.dex) == 0 || len(buckets.screener) == 0 || len(buckets.netflow) == 0 {
			continue
		}

		bestScreener := liquidityWitness(buckets.screener)
		bestNetflow := netflowWitness(buckets.netflow)

		netflowValue := bestNetflow.Features.SmartMoneyNetflow
		if math.Abs(netflowValue) < c.NetflowMinPositive {
			continue
		}

		for _, dexEvent := range buckets.dex {
			cloned := dexEvent.Clone()

			cloned.Token.LiquidityScore = bestScreener.Token.LiquidityScore
			if cloned.Token.Address == "" {
				cloned.Token.Address = bestScreener.Token.Address
			}
			if cloned.Token.Chain == "" {
				cloned.Token.Chain = bestScreener.Token.Chain
			}

			if cloned.Features.Metadata == nil {
				cloned.Features.Metadata = map[string]any{}
			}
			copyMeta(cloned.Features.Metadata, bestScreener.Features.Metadata, map[string]string{
				"buy_volume":  "screener_buy_volume",
				"sell_volume": "screener_sell_volume",
				"netflow":     "screener_netflow",
			})
			copyMeta(cloned.Features.Metadata, bestNetflow.Features.Metadata, map[string]string{
				"net_flow_24h_usd": "netflow_24h_usd",
				"net_flow_7d_usd":  "netflow_7d_usd",
				"net_flow_30d_usd": "netflow_30d_usd",
				"trader_count":     "trader_count",
			})
			cloned.Features.Metadata["netflow_value"] = netflowValue
			cloned.Features.SmartMoneyNetflow = netflowValue

			merged = append(merged, cloned)
		}
	}

	return merged
}

// liquidityWitness picks the screener event with the highest liquidity score.
// Ties keep the first encountered, which is stable for a given input order.
func liquidityWitness(events []domain.Event) domain.Event {
	best := events[0]
	for _, e := range events[1:] {
		if e.Token.LiquidityScore > best.Token.LiquidityScore {
			best = e
		}
	}
	return best
}

// netflowWitness picks the netflow event with the largest absolute netflow.
func netflowWitness(events []domain.Event) domain.Event {
	best := events[0]
	for _, e := range events[1:] {
		if math.Abs(e.Features.SmartMoneyNetflow) > math.Abs(best.Features.SmartMoneyNetflow) {
			best = e
		}
	}
	return best
}

// copyMeta copies values from src into dst under renamed keys, skipping
// absent source keys.
func copyMeta(dst, src map[string]any, renames map[string]string) {
	for from, to := range renames {
		if v, ok := src[from]; ok {
			dst[to] = v
		}
	}
}
