package service

import (
	"sort"
	"strings"

	"github.com/wycheng/smartflow/internal/domain"
)

// maxSampleTxHashes caps the per-token transaction hash sample in a smart
// money summary.
const maxSampleTxHashes = 5

// overviewKey identifies one token across market and smart-money views.
// Addresses are lowercased so checksum-cased and lowercase sources collide.
type overviewKey struct {
	Chain   string
	Address string
	Symbol  string
}

// MarketData is the screener-side view of a token.
type MarketData struct {
	Volume       float64 `json:"volume"`
	BuyVolume    float64 `json:"buy_volume"`
	SellVolume   float64 `json:"sell_volume"`
	Netflow      float64 `json:"netflow"`
	PriceChange  float64 `json:"price_change"`
	PriceUSD     float64 `json:"price_usd"`
	Liquidity    float64 `json:"liquidity"`
	MarketCapUSD float64 `json:"market_cap_usd"`
}

// SmartMoneySummary aggregates a token's smart-money events.
type SmartMoneySummary struct {
	EventCount         int      `json:"event_count"`
	WalletCount        int      `json:"wallet_count"`
	TotalUSDNotional   float64  `json:"total_usd_notional"`
	AverageUSDNotional float64  `json:"average_usd_notional"`
	NetflowSum         float64  `json:"netflow_sum"`
	NetflowPositive    int      `json:"netflow_positive"`
	NetflowNegative    int      `json:"netflow_negative"`
	SampleTxHashes     []string `json:"sample_tx_hashes"`
}

// TokenOverview is one row of the combined market / smart-money view.
type TokenOverview struct {
	Chain        string             `json:"chain"`
	TokenAddress string             `json:"token_address"`
	TokenSymbol  string             `json:"token_symbol"`
	Market       *MarketData        `json:"market,omitempty"`
	SmartMoney   *SmartMoneySummary `json:"smart_money,omitempty"`
}

// OverviewService combines screener market snapshots with smart-money event
// aggregates into a per-token view ordered by market heat.
type OverviewService struct{}

// NewOverviewService creates the service.
func NewOverviewService() *OverviewService {
	return &OverviewService{}
}

// Build joins smart-money events (dex trades) against screener events and
// returns one row per token, sorted by volume then total notional, both
// descending. Tokens present on only one side still get a row.
func (s *OverviewService) Build(smartMoneyEvents, screenerEvents []domain.Event) []TokenOverview {
	marketMap := indexScreenerEvents(screenerEvents)
	smartMap := summarizeSmartMoney(smartMoneyEvents)

	seen := make(map[overviewKey]bool, len(marketMap)+len(smartMap))
	var keys []overviewKey
	for key := range marketMap {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for key := range smartMap {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	overview := make([]TokenOverview, 0, len(keys))
	for _, key := range keys {
		overview = append(overview, TokenOverview{
			Chain:        key.Chain,
			TokenAddress: key.Address,
			TokenSymbol:  key.Symbol,
			Market:       marketMap[key],
			SmartMoney:   smartMap[key],
		})
	}

	sort.SliceStable(overview, func(i, j int) bool {
		vi, vj := marketVolume(overview[i]), marketVolume(overview[j])
		if vi != vj {
			return vi > vj
		}
		return smartNotional(overview[i]) > smartNotional(overview[j])
	})
	return overview
}

func marketVolume(o TokenOverview) float64 {
	if o.Market == nil {
		return 0
	}
	return o.Market.Volume
}

func smartNotional(o TokenOverview) float64 {
	if o.SmartMoney == nil {
		return 0
	}
	return o.SmartMoney.TotalUSDNotional
}

func eventKey(e domain.Event) overviewKey {
	chain := e.Token.Chain
	if chain == "" {
		chain = e.Chain
	}
	return overviewKey{
		Chain:   chain,
		Address: strings.ToLower(e.Token.Address),
		Symbol:  e.Token.Symbol,
	}
}

func indexScreenerEvents(events []domain.Event) map[overviewKey]*MarketData {
	indexed := make(map[overviewKey]*MarketData, len(events))
	for _, e := range events {
		md := &MarketData{
			Liquidity: e.Token.LiquidityScore,
			Volume:    e.Features.VolumeJump,
		}
		meta := e.Features.Metadata
		md.BuyVolume = metaFloat(meta, "buy_volume")
		md.SellVolume = metaFloat(meta, "sell_volume")
		md.Netflow = metaFloat(meta, "netflow")
		md.PriceChange = metaFloat(meta, "price_change")
		md.PriceUSD = metaFloat(meta, "price_usd")
		md.MarketCapUSD = metaFloat(meta, "market_cap_usd")
		if v := metaFloat(meta, "volume"); v != 0 {
			md.Volume = v
		}
		indexed[eventKey(e)] = md
	}
	return indexed
}

func summarizeSmartMoney(events []domain.Event) map[overviewKey]*SmartMoneySummary {
	type bucket struct {
		summary  *SmartMoneySummary
		wallets  map[string]bool
		netflows []float64
	}

	grouped := make(map[overviewKey]*bucket)
	for _, e := range events {
		key := eventKey(e)
		b, ok := grouped[key]
		if !ok {
			b = &bucket{summary: &SmartMoneySummary{}, wallets: make(map[string]bool)}
			grouped[key] = b
		}
		b.summary.EventCount++
		if e.Wallet != nil && e.Wallet.Address != "" {
			b.wallets[strings.ToLower(e.Wallet.Address)] = true
		}
		b.summary.TotalUSDNotional += e.Features.USDNotional
		if e.Features.SmartMoneyNetflow != 0 {
			b.netflows = append(b.netflows, e.Features.SmartMoneyNetflow)
		}
		if e.TxHash != "" && len(b.summary.SampleTxHashes) < maxSampleTxHashes {
			b.summary.SampleTxHashes = append(b.summary.SampleTxHashes, e.TxHash)
		}
	}

	summaries := make(map[overviewKey]*SmartMoneySummary, len(grouped))
	for key, b := range grouped {
		sum := b.summary
		sum.WalletCount = len(b.wallets)
		for _, v := range b.netflows {
			sum.NetflowSum += v
			if v > 0 {
				sum.NetflowPositive++
			} else if v < 0 {
				sum.NetflowNegative++
			}
		}
		if sum.EventCount > 0 {
			sum.AverageUSDNotional = sum.TotalUSDNotional / float64(sum.EventCount)
		}
		summaries[key] = sum
	}
	return summaries
}

func metaFloat(meta map[string]any, key string) float64 {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
