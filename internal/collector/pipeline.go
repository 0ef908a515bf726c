package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wycheng/smartflow/internal/domain"
)

// QueryConfig holds the upstream query filters used to build the three fetch
// payloads.
type QueryConfig struct {
	Chains           []string
	MinUSDNotional   float64
	DexIncludeLabels []string
	DexExcludeLabels []string
	TokenAgeMinDays  int
	TokenAgeMaxDays  int
	TradeValueMin    float64
	TradeValueMax    float64
	EnableLabels     bool
}

// netflowCohortLabels are the smart-money cohorts the netflow query targets.
var netflowCohortLabels = []string{"Fund", "Smart Trader", "30D Smart Trader"}

// Stores bundles the persistence interfaces one pipeline run writes through.
type Stores struct {
	Tokens  domain.TokenStore
	Wallets domain.WalletStore
	Events  domain.EventStore
	Signals domain.SignalStore
	Runs    domain.RunStore
}

// Result is the output of one pipeline run. DexEvents and ScreenerEvents are
// the normalized per-source views kept for the run report's token overview.
type Result struct {
	RunID          string
	Signals        []domain.Signal
	DexEvents      []domain.Event
	ScreenerEvents []domain.Event
	Stats          map[string]int
	StartedAt      time.Time
	FinishedAt     time.Time
	BuySignals     int
	SellSignals    int
}

// Pipeline orchestrates one collection cycle: fetch, normalize, enrich,
// merge, filter, score, persist. Execution is single-threaded; there is no
// internal parallelism between stages.
type Pipeline struct {
	query      QueryConfig
	client     AnalyticsClient
	normalizer Normalizer
	enricher   *Enricher
	correlator Correlator
	filter     *ThresholdFilter
	scorer     *Scorer
	stores     Stores
	logger     *slog.Logger
}

// NewPipeline wires a pipeline from its stages. The analytics client decides
// whether the run hits the real API or fixtures; the pipeline itself does
// not know which it got.
func NewPipeline(
	query QueryConfig,
	client AnalyticsClient,
	enricher *Enricher,
	correlator Correlator,
	filter *ThresholdFilter,
	scorer *Scorer,
	stores Stores,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		query:      query,
		client:     client,
		enricher:   enricher,
		correlator: correlator,
		filter:     filter,
		scorer:     scorer,
		stores:     stores,
		logger:     logger.With(slog.String("component", "pipeline")),
	}
}

// RunOnce executes a single collection cycle and records it in run history.
// A fetch or persistence failure aborts the run and surfaces to the caller.
func (p *Pipeline) RunOnce(ctx context.Context) (*Result, error) {
	startedAt := time.Now().UTC()
	stats := map[string]int{}

	sources, err := p.fetchAndNormalize(ctx, stats)
	if err != nil {
		return nil, err
	}
	events := sources.all()

	enriched := p.enricher.Enrich(ctx, events)
	stats["enriched_events"] = len(enriched)

	merged := p.correlator.Merge(enriched)
	stats["merged_events"] = len(merged)

	filtered, filterStats, err := p.filter.Apply(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("collector: filter: %w", err)
	}
	for k, v := range filterStats.Map() {
		stats["filter_"+k] = v
	}

	var (
		signals   []domain.Signal
		buyCount  int
		sellCount int
	)
	for _, event := range filtered {
		signal, err := p.scorer.Score(event)
		if err != nil {
			return nil, err
		}
		if err := p.persist(ctx, signal, event); err != nil {
			return nil, err
		}
		signals = append(signals, signal)
		if signal.Type == domain.SignalSell {
			sellCount++
		} else {
			buyCount++
		}
	}

	stats["signals"] = len(signals)
	stats["buy_signals"] = buyCount
	stats["sell_signals"] = sellCount

	finishedAt := time.Now().UTC()
	runID := uuid.New().String()
	run := domain.PipelineRun{
		ID:          runID,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		EventCount:  stats["total_events"],
		SignalCount: len(signals),
		Stats:       stats,
	}
	if err := p.stores.Runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("collector: record run: %w", err)
	}

	p.logger.InfoContext(ctx, "pipeline run completed",
		slog.String("run_id", runID),
		slog.Int("events", stats["total_events"]),
		slog.Int("signals", len(signals)),
		slog.Int("buy", buyCount),
		slog.Int("sell", sellCount),
		slog.Duration("took", finishedAt.Sub(startedAt)),
	)

	return &Result{
		RunID:          runID,
		Signals:        signals,
		DexEvents:      sources.dex,
		ScreenerEvents: sources.screener,
		Stats:          stats,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		BuySignals:     buyCount,
		SellSignals:    sellCount,
	}, nil
}

// sourceEvents keeps the normalized events split by upstream source.
type sourceEvents struct {
	dex      []domain.Event
	screener []domain.Event
	netflow  []domain.Event
}

func (s sourceEvents) all() []domain.Event {
	events := make([]domain.Event, 0, len(s.dex)+len(s.screener)+len(s.netflow))
	events = append(events, s.dex...)
	events = append(events, s.screener...)
	events = append(events, s.netflow...)
	return events
}

// fetchAndNormalize pulls all three sources, recording per-source counts.
func (p *Pipeline) fetchAndNormalize(ctx context.Context, stats map[string]int) (sourceEvents, error) {
	var sources sourceEvents

	dexEvents, err := p.fetchDexEvents(ctx)
	if err != nil {
		return sources, err
	}
	sources.dex = dexEvents
	stats["dex_events"] = len(dexEvents)

	screenerPayload, err := p.client.FetchTokenScreener(ctx, p.buildScreenerFilters())
	if err != nil {
		return sources, fmt.Errorf("collector: fetch token screener: %w", err)
	}
	screenerEvents, err := p.normalizer.TokenScreener(screenerPayload)
	if err != nil {
		return sources, err
	}
	sources.screener = screenerEvents
	stats["token_screener_events"] = len(screenerEvents)

	netflowPayload, err := p.client.FetchNetflows(ctx, p.buildNetflowFilters())
	if err != nil {
		return sources, fmt.Errorf("collector: fetch netflows: %w", err)
	}
	netflowEvents, err := p.normalizer.Netflows(netflowPayload)
	if err != nil {
		return sources, err
	}
	sources.netflow = netflowEvents
	stats["netflow_events"] = len(netflowEvents)

	stats["total_events"] = len(sources.dex) + len(sources.screener) + len(sources.netflow)
	return sources, nil
}

// fetchDexEvents pulls the dex-trades source. When the query targets exactly
// one chain, rows missing a chain field are stamped with it so the merge key
// stays intact.
func (p *Pipeline) fetchDexEvents(ctx context.Context) ([]domain.Event, error) {
	payload, err := p.client.FetchDexTrades(ctx, p.buildDexFilters())
	if err != nil {
		return nil, fmt.Errorf("collector: fetch dex trades: %w", err)
	}

	if len(p.query.Chains) == 1 {
		defaultChain := p.query.Chains[0]
		for _, row := range payloadRows(payload) {
			if _, ok := row["chain"]; !ok {
				row["chain"] = defaultChain
			}
		}
	}

	return p.normalizer.DexTrades(payload)
}

// persist writes the entities one scored event produced: the token, the
// wallet (when present), the merged event, and the signal.
func (p *Pipeline) persist(ctx context.Context, signal domain.Signal, event domain.Event) error {
	if _, err := p.stores.Tokens.Upsert(ctx, signal.Token); err != nil {
		return fmt.Errorf("collector: upsert token %s: %w", signal.Token.Symbol, err)
	}
	if event.Wallet != nil {
		if _, err := p.stores.Wallets.Upsert(ctx, *event.Wallet); err != nil {
			return fmt.Errorf("collector: upsert wallet %s: %w", event.Wallet.Address, err)
		}
	}
	if err := p.stores.Events.Insert(ctx, event); err != nil {
		return fmt.Errorf("collector: insert event: %w", err)
	}
	if err := p.stores.Signals.Create(ctx, signal); err != nil {
		return fmt.Errorf("collector: create signal: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Upstream query payload builders
// ---------------------------------------------------------------------------

func (p *Pipeline) buildDexFilters() map[string]any {
	filters := map[string]any{}
	if len(p.query.DexIncludeLabels) > 0 {
		filters["include_smart_money_labels"] = p.query.DexIncludeLabels
	}
	if len(p.query.DexExcludeLabels) > 0 {
		filters["exclude_smart_money_labels"] = p.query.DexExcludeLabels
	}
	filters["token_bought_age_days"] = map[string]any{
		"min": p.query.TokenAgeMinDays,
		"max": p.query.TokenAgeMaxDays,
	}
	// The query floor is the coarse upstream cut; the local notional filter
	// applies the real threshold after normalization.
	floor := p.query.TradeValueMin
	if floor <= 0 {
		floor = p.query.MinUSDNotional
	}
	tradeFilter := map[string]any{"min": floor}
	if p.query.TradeValueMax > 0 {
		tradeFilter["max"] = p.query.TradeValueMax
	}
	filters["trade_value_usd"] = tradeFilter

	return map[string]any{
		"chains":     p.query.Chains,
		"filters":    filters,
		"pagination": map[string]any{"page": 1, "per_page": 100},
		"order_by": []map[string]any{
			{"field": "chain", "direction": "ASC"},
		},
	}
}

func (p *Pipeline) buildScreenerFilters() map[string]any {
	return map[string]any{
		"chains":     p.query.Chains,
		"date":       timeWindow(24 * time.Hour),
		"pagination": map[string]any{"page": 1, "per_page": 25},
		"filters": map[string]any{
			"only_smart_money": true,
		},
		"order_by": []map[string]any{
			{"field": "volume", "direction": "DESC"},
		},
	}
}

func (p *Pipeline) buildNetflowFilters() map[string]any {
	return map[string]any{
		"chains": p.query.Chains,
		"filters": map[string]any{
			"include_smart_money_labels": netflowCohortLabels,
		},
		"pagination": map[string]any{"page": 1, "per_page": 20},
		"order_by": []map[string]any{
			{"field": "net_flow_7d_usd", "direction": "DESC"},
		},
	}
}

// timeWindow builds a from/to window ending now, rendered as ISO8601 with a
// trailing Z the way the upstream API expects.
func timeWindow(span time.Duration) map[string]any {
	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-span)
	return map[string]any{
		"from": start.Format("2006-01-02T15:04:05Z"),
		"to":   end.Format("2006-01-02T15:04:05Z"),
	}
}
