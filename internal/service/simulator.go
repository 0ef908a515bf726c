package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wycheng/smartflow/internal/domain"
)

// PriceClient fetches spot prices for token addresses on one network.
// Returned map keys are lowercased addresses.
type PriceClient interface {
	GetPrices(ctx context.Context, chain string, addresses []string) (map[string]float64, error)
}

// SimulationStats summarizes one simulator sweep.
type SimulationStats struct {
	Opened int
	Closed int
}

// Simulator opens paper positions for buy signals and closes them once the
// spot price reaches the gain target. Price lookups go through the cache
// first; fresh quotes are written back so repeated sweeps within the cache
// TTL skip the upstream entirely.
type Simulator struct {
	trades     domain.SimulatedTradeStore
	prices     PriceClient
	cache      domain.PriceCache
	gainTarget float64
	logger     *slog.Logger
}

// NewSimulator creates a Simulator. cache may be nil, in which case every
// sweep hits the price client.
func NewSimulator(
	trades domain.SimulatedTradeStore,
	prices PriceClient,
	cache domain.PriceCache,
	gainTarget float64,
	logger *slog.Logger,
) *Simulator {
	return &Simulator{
		trades:     trades,
		prices:     prices,
		cache:      cache,
		gainTarget: gainTarget,
		logger:     logger.With(slog.String("component", "simulator")),
	}
}

// ProcessSignals opens positions for new buy signals and then sweeps open
// positions against current prices. A token whose price cannot be fetched is
// skipped, never failed.
func (s *Simulator) ProcessSignals(ctx context.Context, signals []domain.Signal) (SimulationStats, error) {
	var stats SimulationStats

	opened, err := s.openTrades(ctx, signals)
	if err != nil {
		return stats, err
	}
	stats.Opened = opened

	closed, err := s.closeTrades(ctx)
	if err != nil {
		return stats, err
	}
	stats.Closed = closed

	return stats, nil
}

func (s *Simulator) openTrades(ctx context.Context, signals []domain.Signal) (int, error) {
	open, err := s.trades.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: list open trades: %w", err)
	}
	alreadyOpen := make(map[string]bool, len(open))
	for _, t := range open {
		alreadyOpen[positionKey(t.Chain, t.TokenAddress)] = true
	}

	// Group buy signals with an address by chain so each chain costs one
	// price lookup.
	byChain := make(map[string][]domain.Signal)
	var chains []string
	for _, sig := range signals {
		if sig.Type != domain.SignalBuy || sig.Token.Address == "" {
			continue
		}
		chain := sig.Token.Chain
		if _, ok := byChain[chain]; !ok {
			chains = append(chains, chain)
		}
		byChain[chain] = append(byChain[chain], sig)
	}

	opened := 0
	for _, chain := range chains {
		group := byChain[chain]
		addresses := make([]string, 0, len(group))
		for _, sig := range group {
			addresses = append(addresses, sig.Token.Address)
		}
		prices := s.fetchPrices(ctx, chain, addresses)

		for _, sig := range group {
			key := positionKey(chain, sig.Token.Address)
			if alreadyOpen[key] {
				continue
			}
			price, ok := prices[strings.ToLower(sig.Token.Address)]
			if !ok {
				continue
			}

			trade := domain.SimulatedTrade{
				ID:           uuid.New().String(),
				TokenSymbol:  sig.Token.Symbol,
				TokenAddress: sig.Token.Address,
				Chain:        chain,
				EntryPrice:   price,
				TargetPrice:  price * (1 + s.gainTarget),
				Status:       domain.SimTradeOpen,
				OpenedAt:     time.Now().UTC(),
			}
			if err := s.trades.Create(ctx, trade); err != nil {
				return opened, fmt.Errorf("service: open simulated trade %s: %w", sig.Token.Symbol, err)
			}
			alreadyOpen[key] = true
			opened++

			s.logger.InfoContext(ctx, "opened simulated trade",
				slog.String("token", sig.Token.Symbol),
				slog.String("chain", chain),
				slog.Float64("entry_price", trade.EntryPrice),
				slog.Float64("target_price", trade.TargetPrice),
			)
		}
	}
	return opened, nil
}

func (s *Simulator) closeTrades(ctx context.Context) (int, error) {
	open, err := s.trades.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: list open trades: %w", err)
	}

	byChain := make(map[string][]domain.SimulatedTrade)
	var chains []string
	for _, t := range open {
		if _, ok := byChain[t.Chain]; !ok {
			chains = append(chains, t.Chain)
		}
		byChain[t.Chain] = append(byChain[t.Chain], t)
	}

	closed := 0
	for _, chain := range chains {
		group := byChain[chain]
		addresses := make([]string, 0, len(group))
		for _, t := range group {
			addresses = append(addresses, t.TokenAddress)
		}
		prices := s.fetchPrices(ctx, chain, addresses)

		for _, t := range group {
			price, ok := prices[strings.ToLower(t.TokenAddress)]
			if !ok {
				continue
			}
			if price < t.TargetPrice {
				continue
			}
			if err := s.trades.Close(ctx, t.ID, price); err != nil {
				return closed, fmt.Errorf("service: close simulated trade %s: %w", t.ID, err)
			}
			closed++

			s.logger.InfoContext(ctx, "closed simulated trade",
				slog.String("token", t.TokenSymbol),
				slog.String("chain", chain),
				slog.Float64("entry_price", t.EntryPrice),
				slog.Float64("exit_price", price),
			)
		}
	}
	return closed, nil
}

// fetchPrices resolves prices cache-first and backfills the cache with fresh
// quotes. Upstream failures degrade to an empty map so a flaky price source
// never aborts a sweep.
func (s *Simulator) fetchPrices(ctx context.Context, chain string, addresses []string) map[string]float64 {
	result := make(map[string]float64, len(addresses))

	missing := addresses
	if s.cache != nil {
		keys := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			keys = append(keys, positionKey(chain, addr))
		}
		cached, err := s.cache.GetPrices(ctx, keys)
		if err == nil {
			missing = missing[:0:0]
			for _, addr := range addresses {
				if price, ok := cached[positionKey(chain, addr)]; ok {
					result[strings.ToLower(addr)] = price
				} else {
					missing = append(missing, addr)
				}
			}
		}
	}

	if len(missing) == 0 {
		return result
	}

	fresh, err := s.prices.GetPrices(ctx, chain, missing)
	if err != nil {
		s.logger.WarnContext(ctx, "price fetch failed",
			slog.String("chain", chain),
			slog.String("error", err.Error()),
		)
		return result
	}

	now := time.Now().UTC()
	for addr, price := range fresh {
		result[addr] = price
		if s.cache != nil {
			_ = s.cache.SetPrice(ctx, positionKey(chain, addr), price, now)
		}
	}
	return result
}

// positionKey doubles as the price cache key: "{chain}:{address}".
func positionKey(chain, address string) string {
	return chain + ":" + strings.ToLower(address)
}
