// Package memory provides in-process implementations of the domain store
// interfaces. They back fixture runs and tests; nothing here survives a
// restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
)

type tokenKey struct {
	symbol string
	chain  string
}

// TokenStore keeps tokens in a map keyed by (symbol, chain).
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[tokenKey]domain.Token
	order  []tokenKey
}

var _ domain.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[tokenKey]domain.Token)}
}

func (s *TokenStore) Upsert(_ context.Context, token domain.Token) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{symbol: token.Symbol, chain: token.Chain}
	if _, ok := s.tokens[key]; !ok {
		s.order = append(s.order, key)
	}
	s.tokens[key] = token.Clone()
	return token, nil
}

func (s *TokenStore) Get(_ context.Context, symbol, chain string) (domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[tokenKey{symbol: symbol, chain: chain}]
	if !ok {
		return domain.Token{}, domain.ErrNotFound
	}
	return token.Clone(), nil
}

func (s *TokenStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Token, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.tokens[key].Clone())
	}
	return paginate(out, opts), nil
}

// WalletStore keeps wallets in a map keyed by address.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]domain.Wallet
}

var _ domain.WalletStore = (*WalletStore)(nil)

// NewWalletStore creates an empty wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]domain.Wallet)}
}

func (s *WalletStore) Upsert(_ context.Context, wallet domain.Wallet) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallets[wallet.Address] = wallet.Clone()
	return wallet, nil
}

func (s *WalletStore) Get(_ context.Context, address string) (domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet, ok := s.wallets[address]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return wallet.Clone(), nil
}

// EventStore keeps events in insertion order.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates an empty event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Insert(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event.Clone())
	return nil
}

func (s *EventStore) InsertBatch(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		if err := s.Insert(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventStore) NotionalHistory(_ context.Context, symbol, chain string, since time.Time) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []float64
	for _, event := range s.events {
		sym, ch := event.MergeKey()
		if sym != symbol || ch != chain {
			continue
		}
		if event.OccurredAt.Before(since) {
			continue
		}
		out = append(out, event.Features.USDNotional)
	}
	return out, nil
}

func (s *EventStore) ListByWallet(_ context.Context, address string, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	// Newest first, matching the SQL store's ORDER BY occurred_at DESC.
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if event.Wallet == nil || event.Wallet.Address != address {
			continue
		}
		out = append(out, event.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out, nil
}

// SignalStore keeps signals in insertion order.
type SignalStore struct {
	mu      sync.RWMutex
	signals []domain.Signal
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates an empty signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{}
}

func (s *SignalStore) Create(_ context.Context, signal domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals = append(s.signals, signal)
	return nil
}

func (s *SignalStore) ListRecent(_ context.Context, limit int) ([]domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Signal, 0, limit)
	for i := len(s.signals) - 1; i >= 0; i-- {
		out = append(out, s.signals[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ExecutedTradeStore keeps trade records keyed by id.
type ExecutedTradeStore struct {
	mu     sync.RWMutex
	trades map[string]domain.ExecutedTrade
	order  []string
}

var _ domain.ExecutedTradeStore = (*ExecutedTradeStore)(nil)

// NewExecutedTradeStore creates an empty executed-trade store.
func NewExecutedTradeStore() *ExecutedTradeStore {
	return &ExecutedTradeStore{trades: make(map[string]domain.ExecutedTrade)}
}

func (s *ExecutedTradeStore) Create(_ context.Context, trade domain.ExecutedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[trade.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.trades[trade.ID] = trade
	s.order = append(s.order, trade.ID)
	return nil
}

func (s *ExecutedTradeStore) Update(_ context.Context, trade domain.ExecutedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[trade.ID]; !ok {
		return domain.ErrNotFound
	}
	s.trades[trade.ID] = trade
	return nil
}

func (s *ExecutedTradeStore) GetByID(_ context.Context, id string) (domain.ExecutedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade, ok := s.trades[id]
	if !ok {
		return domain.ExecutedTrade{}, domain.ErrNotFound
	}
	return trade, nil
}

func (s *ExecutedTradeStore) ListRecent(_ context.Context, limit int) ([]domain.ExecutedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExecutedTrade, 0, limit)
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.trades[s.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SimulatedTradeStore keeps paper positions keyed by id.
type SimulatedTradeStore struct {
	mu     sync.RWMutex
	trades map[string]domain.SimulatedTrade
	order  []string
}

var _ domain.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

// NewSimulatedTradeStore creates an empty simulated-trade store.
func NewSimulatedTradeStore() *SimulatedTradeStore {
	return &SimulatedTradeStore{trades: make(map[string]domain.SimulatedTrade)}
}

func (s *SimulatedTradeStore) Create(_ context.Context, trade domain.SimulatedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[trade.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.trades[trade.ID] = trade
	s.order = append(s.order, trade.ID)
	return nil
}

func (s *SimulatedTradeStore) Close(_ context.Context, id string, exitPrice float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	trade.Status = domain.SimTradeClosed
	trade.ExitPrice = exitPrice
	trade.ClosedAt = &now
	s.trades[id] = trade
	return nil
}

func (s *SimulatedTradeStore) ListOpen(_ context.Context) ([]domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SimulatedTrade
	for _, id := range s.order {
		if trade := s.trades[id]; trade.Status == domain.SimTradeOpen {
			out = append(out, trade)
		}
	}
	return out, nil
}

// RunStore keeps pipeline run history in insertion order.
type RunStore struct {
	mu   sync.RWMutex
	runs []domain.PipelineRun
}

var _ domain.RunStore = (*RunStore)(nil)

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{}
}

func (s *RunStore) Create(_ context.Context, run domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, run)
	return nil
}

func (s *RunStore) ListRecent(_ context.Context, limit int) ([]domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PipelineRun, 0, limit)
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
