package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TokenStore persists tokens keyed by (symbol, chain).
type TokenStore interface {
	Upsert(ctx context.Context, token Token) (Token, error)
	Get(ctx context.Context, symbol, chain string) (Token, error)
	List(ctx context.Context, opts ListOpts) ([]Token, error)
}

// WalletStore persists wallets keyed by address.
type WalletStore interface {
	Upsert(ctx context.Context, wallet Wallet) (Wallet, error)
	Get(ctx context.Context, address string) (Wallet, error)
}

// EventStore persists normalized events. NotionalHistory feeds the dynamic
// threshold filter with the usd_notional values observed for a token within
// the lookback window.
type EventStore interface {
	Insert(ctx context.Context, event Event) error
	InsertBatch(ctx context.Context, events []Event) error
	NotionalHistory(ctx context.Context, symbol, chain string, since time.Time) ([]float64, error)
	ListByWallet(ctx context.Context, address string, limit int) ([]Event, error)
}

// SignalStore persists scored signals.
type SignalStore interface {
	Create(ctx context.Context, signal Signal) error
	ListRecent(ctx context.Context, limit int) ([]Signal, error)
}

// ExecutedTradeStore persists swap execution records. Update is called
// exactly once at the end of a live execution with the record's final state.
type ExecutedTradeStore interface {
	Create(ctx context.Context, trade ExecutedTrade) error
	Update(ctx context.Context, trade ExecutedTrade) error
	GetByID(ctx context.Context, id string) (ExecutedTrade, error)
	ListRecent(ctx context.Context, limit int) ([]ExecutedTrade, error)
}

// SimulatedTradeStore persists paper positions for the trade simulator.
type SimulatedTradeStore interface {
	Create(ctx context.Context, trade SimulatedTrade) error
	Close(ctx context.Context, id string, exitPrice float64) error
	ListOpen(ctx context.Context) ([]SimulatedTrade, error)
}

// RunStore persists pipeline run history.
type RunStore interface {
	Create(ctx context.Context, run PipelineRun) error
	ListRecent(ctx context.Context, limit int) ([]PipelineRun, error)
}
