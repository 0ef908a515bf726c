package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// SimulatedTradeStore implements domain.SimulatedTradeStore using PostgreSQL.
type SimulatedTradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

// NewSimulatedTradeStore creates a SimulatedTradeStore backed by the given
// connection pool.
func NewSimulatedTradeStore(pool *pgxpool.Pool) *SimulatedTradeStore {
	return &SimulatedTradeStore{pool: pool}
}

// Create opens a paper position.
func (s *SimulatedTradeStore) Create(ctx context.Context, trade domain.SimulatedTrade) error {
	const query = `
		INSERT INTO simulated_trades (
			id, token_symbol, token_address, chain,
			entry_price, target_price, exit_price, status, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.TokenSymbol, trade.TokenAddress, trade.Chain,
		trade.EntryPrice, trade.TargetPrice, trade.ExitPrice, trade.Status, trade.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create simulated trade %s: %w", trade.ID, err)
	}
	return nil
}

// Close marks a paper position closed at the given exit price.
func (s *SimulatedTradeStore) Close(ctx context.Context, id string, exitPrice float64) error {
	const query = `
		UPDATE simulated_trades SET
			status = $2, exit_price = $3, closed_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, domain.SimTradeClosed, exitPrice)
	if err != nil {
		return fmt.Errorf("postgres: close simulated trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListOpen returns all open paper positions, oldest first.
func (s *SimulatedTradeStore) ListOpen(ctx context.Context) ([]domain.SimulatedTrade, error) {
	const query = `
		SELECT id, token_symbol, token_address, chain,
			entry_price, target_price, exit_price, status, opened_at, closed_at
		FROM simulated_trades WHERE status = $1
		ORDER BY opened_at`

	rows, err := s.pool.Query(ctx, query, domain.SimTradeOpen)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open simulated trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.SimulatedTrade
	for rows.Next() {
		var t domain.SimulatedTrade
		if err := rows.Scan(
			&t.ID, &t.TokenSymbol, &t.TokenAddress, &t.Chain,
			&t.EntryPrice, &t.TargetPrice, &t.ExitPrice, &t.Status, &t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan simulated trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open simulated trades: %w", err)
	}
	return trades, nil
}
