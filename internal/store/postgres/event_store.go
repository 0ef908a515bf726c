package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventInsertQuery = `
	INSERT INTO events (
		source, token_symbol, token_chain, token_address, liquidity_score,
		wallet_address, tx_hash, chain, occurred_at,
		usd_notional, volume_jump, smart_money_netflow, is_buy, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func eventInsertArgs(event domain.Event) ([]any, error) {
	var walletAddress *string
	if event.Wallet != nil && event.Wallet.Address != "" {
		walletAddress = &event.Wallet.Address
	}

	var metadata []byte
	if event.Features.Metadata != nil {
		encoded, err := json.Marshal(event.Features.Metadata)
		if err != nil {
			return nil, fmt.Errorf("postgres: encode event metadata: %w", err)
		}
		metadata = encoded
	}

	symbol, chain := event.MergeKey()
	return []any{
		string(event.Source), symbol, chain, event.Token.Address, event.Token.LiquidityScore,
		walletAddress, event.TxHash, event.Chain, event.OccurredAt,
		event.Features.USDNotional, event.Features.VolumeJump,
		event.Features.SmartMoneyNetflow, event.Features.IsBuy, metadata,
	}, nil
}

// Insert persists one event.
func (s *EventStore) Insert(ctx context.Context, event domain.Event) error {
	args, err := eventInsertArgs(event)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, eventInsertQuery, args...); err != nil {
		return fmt.Errorf("postgres: insert event: %w", err)
	}
	return nil
}

// InsertBatch persists events efficiently using pgx Batch.
func (s *EventStore) InsertBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		args, err := eventInsertArgs(event)
		if err != nil {
			return err
		}
		batch.Queue(eventInsertQuery, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert event batch item %d: %w", i, err)
		}
	}
	return nil
}

// NotionalHistory returns the usd_notional values recorded for a token since
// the given time, feeding the dynamic threshold filter.
func (s *EventStore) NotionalHistory(ctx context.Context, symbol, chain string, since time.Time) ([]float64, error) {
	const query = `
		SELECT usd_notional FROM events
		WHERE token_symbol = $1 AND token_chain = $2 AND occurred_at >= $3`

	rows, err := s.pool.Query(ctx, query, symbol, chain, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: notional history %s/%s: %w", symbol, chain, err)
	}
	defer rows.Close()

	var history []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres: scan notional: %w", err)
		}
		history = append(history, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: notional history %s/%s: %w", symbol, chain, err)
	}
	return history, nil
}

// ListByWallet returns a wallet's most recent events, newest first.
func (s *EventStore) ListByWallet(ctx context.Context, address string, limit int) ([]domain.Event, error) {
	const query = `
		SELECT source, token_symbol, token_chain, token_address, liquidity_score,
			wallet_address, tx_hash, chain, occurred_at,
			usd_notional, volume_jump, smart_money_netflow, is_buy, metadata
		FROM events WHERE wallet_address = $1
		ORDER BY occurred_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events by wallet %s: %w", address, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e             domain.Event
			source        string
			walletAddress *string
			metadata      []byte
		)
		if err := rows.Scan(
			&source, &e.Token.Symbol, &e.Token.Chain, &e.Token.Address, &e.Token.LiquidityScore,
			&walletAddress, &e.TxHash, &e.Chain, &e.OccurredAt,
			&e.Features.USDNotional, &e.Features.VolumeJump,
			&e.Features.SmartMoneyNetflow, &e.Features.IsBuy, &metadata,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.Source = domain.EventSource(source)
		if walletAddress != nil {
			e.Wallet = &domain.Wallet{Address: *walletAddress}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Features.Metadata); err != nil {
				return nil, fmt.Errorf("postgres: decode event metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events by wallet %s: %w", address, err)
	}
	return events, nil
}
