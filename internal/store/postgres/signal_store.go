package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates a SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Create persists one scored signal.
func (s *SignalStore) Create(ctx context.Context, signal domain.Signal) error {
	reasons, err := json.Marshal(signal.Reasons)
	if err != nil {
		return fmt.Errorf("postgres: encode signal reasons: %w", err)
	}
	wallets, err := json.Marshal(signal.Wallets)
	if err != nil {
		return fmt.Errorf("postgres: encode signal wallets: %w", err)
	}
	var metadata []byte
	if signal.Metadata != nil {
		metadata, err = json.Marshal(signal.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode signal metadata: %w", err)
		}
	}

	const query = `
		INSERT INTO signals (
			token_symbol, token_chain, token_address, score, signal_type,
			reasons, wallets, generated_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, query,
		signal.Token.Symbol, signal.Token.Chain, signal.Token.Address,
		signal.Score, string(signal.Type),
		reasons, wallets, signal.GeneratedAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("postgres: create signal %s/%s: %w", signal.Token.Symbol, signal.Token.Chain, err)
	}
	return nil
}

// ListRecent returns the most recently generated signals, newest first.
func (s *SignalStore) ListRecent(ctx context.Context, limit int) ([]domain.Signal, error) {
	const query = `
		SELECT token_symbol, token_chain, token_address, score, signal_type,
			reasons, wallets, generated_at, metadata
		FROM signals ORDER BY generated_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var (
			sig        domain.Signal
			signalType string
			reasons    []byte
			wallets    []byte
			metadata   []byte
		)
		if err := rows.Scan(
			&sig.Token.Symbol, &sig.Token.Chain, &sig.Token.Address,
			&sig.Score, &signalType,
			&reasons, &wallets, &sig.GeneratedAt, &metadata,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Type = domain.SignalType(signalType)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &sig.Reasons); err != nil {
				return nil, fmt.Errorf("postgres: decode signal reasons: %w", err)
			}
		}
		if len(wallets) > 0 {
			if err := json.Unmarshal(wallets, &sig.Wallets); err != nil {
				return nil, fmt.Errorf("postgres: decode signal wallets: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sig.Metadata); err != nil {
				return nil, fmt.Errorf("postgres: decode signal metadata: %w", err)
			}
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	return signals, nil
}
