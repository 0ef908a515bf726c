package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *pgxpool.Pool
}

var _ domain.WalletStore = (*WalletStore)(nil)

// NewWalletStore creates a WalletStore backed by the given connection pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Upsert inserts or updates a wallet keyed by address. Labels only overwrite
// when the incoming set is non-empty; the alpha score always updates since it
// is recomputed each run.
func (s *WalletStore) Upsert(ctx context.Context, wallet domain.Wallet) (domain.Wallet, error) {
	labels := wallet.Labels
	if labels == nil {
		labels = []string{}
	}

	const query = `
		INSERT INTO wallets (address, labels, alpha_score, last_active_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET
			labels = CASE WHEN cardinality(EXCLUDED.labels) > 0 THEN EXCLUDED.labels ELSE wallets.labels END,
			alpha_score = EXCLUDED.alpha_score,
			last_active_at = COALESCE(EXCLUDED.last_active_at, wallets.last_active_at),
			updated_at = NOW()
		RETURNING address, labels, alpha_score, last_active_at`

	var out domain.Wallet
	err := s.pool.QueryRow(ctx, query,
		wallet.Address, labels, wallet.AlphaScore, wallet.LastActiveAt,
	).Scan(&out.Address, &out.Labels, &out.AlphaScore, &out.LastActiveAt)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("postgres: upsert wallet %s: %w", wallet.Address, err)
	}
	return out, nil
}

// Get returns the wallet for an address.
func (s *WalletStore) Get(ctx context.Context, address string) (domain.Wallet, error) {
	const query = `
		SELECT address, labels, alpha_score, last_active_at
		FROM wallets WHERE address = $1`

	var out domain.Wallet
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&out.Address, &out.Labels, &out.AlphaScore, &out.LastActiveAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wallet{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("postgres: get wallet %s: %w", address, err)
	}
	return out, nil
}
