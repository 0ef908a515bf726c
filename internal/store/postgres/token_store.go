package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

var _ domain.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Upsert inserts or updates a token keyed by (symbol, chain). The address is
// only overwritten when the incoming value is non-empty so a source without
// addresses cannot erase one we already know.
func (s *TokenStore) Upsert(ctx context.Context, token domain.Token) (domain.Token, error) {
	flags := token.BlacklistFlags
	if flags == nil {
		flags = []string{}
	}

	const query = `
		INSERT INTO tokens (symbol, chain, address, liquidity_score, blacklist_flags)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, chain) DO UPDATE SET
			address = CASE WHEN EXCLUDED.address <> '' THEN EXCLUDED.address ELSE tokens.address END,
			liquidity_score = EXCLUDED.liquidity_score,
			blacklist_flags = EXCLUDED.blacklist_flags,
			updated_at = NOW()
		RETURNING symbol, chain, address, liquidity_score, blacklist_flags`

	var out domain.Token
	err := s.pool.QueryRow(ctx, query,
		token.Symbol, token.Chain, token.Address, token.LiquidityScore, flags,
	).Scan(&out.Symbol, &out.Chain, &out.Address, &out.LiquidityScore, &out.BlacklistFlags)
	if err != nil {
		return domain.Token{}, fmt.Errorf("postgres: upsert token %s/%s: %w", token.Symbol, token.Chain, err)
	}
	return out, nil
}

// Get returns the token for (symbol, chain).
func (s *TokenStore) Get(ctx context.Context, symbol, chain string) (domain.Token, error) {
	const query = `
		SELECT symbol, chain, address, liquidity_score, blacklist_flags
		FROM tokens WHERE symbol = $1 AND chain = $2`

	var out domain.Token
	err := s.pool.QueryRow(ctx, query, symbol, chain).Scan(
		&out.Symbol, &out.Chain, &out.Address, &out.LiquidityScore, &out.BlacklistFlags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Token{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("postgres: get token %s/%s: %w", symbol, chain, err)
	}
	return out, nil
}

// List returns tokens ordered by symbol and chain with pagination.
func (s *TokenStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Token, error) {
	query := `
		SELECT symbol, chain, address, liquidity_score, blacklist_flags
		FROM tokens ORDER BY symbol, chain`
	var args []any
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(&t.Symbol, &t.Chain, &t.Address, &t.LiquidityScore, &t.BlacklistFlags); err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	return tokens, nil
}
