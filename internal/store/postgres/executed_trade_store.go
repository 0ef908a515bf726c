package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// ExecutedTradeStore implements domain.ExecutedTradeStore using PostgreSQL.
type ExecutedTradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.ExecutedTradeStore = (*ExecutedTradeStore)(nil)

// NewExecutedTradeStore creates an ExecutedTradeStore backed by the given
// connection pool.
func NewExecutedTradeStore(pool *pgxpool.Pool) *ExecutedTradeStore {
	return &ExecutedTradeStore{pool: pool}
}

const executedTradeColumns = `
	id, mode, status, chain_id, taker_address,
	sell_token_address, sell_token_symbol, buy_token_address, buy_token_symbol,
	sell_amount_raw, sell_amount_decimal, buy_amount_raw, buy_amount_decimal,
	price, integrator_fee_usd, slippage_bps, allowance_target, quote_id,
	tx_hash, tx_payload, error_message, created_at, updated_at`

func encodeTxPayload(trade domain.ExecutedTrade) ([]byte, error) {
	if trade.TxPayload == nil {
		return nil, nil
	}
	payload, err := json.Marshal(trade.TxPayload)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode tx payload: %w", err)
	}
	return payload, nil
}

// Create persists a new trade record. A duplicate ID returns
// domain.ErrAlreadyExists.
func (s *ExecutedTradeStore) Create(ctx context.Context, trade domain.ExecutedTrade) error {
	payload, err := encodeTxPayload(trade)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO executed_trades (
			id, mode, status, chain_id, taker_address,
			sell_token_address, sell_token_symbol, buy_token_address, buy_token_symbol,
			sell_amount_raw, sell_amount_decimal, buy_amount_raw, buy_amount_decimal,
			price, integrator_fee_usd, slippage_bps, allowance_target, quote_id,
			tx_hash, tx_payload, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err = s.pool.Exec(ctx, query,
		trade.ID, string(trade.Mode), string(trade.Status), trade.ChainID, trade.TakerAddress,
		trade.SellTokenAddress, trade.SellTokenSymbol, trade.BuyTokenAddress, trade.BuyTokenSymbol,
		trade.SellAmountRaw, trade.SellAmountDecimal, trade.BuyAmountRaw, trade.BuyAmountDecimal,
		trade.Price, trade.IntegratorFeeUSD, trade.SlippageBps, trade.AllowanceTarget, trade.QuoteID,
		trade.TxHash, payload, trade.ErrorMessage,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create trade %s: %w", trade.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing trade record. A missing
// ID returns domain.ErrNotFound.
func (s *ExecutedTradeStore) Update(ctx context.Context, trade domain.ExecutedTrade) error {
	payload, err := encodeTxPayload(trade)
	if err != nil {
		return err
	}

	const query = `
		UPDATE executed_trades SET
			status = $2,
			buy_amount_raw = $3,
			buy_amount_decimal = $4,
			price = $5,
			integrator_fee_usd = $6,
			allowance_target = $7,
			quote_id = $8,
			tx_hash = $9,
			tx_payload = $10,
			error_message = $11,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		trade.ID, string(trade.Status),
		trade.BuyAmountRaw, trade.BuyAmountDecimal,
		trade.Price, trade.IntegratorFeeUSD,
		trade.AllowanceTarget, trade.QuoteID,
		trade.TxHash, payload, trade.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("postgres: update trade %s: %w", trade.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns the trade record for an ID.
func (s *ExecutedTradeStore) GetByID(ctx context.Context, id string) (domain.ExecutedTrade, error) {
	query := "SELECT " + executedTradeColumns + " FROM executed_trades WHERE id = $1"

	row := s.pool.QueryRow(ctx, query, id)
	trade, err := scanExecutedTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExecutedTrade{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ExecutedTrade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return trade, nil
}

// ListRecent returns the most recently created trades, newest first.
func (s *ExecutedTradeStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutedTrade, error) {
	query := "SELECT " + executedTradeColumns + " FROM executed_trades ORDER BY created_at DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.ExecutedTrade
	for rows.Next() {
		trade, err := scanExecutedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	return trades, nil
}

func scanExecutedTrade(row pgx.Row) (domain.ExecutedTrade, error) {
	var (
		t       domain.ExecutedTrade
		mode    string
		status  string
		payload []byte
	)
	err := row.Scan(
		&t.ID, &mode, &status, &t.ChainID, &t.TakerAddress,
		&t.SellTokenAddress, &t.SellTokenSymbol, &t.BuyTokenAddress, &t.BuyTokenSymbol,
		&t.SellAmountRaw, &t.SellAmountDecimal, &t.BuyAmountRaw, &t.BuyAmountDecimal,
		&t.Price, &t.IntegratorFeeUSD, &t.SlippageBps, &t.AllowanceTarget, &t.QuoteID,
		&t.TxHash, &payload, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.ExecutedTrade{}, err
	}
	t.Mode = domain.TradeMode(mode)
	t.Status = domain.TradeStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t.TxPayload); err != nil {
			return domain.ExecutedTrade{}, fmt.Errorf("decode tx payload: %w", err)
		}
	}
	return t, nil
}
