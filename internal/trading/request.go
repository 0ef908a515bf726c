package trading

import (
	"fmt"
	"strings"

	"github.com/wycheng/smartflow/internal/domain"
)

// TradeDirection orients a swap relative to the base token.
type TradeDirection string

const (
	// BaseToQuote sells the base token for the quote token (a buy of the
	// quote asset).
	BaseToQuote TradeDirection = "BASE_TO_QUOTE"
	// QuoteToBase sells the quote token back into the base token.
	QuoteToBase TradeDirection = "QUOTE_TO_BASE"
)

// SwapRequest describes one swap. Exactly one of Amount (human units) and
// AmountWei (raw integer string) must be set.
type SwapRequest struct {
	ChainID           int64
	TakerAddress      string
	BaseTokenSymbol   string
	QuoteTokenAddress string
	QuoteTokenSymbol  string
	Direction         TradeDirection
	Amount            string
	AmountWei         string
	// QuoteTokenDecimals is optional; 0 with QuoteDecimalsSet false means
	// unknown, to be resolved on-chain.
	QuoteTokenDecimals int
	QuoteDecimalsSet   bool
	SlippageBps        int
}

// normalize validates the request and uppercases symbols and direction.
// SlippageBps defaults to 100 (1%).
func (r *SwapRequest) normalize() error {
	if r.Amount == "" && r.AmountWei == "" {
		return fmt.Errorf("trading: either amount or amount_wei is required: %w", domain.ErrInvalidSwapRequest)
	}
	if r.Amount != "" && r.AmountWei != "" {
		return fmt.Errorf("trading: amount and amount_wei are mutually exclusive: %w", domain.ErrInvalidSwapRequest)
	}

	if r.Direction == "" {
		r.Direction = BaseToQuote
	}
	r.Direction = TradeDirection(strings.ToUpper(string(r.Direction)))
	if r.Direction != BaseToQuote && r.Direction != QuoteToBase {
		return fmt.Errorf("trading: direction must be BASE_TO_QUOTE or QUOTE_TO_BASE: %w", domain.ErrInvalidSwapRequest)
	}

	if r.TakerAddress == "" {
		return fmt.Errorf("trading: taker address is required: %w", domain.ErrInvalidSwapRequest)
	}
	if r.QuoteTokenAddress == "" {
		return fmt.Errorf("trading: quote token address is required: %w", domain.ErrInvalidSwapRequest)
	}

	r.BaseTokenSymbol = strings.ToUpper(r.BaseTokenSymbol)
	r.QuoteTokenSymbol = strings.ToUpper(r.QuoteTokenSymbol)

	if r.SlippageBps <= 0 {
		r.SlippageBps = 100
	}
	return nil
}
