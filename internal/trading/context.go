package trading

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/wycheng/smartflow/internal/domain"
)

// swapContext is the resolved execution plan for one request: which token is
// sold, which is bought, and the raw sell amount.
type swapContext struct {
	baseToken         TokenInfo
	quoteTokenSymbol  string
	quoteTokenAddress string

	sellTokenAddress string
	sellDecimals     int
	buyTokenAddress  string
	buyDecimals      int
	buyDecimalsKnown bool

	sellAmountRaw     string
	sellAmountDecimal decimal.Decimal
}

// prepareContext resolves tokens and amounts for a normalized request. Quote
// token decimals missing from the request are read on-chain when a backend is
// available; selling the quote token without known decimals is an error since
// the raw sell amount cannot be computed.
func (s *Service) prepareContext(ctx context.Context, req *SwapRequest) (*swapContext, error) {
	baseToken, err := resolveBaseToken(req.ChainID, req.BaseTokenSymbol)
	if err != nil {
		return nil, err
	}

	quoteSymbol := req.QuoteTokenSymbol
	if quoteSymbol == "" {
		quoteSymbol = s.fetchQuoteSymbol(ctx, req.QuoteTokenAddress)
	}

	quoteDecimals := req.QuoteTokenDecimals
	quoteDecimalsKnown := req.QuoteDecimalsSet
	if !quoteDecimalsKnown {
		quoteDecimals, quoteDecimalsKnown = s.fetchQuoteDecimals(ctx, req.QuoteTokenAddress)
	}

	sc := &swapContext{
		baseToken:         baseToken,
		quoteTokenSymbol:  quoteSymbol,
		quoteTokenAddress: req.QuoteTokenAddress,
	}

	switch req.Direction {
	case BaseToQuote:
		sc.sellTokenAddress = baseToken.Address
		sc.sellDecimals = baseToken.Decimals
		sc.buyTokenAddress = req.QuoteTokenAddress
		sc.buyDecimals = quoteDecimals
		sc.buyDecimalsKnown = quoteDecimalsKnown
	case QuoteToBase:
		if !quoteDecimalsKnown {
			return nil, fmt.Errorf("trading: quote token decimals unknown and not resolvable on-chain: %w", domain.ErrInvalidSwapRequest)
		}
		sc.sellTokenAddress = req.QuoteTokenAddress
		sc.sellDecimals = quoteDecimals
		sc.buyTokenAddress = baseToken.Address
		sc.buyDecimals = baseToken.Decimals
		sc.buyDecimalsKnown = true
	}

	raw, dec, err := resolveSellAmount(req, sc.sellDecimals)
	if err != nil {
		return nil, err
	}
	sc.sellAmountRaw = raw
	sc.sellAmountDecimal = dec
	return sc, nil
}

func (s *Service) fetchQuoteSymbol(ctx context.Context, address string) string {
	if s.backend == nil {
		return "UNKNOWN"
	}
	symbol, err := s.backend.TokenSymbol(ctx, common.HexToAddress(address))
	if err != nil || symbol == "" {
		return "UNKNOWN"
	}
	return symbol
}

func (s *Service) fetchQuoteDecimals(ctx context.Context, address string) (int, bool) {
	if s.backend == nil {
		return 0, false
	}
	decimals, err := s.backend.TokenDecimals(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, false
	}
	return int(decimals), true
}

// resolveSellAmount converts the request's amount into the raw integer string
// the 0x API expects. Human-unit amounts are scaled by the sell token's
// decimals and truncated toward zero.
func resolveSellAmount(req *SwapRequest, sellDecimals int) (raw string, dec decimal.Decimal, err error) {
	if req.AmountWei != "" {
		rawDec, err := decimal.NewFromString(req.AmountWei)
		if err != nil || !rawDec.IsInteger() {
			return "", decimal.Zero, fmt.Errorf("trading: amount_wei %q is not an integer: %w", req.AmountWei, domain.ErrInvalidSwapRequest)
		}
		if rawDec.Sign() <= 0 {
			return "", decimal.Zero, fmt.Errorf("trading: sell amount must be positive: %w", domain.ErrInvalidSwapRequest)
		}
		return rawDec.String(), rawDec.Shift(int32(-sellDecimals)), nil
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("trading: parse amount %q: %w", req.Amount, domain.ErrInvalidSwapRequest)
	}
	if amount.Sign() <= 0 {
		return "", decimal.Zero, fmt.Errorf("trading: sell amount must be positive: %w", domain.ErrInvalidSwapRequest)
	}

	scaled := amount.Shift(int32(sellDecimals)).Truncate(0)
	if scaled.Sign() <= 0 {
		return "", decimal.Zero, fmt.Errorf("trading: sell amount below one base unit: %w", domain.ErrInvalidSwapRequest)
	}
	return scaled.String(), amount, nil
}

// rawToDecimal converts a raw integer amount string into human units.
func rawToDecimal(raw string, decimals int) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("trading: parse raw amount %q: %w", raw, err)
	}
	return value.Shift(int32(-decimals)), nil
}
