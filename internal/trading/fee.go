package trading

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/platform/zeroex"
)

// feeResult is the outcome of one integrator fee application.
type feeResult struct {
	buyAmountRaw     string
	buyAmountDecimal decimal.Decimal
	feeUSD           decimal.Decimal
	applied          bool
}

// applyIntegratorFee deducts the integrator fee from the quoted buy amount.
// The fee is IntegratorFeeRate of the sell side's USD value, converted into
// buy tokens at the quoted rate and truncated to the buy token's base unit.
// When the fee cannot be computed (zero buy amount, unknown buy decimals, or
// no USD value) the quoted amounts pass through unchanged.
func (s *Service) applyIntegratorFee(ctx context.Context, req *SwapRequest, sc *swapContext, buyAmountRaw string) (feeResult, error) {
	passthrough := feeResult{buyAmountRaw: buyAmountRaw}
	if buyAmountRaw == "" || !sc.buyDecimalsKnown {
		return passthrough, nil
	}

	buyDecimal, err := rawToDecimal(buyAmountRaw, sc.buyDecimals)
	if err != nil {
		return feeResult{}, err
	}
	passthrough.buyAmountDecimal = buyDecimal
	if buyDecimal.Sign() == 0 {
		return passthrough, nil
	}

	sellUSD, err := s.sellValueUSD(ctx, req, sc)
	if err != nil {
		return feeResult{}, err
	}
	if sellUSD.Sign() <= 0 {
		return passthrough, nil
	}

	// Truncate to 8 decimal places, rounding down so the fee never exceeds
	// the configured rate.
	feeUSD := sellUSD.Mul(IntegratorFeeRate).Truncate(8)
	if feeUSD.Sign() <= 0 {
		return passthrough, nil
	}

	tokensPerUSD := buyDecimal.Div(sellUSD)
	adjusted := buyDecimal.Sub(feeUSD.Mul(tokensPerUSD))
	if adjusted.Sign() < 0 {
		adjusted = decimal.Zero
	}

	adjustedRaw := adjusted.Shift(int32(sc.buyDecimals)).Truncate(0)

	return feeResult{
		buyAmountRaw:     adjustedRaw.String(),
		buyAmountDecimal: adjusted,
		feeUSD:           feeUSD,
		applied:          true,
	}, nil
}

// sellValueUSD prices the raw sell amount in USD. Selling USDC is a direct
// conversion; anything else is priced through a 0x sell-to-USDC price lookup.
func (s *Service) sellValueUSD(ctx context.Context, req *SwapRequest, sc *swapContext) (decimal.Decimal, error) {
	usdc, err := chainUSDC(req.ChainID)
	if err != nil {
		return decimal.Zero, err
	}

	if strings.EqualFold(sc.sellTokenAddress, usdc.Address) {
		return rawToDecimal(sc.sellAmountRaw, usdc.Decimals)
	}

	resp, err := s.swapAPI.GetPrice(ctx, zeroex.SwapParams{
		ChainID:    req.ChainID,
		SellToken:  sc.sellTokenAddress,
		BuyToken:   usdc.Address,
		SellAmount: sc.sellAmountRaw,
		Taker:      req.TakerAddress,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("trading: price sell token in USDC: %w", err)
	}
	if resp.BuyAmount == "" {
		return decimal.Zero, fmt.Errorf("trading: no USDC valuation for fee calculation: %w", domain.ErrNoPriceQuote)
	}
	return rawToDecimal(resp.BuyAmount, usdc.Decimals)
}
