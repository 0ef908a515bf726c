package trading

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/chain"
	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/platform/zeroex"
	"github.com/wycheng/smartflow/internal/store/memory"
)

// Well-known throwaway key, never funded.
const testPrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

const usdtAddress = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

type stubSwapAPI struct {
	price    *zeroex.SwapResponse
	quote    *zeroex.SwapResponse
	priceErr error
	quoteErr error
}

func (s *stubSwapAPI) GetPrice(context.Context, zeroex.SwapParams) (*zeroex.SwapResponse, error) {
	return s.price, s.priceErr
}

func (s *stubSwapAPI) GetQuote(context.Context, zeroex.SwapParams) (*zeroex.SwapResponse, error) {
	return s.quote, s.quoteErr
}

type stubBackend struct {
	allowance *big.Int
	sendErr   error
	sentTx    bool
	receipt   *ethtypes.Receipt
}

func (b *stubBackend) TokenDecimals(context.Context, common.Address) (uint8, error) {
	return 6, nil
}

func (b *stubBackend) TokenSymbol(context.Context, common.Address) (string, error) {
	return "USDT", nil
}

func (b *stubBackend) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	if b.allowance == nil {
		return big.NewInt(0), nil
	}
	return b.allowance, nil
}

func (b *stubBackend) Approve(context.Context, *chain.Signer, common.Address, common.Address, *big.Int) (string, error) {
	return "0xapprove", nil
}

func (b *stubBackend) SendTransaction(context.Context, *chain.Signer, chain.TxRequest) (string, error) {
	if b.sendErr != nil {
		return "", b.sendErr
	}
	b.sentTx = true
	return "0xswap", nil
}

func (b *stubBackend) WaitReceipt(context.Context, string, time.Duration) (*ethtypes.Receipt, error) {
	if b.receipt == nil {
		return nil, errors.New("receipt not found within timeout")
	}
	return b.receipt, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func priceResponse(buyAmount string) *zeroex.SwapResponse {
	return &zeroex.SwapResponse{
		BuyAmount:       buyAmount,
		AllowanceTarget: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		Zid:             "zid-price",
		Raw:             map[string]any{"buyAmount": buyAmount},
	}
}

func usdcToUSDTRequest() SwapRequest {
	return SwapRequest{
		ChainID:            1,
		TakerAddress:       "0x1111111111111111111111111111111111111111",
		BaseTokenSymbol:    "usdc",
		QuoteTokenAddress:  usdtAddress,
		QuoteTokenSymbol:   "usdt",
		Direction:          BaseToQuote,
		Amount:             "100",
		QuoteTokenDecimals: 6,
		QuoteDecimalsSet:   true,
	}
}

func TestSimulateSwapAppliesIntegratorFee(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewExecutedTradeStore()
	api := &stubSwapAPI{price: priceResponse("250000000")}

	svc := NewService(api, nil, nil, trades, Options{}, testLogger())

	result, err := svc.SimulateSwap(ctx, usdcToUSDTRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSimulation, result.Mode)
	assert.Equal(t, domain.TradeCompleted, result.Status)

	record, err := trades.GetByID(ctx, result.TradeID)
	require.NoError(t, err)

	// Selling 100 USDC for 250 USDT: fee = 100 * 0.0015 = 0.15 USD,
	// converted at 2.5 USDT/USD into 0.375 USDT off the buy side.
	assert.Equal(t, "100000000", record.SellAmountRaw)
	assert.Equal(t, "100", record.SellAmountDecimal)
	assert.Equal(t, "249625000", record.BuyAmountRaw)
	assert.Equal(t, "249.625", record.BuyAmountDecimal)
	assert.Equal(t, "0.15", record.IntegratorFeeUSD)
	assert.Equal(t, "2.49625", record.Price)
	assert.Equal(t, "zid-price", record.QuoteID)
	assert.Equal(t, "0x000000000022D473030F116dDEE9F6B43aC78BA3", record.AllowanceTarget)
	assert.Equal(t, "USDC", record.SellTokenSymbol)
	assert.Equal(t, "USDT", record.BuyTokenSymbol)
}

func TestSimulateSwapFeeNeverIncreasesBuyAmount(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewExecutedTradeStore()
	api := &stubSwapAPI{price: priceResponse("1")}

	svc := NewService(api, nil, nil, trades, Options{}, testLogger())

	result, err := svc.SimulateSwap(ctx, usdcToUSDTRequest())
	require.NoError(t, err)

	record, err := trades.GetByID(ctx, result.TradeID)
	require.NoError(t, err)

	raw, ok := new(big.Int).SetString(record.BuyAmountRaw, 10)
	require.True(t, ok)
	assert.LessOrEqual(t, raw.Cmp(big.NewInt(1)), 0)
	assert.GreaterOrEqual(t, raw.Sign(), 0)
}

func TestResolveSellAmountTruncatesTowardZero(t *testing.T) {
	req := &SwapRequest{Amount: "1.23456789"}
	raw, dec, err := resolveSellAmount(req, 6)
	require.NoError(t, err)
	assert.Equal(t, "1234567", raw)
	assert.Equal(t, "1.23456789", dec.String())
}

func TestResolveSellAmountWei(t *testing.T) {
	req := &SwapRequest{AmountWei: "100000000"}
	raw, dec, err := resolveSellAmount(req, 6)
	require.NoError(t, err)
	assert.Equal(t, "100000000", raw)
	assert.Equal(t, "100", dec.String())

	_, _, err = resolveSellAmount(&SwapRequest{AmountWei: "-5"}, 6)
	require.ErrorIs(t, err, domain.ErrInvalidSwapRequest)
}

func TestSwapRequestValidation(t *testing.T) {
	req := usdcToUSDTRequest()
	req.Amount = ""
	req.AmountWei = ""
	require.ErrorIs(t, req.normalize(), domain.ErrInvalidSwapRequest)

	req = usdcToUSDTRequest()
	req.AmountWei = "100"
	require.ErrorIs(t, req.normalize(), domain.ErrInvalidSwapRequest)

	req = usdcToUSDTRequest()
	req.Direction = "sideways"
	require.ErrorIs(t, req.normalize(), domain.ErrInvalidSwapRequest)

	req = usdcToUSDTRequest()
	require.NoError(t, req.normalize())
	assert.Equal(t, "USDC", req.BaseTokenSymbol)
	assert.Equal(t, 100, req.SlippageBps)
}

func TestExecuteLiveSwapRequiresBackend(t *testing.T) {
	svc := NewService(&stubSwapAPI{}, nil, nil, memory.NewExecutedTradeStore(), Options{}, testLogger())

	_, err := svc.ExecuteLiveSwap(context.Background(), usdcToUSDTRequest())
	require.ErrorIs(t, err, domain.ErrChainNotConfigured)
}

func liveQuoteResponse() *zeroex.SwapResponse {
	return &zeroex.SwapResponse{
		BuyAmount:       "250000000",
		AllowanceTarget: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		Zid:             "zid-quote",
		Transaction: &zeroex.Transaction{
			To:       "0x2222222222222222222222222222222222222222",
			Data:     "0xdeadbeef",
			Gas:      "210000",
			GasPrice: "1000000000",
			Value:    "0",
		},
		Raw: map[string]any{"buyAmount": "250000000", "transaction": map[string]any{"to": "0x2222"}},
	}
}

func TestExecuteLiveSwapCompletesOnSuccessfulReceipt(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewExecutedTradeStore()
	signer, err := chain.NewSigner(testPrivateKey)
	require.NoError(t, err)

	backend := &stubBackend{
		allowance: big.NewInt(1_000_000_000),
		receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(123),
		},
	}
	api := &stubSwapAPI{price: priceResponse("250000000"), quote: liveQuoteResponse()}

	svc := NewService(api, backend, signer, trades, Options{WaitForReceipt: true, ReceiptTimeout: time.Second}, testLogger())

	result, err := svc.ExecuteLiveSwap(ctx, usdcToUSDTRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TradeCompleted, result.Status)
	assert.Equal(t, "0xswap", result.TxHash)
	assert.Empty(t, result.ErrorMessage)
	assert.True(t, backend.sentTx)

	record, err := trades.GetByID(ctx, result.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCompleted, record.Status)
	assert.Equal(t, "zid-quote", record.QuoteID)
	assert.Contains(t, record.TxPayload, "receipt")
}

func TestExecuteLiveSwapCapturesPostPendingFailure(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewExecutedTradeStore()
	signer, err := chain.NewSigner(testPrivateKey)
	require.NoError(t, err)

	backend := &stubBackend{
		allowance: big.NewInt(1_000_000_000),
		sendErr:   errors.New("nonce too low"),
	}
	api := &stubSwapAPI{price: priceResponse("250000000"), quote: liveQuoteResponse()}

	svc := NewService(api, backend, signer, trades, Options{WaitForReceipt: true}, testLogger())

	// The failure happened after the PENDING record existed, so it must be
	// reported through the record and result, not as an error.
	result, err := svc.ExecuteLiveSwap(ctx, usdcToUSDTRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "nonce too low")

	record, err := trades.GetByID(ctx, result.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, record.Status)
	assert.Empty(t, record.TxHash)
}

func TestExecuteLiveSwapFailsOnRevertedReceipt(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewExecutedTradeStore()
	signer, err := chain.NewSigner(testPrivateKey)
	require.NoError(t, err)

	backend := &stubBackend{
		allowance: big.NewInt(1_000_000_000),
		receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusFailed,
			BlockNumber: big.NewInt(124),
		},
	}
	api := &stubSwapAPI{price: priceResponse("250000000"), quote: liveQuoteResponse()}

	svc := NewService(api, backend, signer, trades, Options{WaitForReceipt: true}, testLogger())

	result, err := svc.ExecuteLiveSwap(ctx, usdcToUSDTRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, result.Status)
	assert.Equal(t, "transaction reverted on-chain", result.ErrorMessage)
	assert.Equal(t, "0xswap", result.TxHash)
}

func TestSellAmountRoundTripNeverExceedsOriginal(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals int
		wantRaw  string
	}{
		{name: "divides evenly", amount: "123.456789", decimals: 6, wantRaw: "123456789"},
		{name: "excess precision truncates", amount: "1.2345678", decimals: 6, wantRaw: "1234567"},
		{name: "zero decimals truncate fraction", amount: "5.9", decimals: 0, wantRaw: "5"},
		{name: "one base unit", amount: "0.000000000000000001", decimals: 18, wantRaw: "1"},
		{name: "repeating fraction", amount: "0.333333333", decimals: 8, wantRaw: "33333333"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := decimal.RequireFromString(tc.amount)

			raw, dec, err := resolveSellAmount(&SwapRequest{Amount: tc.amount}, tc.decimals)
			require.NoError(t, err)
			assert.Equal(t, tc.wantRaw, raw)
			assert.True(t, dec.Equal(original))

			back, err := rawToDecimal(raw, tc.decimals)
			require.NoError(t, err)

			// Truncation means the round trip never gains value, and loses
			// strictly less than one base unit.
			assert.True(t, back.LessThanOrEqual(original),
				"round trip %s exceeds original %s", back, original)
			oneBaseUnit := decimal.New(1, int32(-tc.decimals))
			assert.True(t, original.Sub(back).LessThan(oneBaseUnit))

			// Raw amounts survive the trip exactly.
			rescaled := back.Shift(int32(tc.decimals)).Truncate(0)
			assert.Equal(t, raw, rescaled.String())
		})
	}
}

func TestSellAmountWeiRoundTripIsExact(t *testing.T) {
	raw, dec, err := resolveSellAmount(&SwapRequest{AmountWei: "123456789"}, 6)
	require.NoError(t, err)
	assert.Equal(t, "123456789", raw)
	assert.True(t, dec.Equal(decimal.RequireFromString("123.456789")))

	back, err := rawToDecimal(raw, 6)
	require.NoError(t, err)
	assert.True(t, back.Equal(dec))
}
