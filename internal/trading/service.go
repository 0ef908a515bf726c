package trading

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/wycheng/smartflow/internal/chain"
	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/platform/zeroex"
)

// SwapAPI is the 0x client surface the service consumes.
type SwapAPI interface {
	GetPrice(ctx context.Context, params zeroex.SwapParams) (*zeroex.SwapResponse, error)
	GetQuote(ctx context.Context, params zeroex.SwapParams) (*zeroex.SwapResponse, error)
}

// ChainBackend is the on-chain surface needed for live execution. A nil
// backend restricts the service to simulation.
type ChainBackend interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, signer *chain.Signer, token, spender common.Address, amount *big.Int) (string, error)
	SendTransaction(ctx context.Context, signer *chain.Signer, req chain.TxRequest) (string, error)
	WaitReceipt(ctx context.Context, txHash string, timeout time.Duration) (*ethtypes.Receipt, error)
}

var _ ChainBackend = (*chain.Client)(nil)

// TradeResult is the in-memory mirror of the persisted trade record returned
// to the caller.
type TradeResult struct {
	TradeID       string
	Mode          domain.TradeMode
	Status        domain.TradeStatus
	TxHash        string
	PriceResponse map[string]any
	QuoteResponse map[string]any
	ErrorMessage  string
}

// Options tune live execution behavior.
type Options struct {
	WaitForReceipt bool
	ReceiptTimeout time.Duration
}

// Service executes swaps through the 0x allowance-holder flow. Simulation
// only prices; live execution handles allowance, quote, signing, submission,
// and receipt confirmation, persisting a trade record either way.
type Service struct {
	swapAPI SwapAPI
	backend ChainBackend
	signer  *chain.Signer
	trades  domain.ExecutedTradeStore
	opts    Options
	logger  *slog.Logger
}

// NewService creates a trading service. backend and signer may be nil, in
// which case only SimulateSwap works.
func NewService(swapAPI SwapAPI, backend ChainBackend, signer *chain.Signer, trades domain.ExecutedTradeStore, opts Options, logger *slog.Logger) *Service {
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 10 * time.Minute
	}
	return &Service{
		swapAPI: swapAPI,
		backend: backend,
		signer:  signer,
		trades:  trades,
		opts:    opts,
		logger:  logger.With(slog.String("component", "trading")),
	}
}

// SimulateSwap prices a swap without touching the chain and persists a
// COMPLETED simulation record.
func (s *Service) SimulateSwap(ctx context.Context, req SwapRequest) (*TradeResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	sc, err := s.prepareContext(ctx, &req)
	if err != nil {
		return nil, err
	}

	priceResp, err := s.swapAPI.GetPrice(ctx, s.swapParams(&req, sc))
	if err != nil {
		return nil, fmt.Errorf("trading: fetch price: %w", err)
	}

	fee, err := s.applyIntegratorFee(ctx, &req, sc, priceResp.BuyAmount)
	if err != nil {
		return nil, err
	}

	record := s.buildRecord(&req, sc, domain.ModeSimulation, domain.TradeCompleted)
	s.fillQuoteFields(&record, sc, fee, priceResp)
	record.TxPayload = map[string]any{"price_response": priceResp.Raw}

	if err := s.trades.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("trading: persist simulation record: %w", err)
	}

	s.logger.InfoContext(ctx, "swap simulated",
		slog.String("trade_id", record.ID),
		slog.String("sell", record.SellTokenSymbol),
		slog.String("buy", record.BuyTokenSymbol),
		slog.String("buy_amount", record.BuyAmountDecimal),
	)

	return &TradeResult{
		TradeID:       record.ID,
		Mode:          domain.ModeSimulation,
		Status:        domain.TradeCompleted,
		PriceResponse: priceResp.Raw,
	}, nil
}

// ExecuteLiveSwap runs the full live flow. Failures before the PENDING record
// is written surface as errors; failures after it are captured in the record
// and the returned result, never propagated, so a half-executed trade always
// leaves an auditable row.
func (s *Service) ExecuteLiveSwap(ctx context.Context, req SwapRequest) (*TradeResult, error) {
	if s.backend == nil || s.signer == nil {
		return nil, fmt.Errorf("trading: live execution requires a chain backend and signer: %w", domain.ErrChainNotConfigured)
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	sc, err := s.prepareContext(ctx, &req)
	if err != nil {
		return nil, err
	}

	priceResp, err := s.swapAPI.GetPrice(ctx, s.swapParams(&req, sc))
	if err != nil {
		return nil, fmt.Errorf("trading: fetch price: %w", err)
	}

	fee, err := s.applyIntegratorFee(ctx, &req, sc, priceResp.BuyAmount)
	if err != nil {
		return nil, err
	}

	record := s.buildRecord(&req, sc, domain.ModeLive, domain.TradePending)
	s.fillQuoteFields(&record, sc, fee, priceResp)
	record.TxPayload = map[string]any{"price_response": priceResp.Raw}
	if err := s.trades.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("trading: persist pending record: %w", err)
	}

	// Everything past this point updates the record instead of failing the
	// call.
	quoteResp := s.executeOnChain(ctx, &req, sc, &record, fee)

	record.UpdatedAt = time.Now().UTC()
	if err := s.trades.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("trading: update trade record %s: %w", record.ID, err)
	}

	result := &TradeResult{
		TradeID:       record.ID,
		Mode:          domain.ModeLive,
		Status:        record.Status,
		TxHash:        record.TxHash,
		PriceResponse: priceResp.Raw,
		ErrorMessage:  record.ErrorMessage,
	}
	if quoteResp != nil {
		result.QuoteResponse = quoteResp.Raw
	}
	return result, nil
}

// executeOnChain drives allowance, quote, submission, and confirmation,
// mutating the record to its final state.
func (s *Service) executeOnChain(ctx context.Context, req *SwapRequest, sc *swapContext, record *domain.ExecutedTrade, priceFee feeResult) *zeroex.SwapResponse {
	fail := func(err error) {
		record.Status = domain.TradeFailed
		record.ErrorMessage = err.Error()
		s.logger.WarnContext(ctx, "live swap failed",
			slog.String("trade_id", record.ID),
			slog.String("error", err.Error()),
		)
	}

	if spender := record.AllowanceTarget; spender != "" {
		allowanceTxHash, err := s.ensureAllowance(ctx, sc, spender)
		if err != nil {
			fail(fmt.Errorf("ensure allowance: %w", err))
			return nil
		}
		if allowanceTxHash != "" {
			record.TxPayload["allowance_tx_hash"] = allowanceTxHash
		}
	}

	quoteResp, err := s.swapAPI.GetQuote(ctx, s.swapParams(req, sc))
	if err != nil {
		fail(fmt.Errorf("fetch quote: %w", err))
		return nil
	}
	record.TxPayload["quote_transaction"] = quoteResp.Raw["transaction"]

	buyAmountRaw := quoteResp.BuyAmount
	if buyAmountRaw == "" {
		buyAmountRaw = record.BuyAmountRaw
	}
	fee, err := s.applyIntegratorFee(ctx, req, sc, buyAmountRaw)
	if err != nil {
		fail(err)
		return quoteResp
	}
	if !fee.applied && priceFee.applied {
		fee.feeUSD = priceFee.feeUSD
		fee.applied = true
	}
	s.fillQuoteFields(record, sc, fee, quoteResp)

	txReq, err := buildTxRequest(quoteResp.Transaction)
	if err != nil {
		fail(err)
		return quoteResp
	}

	txHash, err := s.backend.SendTransaction(ctx, s.signer, txReq)
	if err != nil {
		fail(fmt.Errorf("send transaction: %w", err))
		return quoteResp
	}
	record.TxHash = txHash
	record.Status = domain.TradeSubmitted

	if !s.opts.WaitForReceipt {
		return quoteResp
	}

	receipt, err := s.backend.WaitReceipt(ctx, txHash, s.opts.ReceiptTimeout)
	if err != nil {
		fail(fmt.Errorf("wait for receipt: %w", err))
		return quoteResp
	}
	record.TxPayload["receipt"] = map[string]any{
		"blockNumber": receipt.BlockNumber.String(),
		"status":      receipt.Status,
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		record.Status = domain.TradeCompleted
	} else {
		record.Status = domain.TradeFailed
		record.ErrorMessage = "transaction reverted on-chain"
	}
	return quoteResp
}

// ensureAllowance approves the spender for the sell amount when the current
// allowance is insufficient. Returns the approval tx hash, or empty when no
// approval was needed.
func (s *Service) ensureAllowance(ctx context.Context, sc *swapContext, spender string) (string, error) {
	amount, ok := new(big.Int).SetString(sc.sellAmountRaw, 10)
	if !ok {
		return "", fmt.Errorf("trading: parse sell amount %q", sc.sellAmountRaw)
	}

	token := common.HexToAddress(sc.sellTokenAddress)
	owner := s.signer.Address()
	spenderAddr := common.HexToAddress(spender)

	current, err := s.backend.Allowance(ctx, token, owner, spenderAddr)
	if err != nil {
		return "", err
	}
	if current.Cmp(amount) >= 0 {
		return "", nil
	}
	return s.backend.Approve(ctx, s.signer, token, spenderAddr, amount)
}

func (s *Service) swapParams(req *SwapRequest, sc *swapContext) zeroex.SwapParams {
	return zeroex.SwapParams{
		ChainID:     req.ChainID,
		SellToken:   sc.sellTokenAddress,
		BuyToken:    sc.buyTokenAddress,
		SellAmount:  sc.sellAmountRaw,
		Taker:       req.TakerAddress,
		SlippageBps: req.SlippageBps,
	}
}

// buildRecord assembles the invariant fields of a trade record.
func (s *Service) buildRecord(req *SwapRequest, sc *swapContext, mode domain.TradeMode, status domain.TradeStatus) domain.ExecutedTrade {
	now := time.Now().UTC()

	sellSymbol := sc.baseToken.Symbol
	buySymbol := sc.quoteTokenSymbol
	if req.Direction == QuoteToBase {
		sellSymbol, buySymbol = buySymbol, sellSymbol
	}

	return domain.ExecutedTrade{
		ID:                uuid.New().String(),
		Mode:              mode,
		Status:            status,
		ChainID:           req.ChainID,
		TakerAddress:      req.TakerAddress,
		SellTokenAddress:  strings.ToLower(sc.sellTokenAddress),
		SellTokenSymbol:   sellSymbol,
		BuyTokenAddress:   strings.ToLower(sc.buyTokenAddress),
		BuyTokenSymbol:    buySymbol,
		SellAmountRaw:     sc.sellAmountRaw,
		SellAmountDecimal: sc.sellAmountDecimal.String(),
		SlippageBps:       req.SlippageBps,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// fillQuoteFields overlays the fields derived from one price or quote
// response onto the record.
func (s *Service) fillQuoteFields(record *domain.ExecutedTrade, sc *swapContext, fee feeResult, resp *zeroex.SwapResponse) {
	record.BuyAmountRaw = fee.buyAmountRaw
	if sc.buyDecimalsKnown && fee.buyAmountRaw != "" {
		record.BuyAmountDecimal = fee.buyAmountDecimal.String()
		if sc.sellAmountDecimal.Sign() > 0 {
			record.Price = fee.buyAmountDecimal.Div(sc.sellAmountDecimal).String()
		}
	}
	if fee.applied {
		record.IntegratorFeeUSD = fee.feeUSD.String()
	}
	if target := resp.AllowanceSpender(); target != "" {
		record.AllowanceTarget = target
	}
	if resp.Zid != "" {
		record.QuoteID = resp.Zid
	}
}

// buildTxRequest converts a quote's transaction envelope into a signable
// request. Gas and gas price from the quote are honored when parseable.
func buildTxRequest(tx *zeroex.Transaction) (chain.TxRequest, error) {
	if tx == nil || tx.To == "" {
		return chain.TxRequest{}, fmt.Errorf("trading: quote carries no transaction")
	}

	req := chain.TxRequest{
		To:   common.HexToAddress(tx.To),
		Data: common.FromHex(tx.Data),
	}
	if tx.Gas != "" {
		if gas, err := strconv.ParseUint(tx.Gas, 10, 64); err == nil {
			req.Gas = gas
		}
	}
	if tx.GasPrice != "" {
		if gasPrice, ok := new(big.Int).SetString(tx.GasPrice, 10); ok {
			req.GasPrice = gasPrice
		}
	}
	if tx.Value != "" {
		if value, ok := new(big.Int).SetString(tx.Value, 10); ok {
			req.Value = value
		}
	}
	return req, nil
}
