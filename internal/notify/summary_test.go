package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wycheng/smartflow/internal/domain"
)

func TestFormatRunSummary(t *testing.T) {
	started := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	run := domain.PipelineRun{
		ID:          "0123456789abcdef",
		StartedAt:   started,
		FinishedAt:  started.Add(42 * time.Second),
		EventCount:  12,
		SignalCount: 2,
	}
	signals := []domain.Signal{
		{
			Token:   domain.Token{Symbol: "AAA", Chain: "ethereum"},
			Type:    domain.SignalBuy,
			Score:   0.412,
			Reasons: []domain.SignalReason{{Code: "smart_buy"}, {Code: "label"}},
		},
		{
			Token:   domain.Token{Symbol: "BBB", Chain: "base"},
			Type:    domain.SignalSell,
			Score:   0.913,
			Reasons: []domain.SignalReason{{Code: "netflow_sell"}},
		},
	}

	title, message := FormatRunSummary(run, signals)

	assert.Equal(t, "Pipeline run 01234567", title)
	assert.Contains(t, message, "events: 12, signals: 2, took 42s")

	// Signals are listed best first.
	lines := strings.Split(message, "\n")
	assert.Equal(t, "SELL BBB/base score 0.913 [netflow_sell]", lines[1])
	assert.Equal(t, "BUY AAA/ethereum score 0.412 [smart_buy,label]", lines[2])
}

func TestFormatRunSummaryCapsSignalList(t *testing.T) {
	run := domain.PipelineRun{ID: "run"}
	var signals []domain.Signal
	for i := 0; i < maxSummarySignals+5; i++ {
		signals = append(signals, domain.Signal{
			Token: domain.Token{Symbol: fmt.Sprintf("T%02d", i), Chain: "ethereum"},
			Type:  domain.SignalBuy,
			Score: float64(i),
		})
	}

	_, message := FormatRunSummary(run, signals)
	// One header line plus the capped signal list.
	assert.Len(t, strings.Split(message, "\n"), 1+maxSummarySignals)
}

func TestFormatRunSummaryIncludesError(t *testing.T) {
	run := domain.PipelineRun{ID: "run", Error: "fetch failed"}
	_, message := FormatRunSummary(run, nil)
	assert.Contains(t, message, "error: fetch failed")
}

func TestFormatTradeResult(t *testing.T) {
	trade := domain.ExecutedTrade{
		Mode:              domain.ModeLive,
		Status:            domain.TradeCompleted,
		SellTokenSymbol:   "USDC",
		BuyTokenSymbol:    "WETH",
		ChainID:           1,
		SellAmountDecimal: "1000",
		BuyAmountDecimal:  "0.25",
		TxHash:            "0xdeadbeef",
	}

	title, message := FormatTradeResult(trade)
	assert.Contains(t, title, "Trade")
	assert.Contains(t, message, "USDC -> WETH on chain 1")
	assert.Contains(t, message, "sold 1000, received 0.25")
	assert.Contains(t, message, "tx: 0xdeadbeef")
}
