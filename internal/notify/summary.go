package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wycheng/smartflow/internal/domain"
)

// maxSummarySignals caps how many signals a run summary lists.
const maxSummarySignals = 10

// FormatRunSummary renders a pipeline run and its signals into a short
// message suitable for Telegram or Discord. Signals are listed best first.
func FormatRunSummary(run domain.PipelineRun, signals []domain.Signal) (title, message string) {
	title = fmt.Sprintf("Pipeline run %s", shortID(run.ID))

	var b strings.Builder
	fmt.Fprintf(&b, "events: %d, signals: %d, took %s\n",
		run.EventCount, run.SignalCount,
		run.FinishedAt.Sub(run.StartedAt).Round(1e9),
	)
	if run.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", run.Error)
	}

	sorted := make([]domain.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > maxSummarySignals {
		sorted = sorted[:maxSummarySignals]
	}

	for _, sig := range sorted {
		fmt.Fprintf(&b, "%s %s/%s score %.3f [%s]\n",
			strings.ToUpper(string(sig.Type)),
			sig.Token.Symbol, sig.Token.Chain,
			sig.Score,
			strings.Join(sig.ReasonCodes(), ","),
		)
	}

	return title, strings.TrimRight(b.String(), "\n")
}

// FormatTradeResult renders an executed trade record into a short message.
func FormatTradeResult(trade domain.ExecutedTrade) (title, message string) {
	title = fmt.Sprintf("Trade %s %s", trade.Mode, trade.Status)

	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s on chain %d\n",
		trade.SellTokenSymbol, trade.BuyTokenSymbol, trade.ChainID)
	if trade.SellAmountDecimal != "" {
		fmt.Fprintf(&b, "sold %s", trade.SellAmountDecimal)
		if trade.BuyAmountDecimal != "" {
			fmt.Fprintf(&b, ", received %s", trade.BuyAmountDecimal)
		}
		b.WriteString("\n")
	}
	if trade.TxHash != "" {
		fmt.Fprintf(&b, "tx: %s\n", trade.TxHash)
	}
	if trade.ErrorMessage != "" {
		fmt.Fprintf(&b, "error: %s\n", trade.ErrorMessage)
	}

	return title, strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
