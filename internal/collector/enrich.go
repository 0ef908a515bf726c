package collector

import (
	"context"
	"log/slog"

	"github.com/wycheng/smartflow/internal/domain"
)

// Enricher attaches wallet labels and alpha scores to normalized events
// before the merge step.
type Enricher struct {
	client       AnalyticsClient
	alpha        AlphaScorer
	enableLabels bool
	logger       *slog.Logger
}

// NewEnricher creates an Enricher. Label lookups can be disabled to save
// upstream quota; alpha scoring always runs.
func NewEnricher(client AnalyticsClient, alpha AlphaScorer, enableLabels bool, logger *slog.Logger) *Enricher {
	return &Enricher{
		client:       client,
		alpha:        alpha,
		enableLabels: enableLabels,
		logger:       logger.With(slog.String("component", "enricher")),
	}
}

// Enrich mutates the wallets of the given events in place. Label lookup
// failures degrade to "no labels for this address" rather than aborting the
// run; alpha scoring failures are treated the same way.
func (e *Enricher) Enrich(ctx context.Context, events []domain.Event) []domain.Event {
	labelMap := map[string][]string{}
	if e.enableLabels {
		labelMap = e.fetchLabels(ctx, events)
	}

	for i := range events {
		wallet := events[i].Wallet
		if wallet == nil || wallet.Address == "" {
			continue
		}
		if labels, ok := labelMap[wallet.Address]; ok {
			wallet.Labels = labels
		}
		score, err := e.alpha.ScoreWallet(ctx, wallet.Address)
		if err != nil {
			e.logger.WarnContext(ctx, "wallet alpha lookup failed",
				slog.String("address", wallet.Address),
				slog.String("error", err.Error()),
			)
			continue
		}
		wallet.AlphaScore = score
	}
	return events
}

// fetchLabels resolves provider labels for every distinct wallet address.
// Any failure abandons the whole label map for this run.
func (e *Enricher) fetchLabels(ctx context.Context, events []domain.Event) map[string][]string {
	pairs := map[string]string{}
	for _, event := range events {
		if event.Wallet == nil || event.Wallet.Address == "" {
			continue
		}
		chain := event.Chain
		if chain == "" {
			chain = event.Token.Chain
		}
		pairs[event.Wallet.Address] = chain
	}

	results := make(map[string][]string, len(pairs))
	for address, chain := range pairs {
		if chain == "" {
			continue
		}
		records, err := e.client.FetchAddressLabels(ctx, chain, address)
		if err != nil {
			e.logger.WarnContext(ctx, "address label lookup failed, continuing without labels",
				slog.String("address", address),
				slog.String("chain", chain),
				slog.String("error", err.Error()),
			)
			return map[string][]string{}
		}
		var labels []string
		for _, record := range records {
			if record.Label != "" {
				labels = append(labels, record.Label)
			}
		}
		results[address] = labels
	}
	return results
}
