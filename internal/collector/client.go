package collector

import (
	"context"

	"github.com/wycheng/smartflow/internal/domain"
)

// AnalyticsClient is the upstream analytics API surface the pipeline consumes.
// Two implementations exist: the real HTTP client and a deterministic fixture
// client for offline runs. Selecting between them happens at wiring time;
// nothing inside the pipeline branches on which one it got.
type AnalyticsClient interface {
	FetchDexTrades(ctx context.Context, filters map[string]any) (map[string]any, error)
	FetchTokenScreener(ctx context.Context, filters map[string]any) (map[string]any, error)
	FetchNetflows(ctx context.Context, filters map[string]any) (map[string]any, error)
	FetchAddressLabels(ctx context.Context, chain, address string) ([]domain.AddressLabel, error)
}

// AlphaScorer computes a wallet's historical hit rate.
type AlphaScorer interface {
	ScoreWallet(ctx context.Context, address string) (float64, error)
}
