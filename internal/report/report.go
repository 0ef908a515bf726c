// Package report renders the per-run JSON artifact (signal groups, token
// overview, trade candidates), writes it locally, and optionally archives it
// to object storage.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/service"
)

// topWalletCount caps how many wallet addresses a signal group lists.
const topWalletCount = 3

// SignalGroup is the report view of all signals for one (symbol, address)
// pair. Score and Reasons come from the group's best signal.
type SignalGroup struct {
	TokenSymbol  string   `json:"token_symbol"`
	TokenAddress string   `json:"token_address"`
	Chain        string   `json:"chain"`
	Score        float64  `json:"score"`
	Reasons      []string `json:"reasons"`
	Count        int      `json:"count"`
	TopWallets   []string `json:"top_wallets"`
}

// Artifact is the complete per-run report document.
type Artifact struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Buy         []SignalGroup           `json:"buy"`
	Sell        []SignalGroup           `json:"sell"`
	Overview    []service.TokenOverview `json:"overview"`
	Candidates  service.CandidateSet    `json:"candidates"`
}

// Generator builds and persists run artifacts. blob may be nil to disable
// the S3 archive.
type Generator struct {
	dir    string
	blob   domain.BlobWriter
	logger *slog.Logger
}

// NewGenerator creates a Generator writing into dir.
func NewGenerator(dir string, blob domain.BlobWriter, logger *slog.Logger) *Generator {
	return &Generator{
		dir:    dir,
		blob:   blob,
		logger: logger.With(slog.String("component", "report")),
	}
}

// Build assembles the artifact for one run.
func Build(runID string, generatedAt time.Time, signals []domain.Signal, overview []service.TokenOverview, candidates service.CandidateSet) Artifact {
	var buys, sells []domain.Signal
	for _, sig := range signals {
		if sig.Type == domain.SignalSell {
			sells = append(sells, sig)
		} else {
			buys = append(buys, sig)
		}
	}
	return Artifact{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Buy:         groupSignals(buys),
		Sell:        groupSignals(sells),
		Overview:    overview,
		Candidates:  candidates,
	}
}

// Write persists the artifact as latest.json plus a timestamped history copy,
// then archives the history copy to object storage when configured. Archive
// failures are logged, not returned; the local artifact is the primary copy.
func (g *Generator) Write(ctx context.Context, artifact Artifact) (string, error) {
	if err := os.MkdirAll(filepath.Join(g.dir, "history"), 0o755); err != nil {
		return "", fmt.Errorf("report: create report dir: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: encode artifact: %w", err)
	}

	latest := filepath.Join(g.dir, "latest.json")
	if err := os.WriteFile(latest, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", latest, err)
	}

	name := artifact.GeneratedAt.UTC().Format("run_20060102T150405Z") + ".json"
	history := filepath.Join(g.dir, "history", name)
	if err := os.WriteFile(history, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", history, err)
	}

	if g.blob != nil {
		key := artifact.GeneratedAt.UTC().Format("reports/2006/01/02/") + name
		if err := g.blob.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
			g.logger.WarnContext(ctx, "report archive failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		} else {
			g.logger.InfoContext(ctx, "report archived", slog.String("key", key))
		}
	}

	return latest, nil
}

// groupSignals buckets signals by (symbol, address) and orders the groups by
// their best score, descending.
func groupSignals(signals []domain.Signal) []SignalGroup {
	type groupKey struct {
		Symbol  string
		Address string
	}

	grouped := make(map[groupKey][]domain.Signal)
	var order []groupKey
	for _, sig := range signals {
		key := groupKey{Symbol: sig.Token.Symbol, Address: sig.Token.Address}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], sig)
	}

	groups := make([]SignalGroup, 0, len(order))
	for _, key := range order {
		members := grouped[key]
		best := members[0]
		for _, sig := range members[1:] {
			if sig.Score > best.Score {
				best = sig
			}
		}

		reasonSet := make(map[string]bool)
		for _, code := range best.ReasonCodes() {
			reasonSet[code] = true
		}
		reasons := make([]string, 0, len(reasonSet))
		for code := range reasonSet {
			reasons = append(reasons, code)
		}
		sort.Strings(reasons)

		groups = append(groups, SignalGroup{
			TokenSymbol:  key.Symbol,
			TokenAddress: key.Address,
			Chain:        best.Token.Chain,
			Score:        best.Score,
			Reasons:      reasons,
			Count:        len(members),
			TopWallets:   topWallets(members),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Score > groups[j].Score
	})
	return groups
}

// topWallets returns the group's wallet addresses ranked by the best signal
// score each wallet appeared in.
func topWallets(signals []domain.Signal) []string {
	scores := make(map[string]float64)
	var order []string
	for _, sig := range signals {
		for _, w := range sig.Wallets {
			if w.Address == "" {
				continue
			}
			if _, ok := scores[w.Address]; !ok {
				order = append(order, w.Address)
			}
			if sig.Score > scores[w.Address] {
				scores[w.Address] = sig.Score
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	if len(order) > topWalletCount {
		order = order[:topWalletCount]
	}
	return order
}
