package report

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signal(symbol, address, chain string, score float64, sigType domain.SignalType, reasons []string, wallets ...string) domain.Signal {
	sig := domain.Signal{
		Token: domain.Token{Symbol: symbol, Address: address, Chain: chain},
		Score: score,
		Type:  sigType,
	}
	for _, code := range reasons {
		sig.Reasons = append(sig.Reasons, domain.SignalReason{Code: code})
	}
	for _, w := range wallets {
		sig.Wallets = append(sig.Wallets, domain.Wallet{Address: w})
	}
	return sig
}

func TestBuildGroupsSignalsByToken(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	signals := []domain.Signal{
		signal("AAA", "0x1", "ethereum", 0.4, domain.SignalBuy, []string{"smart_buy", "label"}, "0xw1"),
		signal("AAA", "0x1", "ethereum", 0.9, domain.SignalBuy, []string{"netflow_buy", "smart_buy"}, "0xw2", "0xw3"),
		signal("BBB", "0x2", "ethereum", 0.6, domain.SignalBuy, []string{"smart_buy"}, "0xw4"),
		signal("CCC", "0x3", "ethereum", 0.7, domain.SignalSell, []string{"netflow_sell"}),
	}

	artifact := Build("run-1", now, signals, nil, service.CandidateSet{})

	assert.Equal(t, "run-1", artifact.RunID)
	assert.Equal(t, now, artifact.GeneratedAt)

	require.Len(t, artifact.Buy, 2)
	// Groups are ordered by their best score.
	best := artifact.Buy[0]
	assert.Equal(t, "AAA", best.TokenSymbol)
	assert.Equal(t, 0.9, best.Score)
	assert.Equal(t, 2, best.Count)
	// Reasons come from the best signal, sorted and deduplicated.
	assert.Equal(t, []string{"netflow_buy", "smart_buy"}, best.Reasons)
	// Wallets ranked by the best signal score each appeared in.
	assert.Equal(t, []string{"0xw2", "0xw3", "0xw1"}, best.TopWallets)

	assert.Equal(t, "BBB", artifact.Buy[1].TokenSymbol)

	require.Len(t, artifact.Sell, 1)
	assert.Equal(t, "CCC", artifact.Sell[0].TokenSymbol)
	assert.Equal(t, []string{"netflow_sell"}, artifact.Sell[0].Reasons)
}

func TestBuildCapsTopWallets(t *testing.T) {
	signals := []domain.Signal{
		signal("AAA", "0x1", "ethereum", 0.5, domain.SignalBuy, nil, "0xw1", "0xw2", "0xw3", "0xw4", "0xw5"),
	}

	artifact := Build("run-1", time.Now().UTC(), signals, nil, service.CandidateSet{})
	require.Len(t, artifact.Buy, 1)
	assert.Len(t, artifact.Buy[0].TopWallets, topWalletCount)
}

type capturingBlob struct {
	key         string
	contentType string
	data        []byte
}

func (c *capturingBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	c.key = path
	c.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.data = b
	return nil
}

func TestGeneratorWriteProducesLatestAndHistory(t *testing.T) {
	dir := t.TempDir()
	blob := &capturingBlob{}
	gen := NewGenerator(dir, blob, testLogger())

	generatedAt := time.Date(2026, 8, 23, 9, 30, 15, 0, time.UTC)
	artifact := Build("run-xyz", generatedAt, []domain.Signal{
		signal("AAA", "0x1", "ethereum", 0.8, domain.SignalBuy, []string{"smart_buy"}),
	}, nil, service.CandidateSet{})

	latest, err := gen.Write(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "latest.json"), latest)

	data, err := os.ReadFile(latest)
	require.NoError(t, err)
	var decoded Artifact
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-xyz", decoded.RunID)
	require.Len(t, decoded.Buy, 1)
	assert.Equal(t, "AAA", decoded.Buy[0].TokenSymbol)

	history := filepath.Join(dir, "history", "run_20260823T093015Z.json")
	historyData, err := os.ReadFile(history)
	require.NoError(t, err)
	assert.Equal(t, data, historyData)

	assert.Equal(t, "reports/2026/08/23/run_20260823T093015Z.json", blob.key)
	assert.Equal(t, "application/json", blob.contentType)
	assert.Equal(t, data, blob.data)
}

func TestGeneratorWriteWithoutBlobSkipsArchive(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, nil, testLogger())

	artifact := Build("run-1", time.Now().UTC(), nil, nil, service.CandidateSet{})
	latest, err := gen.Write(context.Background(), artifact)
	require.NoError(t, err)
	assert.FileExists(t, latest)
}
