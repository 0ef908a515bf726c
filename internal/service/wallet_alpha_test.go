package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycheng/smartflow/internal/domain"
	"github.com/wycheng/smartflow/internal/store/memory"
)

func walletEvent(wallet string, notional float64) domain.Event {
	return domain.Event{
		Source:     domain.SourceDexTrades,
		Token:      domain.Token{Symbol: "AAA", Address: "0x1", Chain: "ethereum"},
		Wallet:     &domain.Wallet{Address: wallet},
		OccurredAt: time.Now().UTC(),
		Features:   domain.EventFeature{USDNotional: notional},
	}
}

func TestWalletAlphaScoresPositiveFraction(t *testing.T) {
	ctx := context.Background()
	wallets := memory.NewWalletStore()
	events := memory.NewEventStore()
	svc := NewWalletAlphaService(wallets, events)

	_, err := wallets.Upsert(ctx, domain.Wallet{Address: "0xw1"})
	require.NoError(t, err)

	// Three positive out of four events.
	require.NoError(t, events.Insert(ctx, walletEvent("0xw1", 100)))
	require.NoError(t, events.Insert(ctx, walletEvent("0xw1", 200)))
	require.NoError(t, events.Insert(ctx, walletEvent("0xw1", 0)))
	require.NoError(t, events.Insert(ctx, walletEvent("0xw1", 50)))

	score, err := svc.ScoreWallet(ctx, "0xw1")
	require.NoError(t, err)
	assert.Equal(t, 0.75, score)
}

func TestWalletAlphaUnknownWalletScoresZero(t *testing.T) {
	ctx := context.Background()
	svc := NewWalletAlphaService(memory.NewWalletStore(), memory.NewEventStore())

	score, err := svc.ScoreWallet(ctx, "0xunknown")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestWalletAlphaNoHistoryScoresZero(t *testing.T) {
	ctx := context.Background()
	wallets := memory.NewWalletStore()
	svc := NewWalletAlphaService(wallets, memory.NewEventStore())

	_, err := wallets.Upsert(ctx, domain.Wallet{Address: "0xw1"})
	require.NoError(t, err)

	score, err := svc.ScoreWallet(ctx, "0xw1")
	require.NoError(t, err)
	assert.Zero(t, score)
}
