// Package service holds the read-model and analytics services built on top
// of the stores: wallet alpha scoring, the signal overview, trade candidate
// ranking, and the paper-trade simulator.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wycheng/smartflow/internal/domain"
)

// WalletAlphaService computes a wallet's alpha score: the fraction of its
// recent events that carried positive notional. Crude, but it separates
// wallets that actually move size from addresses that merely appear in feeds.
type WalletAlphaService struct {
	wallets domain.WalletStore
	events  domain.EventStore
}

// NewWalletAlphaService creates the service.
func NewWalletAlphaService(wallets domain.WalletStore, events domain.EventStore) *WalletAlphaService {
	return &WalletAlphaService{wallets: wallets, events: events}
}

// ScoreWallet returns the alpha score for an address, rounded to four decimal
// places. Unknown wallets and wallets without history score 0.
func (s *WalletAlphaService) ScoreWallet(ctx context.Context, address string) (float64, error) {
	if _, err := s.wallets.Get(ctx, address); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("service: lookup wallet %s: %w", address, err)
	}

	history, err := s.events.ListByWallet(ctx, address, 100)
	if err != nil {
		return 0, fmt.Errorf("service: wallet history %s: %w", address, err)
	}
	if len(history) == 0 {
		return 0, nil
	}

	positive := 0
	for _, event := range history {
		if event.Features.USDNotional > 0 {
			positive++
		}
	}

	score := float64(positive) / float64(len(history))
	return math.Round(score*10000) / 10000, nil
}
