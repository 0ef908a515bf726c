package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNormalization      = errors.New("normalization failed")
	ErrScoring            = errors.New("scoring failed")
	ErrNoPriceQuote       = errors.New("no price quote available")
	ErrChainNotConfigured = errors.New("chain rpc not configured")
	ErrInvalidSwapRequest = errors.New("invalid swap request")
	ErrSigningFailed      = errors.New("signing failed")
	ErrContextDone        = errors.New("context cancelled")
	ErrLockHeld           = errors.New("lock already held")
)
