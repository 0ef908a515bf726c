package domain

import (
	"context"
	"time"
)

// PriceCache caches token spot prices keyed by "{chain}:{address}".
type PriceCache interface {
	SetPrice(ctx context.Context, key string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, key string) (float64, time.Time, error)
	GetPrices(ctx context.Context, keys []string) (map[string]float64, error)
}

// LockManager provides distributed locks so overlapping scheduled pipeline
// runs are skipped rather than stacked. Acquire returns ErrLockHeld when the
// lock is already taken; the returned unlock function is safe to call more
// than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
