package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wycheng/smartflow/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each token's
// spot price is stored as a hash at key "price:{chain}:{address}" with fields
// "price" and "ts" (Unix nanosecond timestamp). Entries expire after the
// configured TTL so the simulator never acts on stale quotes.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.PriceCache = (*PriceCache)(nil)

// NewPriceCache creates a PriceCache backed by the given Client. A zero ttl
// disables expiry.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(key string) string {
	return "price:" + key
}

// SetPrice stores the latest price and observation time for a token key.
func (pc *PriceCache) SetPrice(ctx context.Context, key string, price float64, ts time.Time) error {
	rk := priceKey(key)
	fields := map[string]any{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, rk, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", key, err)
	}
	if pc.ttl > 0 {
		if err := pc.rdb.Expire(ctx, rk, pc.ttl).Err(); err != nil {
			return fmt.Errorf("redis: expire price %s: %w", key, err)
		}
	}
	return nil
}

// GetPrice retrieves the latest price and observation time for a token key.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (pc *PriceCache) GetPrice(ctx context.Context, key string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(key)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", key, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", key, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest prices for multiple token keys using a
// pipeline. Keys that are missing or expired are omitted from the result map.
func (pc *PriceCache) GetPrices(ctx context.Context, keys []string) (map[string]float64, error) {
	if len(keys) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.HGetAll(ctx, priceKey(key))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]float64, len(keys))
	for key, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		priceStr, ok := vals["price"]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		result[key] = price
	}

	return result, nil
}
