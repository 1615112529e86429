// Package cache provides the redis-backed latest-price cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cryptolens-backend/internal/domain"
)

// priceTTL bounds staleness: a price older than two scan cycles is useless.
const priceTTL = 15 * time.Minute

// PriceCache implements domain.PriceCache on redis.
type PriceCache struct {
	rdb *redis.Client
}

func NewPriceCache(rdb *redis.Client) *PriceCache {
	return &PriceCache{rdb: rdb}
}

func priceKey(symbol string) string { return "price:" + symbol }

func (c *PriceCache) SetPrice(ctx context.Context, symbol string, price float64) error {
	err := c.rdb.Set(ctx, priceKey(symbol), strconv.FormatFloat(price, 'f', -1, 64), priceTTL).Err()
	if err != nil {
		return fmt.Errorf("cache: set price %s: %w", symbol, err)
	}
	return nil
}

func (c *PriceCache) Price(ctx context.Context, symbol string) (float64, error) {
	raw, err := c.rdb.Get(ctx, priceKey(symbol)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("cache: get price %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: parse price %s: %w", symbol, err)
	}
	return price, nil
}
