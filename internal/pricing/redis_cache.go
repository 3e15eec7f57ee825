package pricing

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisPriceCache backs the price cache with Redis.
type RedisPriceCache struct {
	client *redis.Client
}

// NewRedisPriceCache constructs a cache client.
func NewRedisPriceCache(addr, password string, db int) *RedisPriceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisPriceCache{client: client}
}

// Ping verifies connectivity.
func (c *RedisPriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisPriceCache) Close() error {
	return c.client.Close()
}

// Get loads a cached price.
func (c *RedisPriceCache) Get(ctx context.Context, key string) (float64, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

// Set stores a price with a TTL.
func (c *RedisPriceCache) Set(ctx context.Context, key string, price float64, ttl time.Duration) error {
	return c.client.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), ttl).Err()
}
