package pricing

import (
	"context"
	"fmt"
	"time"
)

// PriceCache holds resolved prices for a short TTL.
type PriceCache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, price float64, ttl time.Duration) error
}

// NoopPriceCache disables caching.
type NoopPriceCache struct{}

func (NoopPriceCache) Get(_ context.Context, _ string) (float64, bool, error) {
	return 0, false, nil
}

func (NoopPriceCache) Set(_ context.Context, _ string, _ float64, _ time.Duration) error {
	return nil
}

// CachedProvider decorates a Provider with a cache. Lookups are bucketed to
// the minute so a price change becomes visible within one bucket.
type CachedProvider struct {
	inner Provider
	cache PriceCache
	ttl   time.Duration
}

// NewCachedProvider constructs the decorator.
func NewCachedProvider(inner Provider, cache PriceCache, ttl time.Duration) *CachedProvider {
	if cache == nil {
		cache = NoopPriceCache{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl}
}

// EffectivePrice resolves through the cache. Cache failures fall through to
// the inner provider; a missing price is never cached.
func (p *CachedProvider) EffectivePrice(ctx context.Context, stationID, fuelType string, at time.Time) (float64, error) {
	key := cacheKey(stationID, fuelType, at)
	if price, ok, err := p.cache.Get(ctx, key); err == nil && ok {
		return price, nil
	}
	price, err := p.inner.EffectivePrice(ctx, stationID, fuelType, at)
	if err != nil {
		return 0, err
	}
	_ = p.cache.Set(ctx, key, price, p.ttl)
	return price, nil
}

func cacheKey(stationID, fuelType string, at time.Time) string {
	return fmt.Sprintf("fuelsync:price:%s:%s:%s", stationID, fuelType, at.UTC().Format("200601021504"))
}
