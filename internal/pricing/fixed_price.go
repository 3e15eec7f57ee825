package pricing

import (
	"context"
	"errors"
	"time"
)

// FixedPriceProvider returns configured prices per fuel type. Used in tests
// and as a bootstrap before the fuel price table is populated.
type FixedPriceProvider struct {
	prices map[string]float64
}

// NewFixedPriceProvider constructs the provider.
func NewFixedPriceProvider(prices map[string]float64) (*FixedPriceProvider, error) {
	for fuelType, price := range prices {
		if price < 0 {
			return nil, errors.New("price provider: negative price for " + fuelType)
		}
	}
	copied := make(map[string]float64, len(prices))
	for fuelType, price := range prices {
		copied[fuelType] = price
	}
	return &FixedPriceProvider{prices: copied}, nil
}

// EffectivePrice returns the configured price for the fuel type.
func (p *FixedPriceProvider) EffectivePrice(ctx context.Context, stationID, fuelType string, at time.Time) (float64, error) {
	_ = ctx
	_ = stationID
	_ = at
	price, ok := p.prices[fuelType]
	if !ok {
		return 0, ErrMissingPrice
	}
	return price, nil
}
