package pricing

import (
	"context"
	"errors"
	"time"
)

// ErrMissingPrice is returned when no effective price exists for a fuel type
// at the requested instant. Derivation reports it per nozzle and continues.
var ErrMissingPrice = errors.New("pricing: no effective price")

// Provider resolves the price per litre effective at an instant: the most
// recent price row with valid_from <= at.
type Provider interface {
	EffectivePrice(ctx context.Context, stationID, fuelType string, at time.Time) (float64, error)
}
