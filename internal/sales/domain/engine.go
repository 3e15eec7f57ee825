package sales

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"fuelsync/internal/pricing"
	readings "fuelsync/internal/readings/domain"
)

// ResetPolicy decides how a negative meter delta is handled. The meaning of
// a negative delta is ambiguous (meter replacement vs bad entry), so the
// choice is configuration, not code.
type ResetPolicy string

const (
	// ResetZeroBase assumes the meter was zeroed: the post-reset cumulative
	// volume becomes the delta and the sale is flagged for manual review.
	ResetZeroBase ResetPolicy = "zero_base"
	// ResetReject skips the pair and reports a per-nozzle fault.
	ResetReject ResetPolicy = "reject"
)

// NormalizeResetPolicy validates a policy string.
func NormalizeResetPolicy(value string) (ResetPolicy, bool) {
	switch ResetPolicy(value) {
	case ResetZeroBase, ResetReject:
		return ResetPolicy(value), true
	default:
		return "", false
	}
}

// PriceLookup resolves the effective price per litre at an instant.
// pricing.Provider satisfies it; a missing price is pricing.ErrMissingPrice.
type PriceLookup interface {
	EffectivePrice(ctx context.Context, stationID, fuelType string, at time.Time) (float64, error)
}

// Result is the output of one derivation run.
type Result struct {
	Sales  []Sale
	Faults []NozzleFault
}

// Engine converts ordered cumulative readings into discrete sales. It holds
// no mutable state, so one engine may serve concurrent batches; callers
// serialize per nozzle when the same nozzle can appear in two batches.
type Engine struct {
	prices      PriceLookup
	policy      ResetPolicy
	saleIDSpace uuid.UUID
}

// NewEngine constructs an engine.
func NewEngine(prices PriceLookup, policy ResetPolicy) (*Engine, error) {
	if prices == nil {
		return nil, errors.New("sales engine: nil price lookup")
	}
	if _, ok := NormalizeResetPolicy(string(policy)); !ok {
		return nil, ErrUnknownResetPolicy
	}
	return &Engine{
		prices: prices,
		policy: policy,
		// Deterministic sale ids keyed on the source reading keep
		// re-derivation idempotent end to end.
		saleIDSpace: uuid.NewSHA1(uuid.NameSpaceOID, []byte("fuelsync.sale")),
	}, nil
}

// Derive groups the batch by nozzle, orders each group, and emits one sale
// per consecutive reading pair. The first reading in a group is only a
// baseline; callers prepend the stored predecessor when deriving from a
// single new reading. Derivation is a pure function of the sorted sequence
// and the price table: re-running it yields the same sale set.
func (e *Engine) Derive(ctx context.Context, batch []readings.NozzleReading) (Result, error) {
	groups, order := groupByNozzle(batch)

	var result Result
	for _, key := range order {
		group := groups[key]
		sortGroup(group)
		sales, fault, err := e.deriveGroup(ctx, group)
		if err != nil {
			return Result{}, err
		}
		result.Sales = append(result.Sales, sales...)
		if fault != nil {
			result.Faults = append(result.Faults, *fault)
		}
	}
	return result, nil
}

func (e *Engine) deriveGroup(ctx context.Context, group []readings.NozzleReading) ([]Sale, *NozzleFault, error) {
	var sales []Sale
	for i := 1; i < len(group); i++ {
		prev, curr := group[i-1], group[i]
		delta := curr.CumulativeVolume - prev.CumulativeVolume
		reset := false

		if delta < 0 {
			switch e.policy {
			case ResetReject:
				// Halt this nozzle; sales before the reset stand, the
				// readings from the reset on need operator review.
				fault := &NozzleFault{StationID: curr.StationID, Key: curr.Key(), Err: ErrMeterReset}
				return sales, fault, nil
			default: // ResetZeroBase
				delta = curr.CumulativeVolume
				reset = true
			}
		}
		if delta == 0 {
			continue
		}

		price, err := e.prices.EffectivePrice(ctx, curr.StationID, curr.FuelType, curr.RecordedAt)
		if err != nil {
			if errors.Is(err, pricing.ErrMissingPrice) {
				// Halt this nozzle, leave the others untouched.
				fault := &NozzleFault{StationID: curr.StationID, Key: curr.Key(), Err: err}
				return sales, fault, nil
			}
			return nil, nil, err
		}

		sales = append(sales, Sale{
			ID:              e.saleID(curr.ID),
			StationID:       curr.StationID,
			PumpID:          curr.PumpID,
			NozzleID:        curr.NozzleID,
			FuelType:        curr.FuelType,
			DeltaVolume:     delta,
			PricePerLitre:   price,
			TotalAmount:     Round2(delta * price),
			Shift:           ShiftOf(curr.RecordedAt),
			SaleDate:        ClosureDateOf(curr.RecordedAt),
			SourceReadingID: curr.ID,
			ResetDetected:   reset,
		})
	}
	return sales, nil, nil
}

func (e *Engine) saleID(sourceReadingID string) string {
	return uuid.NewSHA1(e.saleIDSpace, []byte(sourceReadingID)).String()
}

func groupByNozzle(batch []readings.NozzleReading) (map[readings.NozzleKey][]readings.NozzleReading, []readings.NozzleKey) {
	groups := make(map[readings.NozzleKey][]readings.NozzleReading)
	var order []readings.NozzleKey
	for _, reading := range batch {
		key := reading.Key()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], reading)
	}
	return groups, order
}

// sortGroup orders by timestamp ascending; on equal timestamps automatic
// entries sort before manual ones, then insertion order is preserved.
func sortGroup(group []readings.NozzleReading) {
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].RecordedAt.Equal(group[j].RecordedAt) {
			return group[i].RecordedAt.Before(group[j].RecordedAt)
		}
		return !group[i].ManualEntry && group[j].ManualEntry
	})
}
