package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"fuelsync/internal/pricing"
	readings "fuelsync/internal/readings/domain"
)

type stubPrices struct {
	prices map[string]float64
}

func (s stubPrices) EffectivePrice(_ context.Context, _, fuelType string, _ time.Time) (float64, error) {
	price, ok := s.prices[fuelType]
	if !ok {
		return 0, pricing.ErrMissingPrice
	}
	return price, nil
}

func testEngine(t *testing.T, policy ResetPolicy) *Engine {
	t.Helper()
	engine, err := NewEngine(stubPrices{prices: map[string]float64{"petrol": 100.0, "diesel": 89.5}}, policy)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func reading(id, pump, nozzle string, volume float64, at time.Time) readings.NozzleReading {
	return readings.NozzleReading{
		ID:               id,
		StationID:        "station-1",
		PumpID:           pump,
		NozzleID:         nozzle,
		FuelType:         "petrol",
		CumulativeVolume: volume,
		RecordedAt:       at,
	}
}

func TestDeriveSimplePair(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result, err := engine.Derive(context.Background(), []readings.NozzleReading{
		reading("r1", "p1", "n1", 1000.0, at),
		reading("r2", "p1", "n1", 1025.5, at.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(result.Sales))
	}
	sale := result.Sales[0]
	if sale.DeltaVolume != 25.5 {
		t.Errorf("delta = %v, want 25.5", sale.DeltaVolume)
	}
	if sale.TotalAmount != 2550.00 {
		t.Errorf("amount = %v, want 2550.00", sale.TotalAmount)
	}
	if sale.SourceReadingID != "r2" {
		t.Errorf("source reading = %q, want r2", sale.SourceReadingID)
	}
	if sale.Shift != ShiftMorning {
		t.Errorf("shift = %q, want morning", sale.Shift)
	}
	if sale.ResetDetected {
		t.Error("unexpected reset flag")
	}
}

func TestDeriveUnorderedBatch(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Out of order input must derive the same sales as ordered input.
	result, err := engine.Derive(context.Background(), []readings.NozzleReading{
		reading("r3", "p1", "n1", 1040.0, at.Add(2*time.Hour)),
		reading("r1", "p1", "n1", 1000.0, at),
		reading("r2", "p1", "n1", 1025.0, at.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(result.Sales))
	}
	if result.Sales[0].DeltaVolume != 25.0 || result.Sales[1].DeltaVolume != 15.0 {
		t.Errorf("deltas = %v, %v, want 25 and 15", result.Sales[0].DeltaVolume, result.Sales[1].DeltaVolume)
	}
}

func TestDeriveEqualTimestampTieBreak(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	manual := reading("r-manual", "p1", "n1", 1010.0, at)
	manual.ManualEntry = true
	auto := reading("r-auto", "p1", "n1", 1000.0, at)

	result, err := engine.Derive(context.Background(), []readings.NozzleReading{manual, auto})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(result.Sales))
	}
	// Automatic sorts first on ties, so the manual reading closes the pair.
	if result.Sales[0].SourceReadingID != "r-manual" {
		t.Errorf("source reading = %q, want r-manual", result.Sales[0].SourceReadingID)
	}
	if result.Sales[0].DeltaVolume != 10.0 {
		t.Errorf("delta = %v, want 10", result.Sales[0].DeltaVolume)
	}
}

func TestDeriveZeroDeltaSkipped(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result, err := engine.Derive(context.Background(), []readings.NozzleReading{
		reading("r1", "p1", "n1", 1000.0, at),
		reading("r2", "p1", "n1", 1000.0, at.Add(time.Hour)),
		reading("r3", "p1", "n1", 1012.0, at.Add(2*time.Hour)),
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(result.Sales))
	}
	if result.Sales[0].DeltaVolume != 12.0 {
		t.Errorf("delta = %v, want 12", result.Sales[0].DeltaVolume)
	}
}

func TestDeriveResetZeroBase(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result, err := engine.Derive(context.Background(), []readings.NozzleReading{
		reading("r1", "p1", "n1", 5000.0, at),
		reading("r2", "p1", "n1", 42.0, at.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(result.Sales))
	}
	sale := result.Sales[0]
	if sale.DeltaVolume != 42.0 {
		t.Errorf("delta = %v, want post-reset cumulative 42", sale.DeltaVolume)
	}
	if !sale.ResetDetected {
		t.Error("reset sale not flagged for review")
	}
}

func TestDeriveResetRejectHaltsNozzleOnly(t *testing.T) {
	engine := testEngine(t, ResetReject)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result, err := engine.Derive(context.Background(), []readings.NozzleReading{
		reading("a1", "p1", "n1", 5000.0, at),
		reading("a2", "p1", "n1", 42.0, at.Add(time.Hour)),
		reading("b1", "p2", "n1", 100.0, at),
		reading("b2", "p2", "n1", 110.0, at.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Faults) != 1 {
		t.Fatalf("expected 1 fault, got %d", len(result.Faults))
	}
	if !errors.Is(result.Faults[0], ErrMeterReset) {
		t.Errorf("fault = %v, want meter reset", result.Faults[0])
	}
	if len(result.Sales) != 1 {
		t.Fatalf("expected the other nozzle to derive, got %d sales", len(result.Sales))
	}
	if result.Sales[0].PumpID != "p2" {
		t.Errorf("surviving sale pump = %q, want p2", result.Sales[0].PumpID)
	}
}

func TestDeriveMissingPriceHaltsNozzleOnly(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	unknown := reading("u1", "p1", "n1", 100.0, at)
	unknown.FuelType = "kerosene"
	unknown2 := reading("u2", "p1", "n1", 120.0, at.Add(time.Hour))
	unknown2.FuelType = "kerosene"

	result, err := engine.Derive(context.Background(), []readings.NozzleReading{
		unknown, unknown2,
		reading("k1", "p2", "n1", 100.0, at),
		reading("k2", "p2", "n1", 110.0, at.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(result.Faults) != 1 {
		t.Fatalf("expected 1 fault, got %d", len(result.Faults))
	}
	if !errors.Is(result.Faults[0], pricing.ErrMissingPrice) {
		t.Errorf("fault = %v, want missing price", result.Faults[0])
	}
	if len(result.Sales) != 1 || result.Sales[0].PumpID != "p2" {
		t.Fatalf("expected the priced nozzle to derive, got %+v", result.Sales)
	}
}

func TestDeriveDeterministicSaleIDs(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	batch := []readings.NozzleReading{
		reading("r1", "p1", "n1", 1000.0, at),
		reading("r2", "p1", "n1", 1020.0, at.Add(time.Hour)),
	}

	first, err := engine.Derive(context.Background(), batch)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := engine.Derive(context.Background(), batch)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if first.Sales[0].ID != second.Sales[0].ID {
		t.Errorf("sale ids differ across runs: %q vs %q", first.Sales[0].ID, second.Sales[0].ID)
	}
	if first.Sales[0].ID == "" {
		t.Error("empty sale id")
	}
}

func TestDeriveSumMatchesCumulativeSpan(t *testing.T) {
	engine := testEngine(t, ResetZeroBase)
	at := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	batch := []readings.NozzleReading{
		reading("r1", "p1", "n1", 1000.0, at),
		reading("r2", "p1", "n1", 1013.7, at.Add(1*time.Hour)),
		reading("r3", "p1", "n1", 1050.2, at.Add(2*time.Hour)),
		reading("r4", "p1", "n1", 1102.9, at.Add(3*time.Hour)),
	}
	result, err := engine.Derive(context.Background(), batch)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	var sum float64
	for _, sale := range result.Sales {
		sum += sale.DeltaVolume
	}
	span := batch[len(batch)-1].CumulativeVolume - batch[0].CumulativeVolume
	if Round2(sum) != Round2(span) {
		t.Errorf("delta sum = %v, want span %v", sum, span)
	}
}

func TestNewEngineRejectsUnknownPolicy(t *testing.T) {
	_, err := NewEngine(stubPrices{}, ResetPolicy("bogus"))
	if !errors.Is(err, ErrUnknownResetPolicy) {
		t.Fatalf("err = %v, want unknown reset policy", err)
	}
}
