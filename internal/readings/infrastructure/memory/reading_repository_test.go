package memory

import (
	"context"
	"testing"
	"time"

	readings "fuelsync/internal/readings/domain"
)

func storedReading(id string, volume float64, at time.Time, manual bool) readings.NozzleReading {
	return readings.NozzleReading{
		ID:               id,
		StationID:        "station-1",
		PumpID:           "p1",
		NozzleID:         "n1",
		FuelType:         "petrol",
		CumulativeVolume: volume,
		RecordedAt:       at,
		ManualEntry:      manual,
	}
}

func TestLatestBeforeTiePrefersManual(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	auto := storedReading("r-auto", 1000, at, false)
	manual := storedReading("r-manual", 1002, at, true)
	if err := repo.Insert(ctx, &auto); err != nil {
		t.Fatalf("insert auto: %v", err)
	}
	if err := repo.Insert(ctx, &manual); err != nil {
		t.Fatalf("insert manual: %v", err)
	}

	// Derivation orders automatic before manual at the same instant, so the
	// manual reading closed the last pair and must be the next baseline.
	best, err := repo.LatestBefore(ctx, "station-1", auto.Key(), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("latest before: %v", err)
	}
	if best == nil || best.ID != "r-manual" {
		t.Fatalf("baseline = %+v, want the manual reading", best)
	}
}

func TestLatestBeforeExcludesSuperseded(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	original := storedReading("r-1", 1000, at, true)
	if err := repo.Insert(ctx, &original); err != nil {
		t.Fatalf("insert: %v", err)
	}
	correction := storedReading("r-2", 1005, at, true)
	correction.SupersedesID = "r-1"
	if err := repo.Insert(ctx, &correction); err != nil {
		t.Fatalf("insert correction: %v", err)
	}

	best, err := repo.LatestBefore(ctx, "station-1", original.Key(), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("latest before: %v", err)
	}
	if best == nil || best.ID != "r-2" {
		t.Fatalf("baseline = %+v, want the correction", best)
	}
}
