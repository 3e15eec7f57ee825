package sales

import (
	"math"
	"time"
)

// Shift is a fixed time-of-day band. ShiftFullDay is a filter value meaning
// "ignore the shift dimension", never stored on a sale.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftNight     Shift = "night"
	ShiftFullDay   Shift = "full_day"
)

// NormalizeShift validates a shift string.
func NormalizeShift(value string) (Shift, bool) {
	switch Shift(value) {
	case ShiftMorning, ShiftAfternoon, ShiftNight, ShiftFullDay:
		return Shift(value), true
	default:
		return "", false
	}
}

// ShiftOf derives the shift band from an instant:
// 06:00-14:00 morning, 14:00-22:00 afternoon, 22:00-06:00 night.
func ShiftOf(at time.Time) Shift {
	hour := at.UTC().Hour()
	switch {
	case hour >= 6 && hour < 14:
		return ShiftMorning
	case hour >= 14 && hour < 22:
		return ShiftAfternoon
	default:
		return ShiftNight
	}
}

// ClosureDateOf returns the business date an instant belongs to. The night
// shift spans midnight, so hours before 06:00 settle on the previous day.
func ClosureDateOf(at time.Time) time.Time {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	if at.Hour() < 6 {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// Sale is one derived delta between consecutive meter readings. Sales are
// never created directly by a user.
type Sale struct {
	ID              string
	StationID       string
	PumpID          string
	NozzleID        string
	FuelType        string
	DeltaVolume     float64
	PricePerLitre   float64
	TotalAmount     float64
	Shift           Shift
	SaleDate        time.Time
	SourceReadingID string
	ResetDetected   bool
	CreatedAt       time.Time
}

// Round2 rounds to currency precision, half-up. Values are non-negative.
func Round2(value float64) float64 {
	return math.Floor(value*100+0.5) / 100
}
