package sales

import (
	"testing"
	"time"
)

func TestShiftOf(t *testing.T) {
	cases := []struct {
		hour int
		want Shift
	}{
		{6, ShiftMorning},
		{13, ShiftMorning},
		{14, ShiftAfternoon},
		{21, ShiftAfternoon},
		{22, ShiftNight},
		{23, ShiftNight},
		{0, ShiftNight},
		{5, ShiftNight},
	}
	for _, tc := range cases {
		at := time.Date(2026, 3, 10, tc.hour, 30, 0, 0, time.UTC)
		if got := ShiftOf(at); got != tc.want {
			t.Errorf("ShiftOf(%02d:30) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestClosureDateOfNightWrap(t *testing.T) {
	// 02:00 belongs to the previous day's night shift.
	at := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := ClosureDateOf(at); !got.Equal(want) {
		t.Errorf("ClosureDateOf(02:00) = %v, want %v", got, want)
	}

	at = time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	want = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := ClosureDateOf(at); !got.Equal(want) {
		t.Errorf("ClosureDateOf(06:00) = %v, want %v", got, want)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{2549.999, 2550.00},
		{2550.004, 2550.00},
		{0.005, 0.01},
		{0.125, 0.13},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeShift(t *testing.T) {
	if _, ok := NormalizeShift("morning"); !ok {
		t.Error("morning rejected")
	}
	if _, ok := NormalizeShift("full_day"); !ok {
		t.Error("full_day rejected")
	}
	if _, ok := NormalizeShift("graveyard"); ok {
		t.Error("unknown shift accepted")
	}
}
