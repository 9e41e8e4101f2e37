package catalog

import (
	"testing"
	"time"

	"github.com/jmagar/gigs-cli/internal/model"
)

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	loc := time.FixedZone("UTC+8", 8*60*60)
	return time.Date(2026, 2, 10, 12, 0, 0, 0, loc)
}

func TestComputeCountdown_Upcoming(t *testing.T) {
	now := fixedNow(t)
	got := ComputeCountdown("2026-02-12 15:00", now)
	if got == nil {
		t.Fatal("ComputeCountdown() = nil, want upcoming")
	}
	want := model.Countdown{Status: model.CountdownUpcoming, Days: 2, Hours: 3}
	if *got != want {
		t.Errorf("ComputeCountdown() = %+v, want %+v", *got, want)
	}
}

func TestComputeCountdown_TruncatesPartialHours(t *testing.T) {
	now := fixedNow(t)
	got := ComputeCountdown("2026/02/10 13:59", now)
	if got == nil {
		t.Fatal("ComputeCountdown() = nil")
	}
	if got.Days != 0 || got.Hours != 1 {
		t.Errorf("ComputeCountdown() = %+v, want 0 days 1 hour", *got)
	}
}

func TestComputeCountdown_SeparatorsAgree(t *testing.T) {
	now := fixedNow(t)
	pairs := [][2]string{
		{"2026/03/20", "2026-03-20"},
		{"2026/03/20 19:30", "2026-03-20 19:30"},
		{"2025/12/31", "2025-12-31"},
		{"2026/3/5", "2026-3-5"},
	}
	for _, p := range pairs {
		a := ComputeCountdown(p[0], now)
		b := ComputeCountdown(p[1], now)
		if a == nil || b == nil {
			t.Fatalf("ComputeCountdown(%q)=%v, (%q)=%v; want both parsed", p[0], a, p[1], b)
		}
		if *a != *b {
			t.Errorf("ComputeCountdown(%q)=%+v differs from (%q)=%+v", p[0], *a, p[1], *b)
		}
	}
}

func TestComputeCountdown_DateOnlyIsMidnight(t *testing.T) {
	now := fixedNow(t)
	got := ComputeCountdown("2026-02-11", now)
	if got == nil {
		t.Fatal("ComputeCountdown() = nil")
	}
	if got.Days != 0 || got.Hours != 12 {
		t.Errorf("ComputeCountdown() = %+v, want 0 days 12 hours", *got)
	}
}

func TestComputeCountdown_Past(t *testing.T) {
	now := fixedNow(t)
	for _, in := range []string{"2026-02-01", "2026/02/10 12:00", "1999-01-01 00:00:00"} {
		got := ComputeCountdown(in, now)
		if got == nil || got.Status != model.CountdownPast {
			t.Errorf("ComputeCountdown(%q) = %v, want past", in, got)
		}
	}
}

func TestComputeCountdown_Unparseable(t *testing.T) {
	now := fixedNow(t)
	for _, in := range []string{"not-a-date", "", "   ", "26-02-15", "待確認", "2026-13-01"} {
		if got := ComputeCountdown(in, now); got != nil {
			t.Errorf("ComputeCountdown(%q) = %+v, want nil", in, *got)
		}
	}
}
