package timeofday

import (
	"testing"
	"time"
)

func TestWindowContains_WrapsPastMidnight(t *testing.T) {
	w := Window{Start: MustParse("22:00"), End: MustParse("06:00")}

	for _, in := range []string{"23:30", "05:30", "22:00", "06:00", "00:00"} {
		if !w.Contains(MustParse(in)) {
			t.Fatalf("expected %s to be inside %s", in, w)
		}
	}
	for _, out := range []string{"12:00", "06:01", "21:59"} {
		if w.Contains(MustParse(out)) {
			t.Fatalf("expected %s to be outside %s", out, w)
		}
	}
}

func TestWindowContains_SameDayInclusiveEdges(t *testing.T) {
	w := Window{Start: MustParse("12:00"), End: MustParse("13:00")}
	if !w.Contains(MustParse("12:00")) || !w.Contains(MustParse("13:00")) {
		t.Fatal("expected both edges to be inclusive")
	}
	if w.Contains(MustParse("13:01")) {
		t.Fatal("expected 13:01 to be outside")
	}
}

func TestParse_AcceptsSecondsAndRejectsGarbage(t *testing.T) {
	c, err := Parse("17:30:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != New(17, 30) {
		t.Fatalf("unexpected clock: %s", c)
	}
	for _, bad := range []string{"", "24:00", "7", "07:60", "aa:bb"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("22:00–06:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Wraps() || w.String() != "22:00-06:00" {
		t.Fatalf("unexpected window: %s", w)
	}
}

func TestClockOn_UsesDayLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	day := time.Date(2026, 3, 2, 23, 59, 0, 0, loc)
	got := MustParse("09:15").On(day)
	want := time.Date(2026, 3, 2, 9, 15, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}
