package markethours

import (
	"testing"
	"time"
)

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"mid-session weekday", time.Date(2026, 9, 1, 11, 0, 0, 0, IST), true},
		{"before open", time.Date(2026, 9, 1, 9, 0, 0, 0, IST), false},
		{"exactly at open", time.Date(2026, 9, 1, 9, 15, 0, 0, IST), true},
		{"exactly at close", time.Date(2026, 9, 1, 15, 30, 0, 0, IST), false},
		{"saturday", time.Date(2026, 9, 5, 11, 0, 0, 0, IST), false},
		{"republic day holiday", time.Date(2026, 1, 26, 11, 0, 0, 0, IST), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMarketOpen(tc.t); got != tc.want {
				t.Fatalf("IsMarketOpen(%v): got %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	// Friday after close -> Monday 9:15.
	fri := time.Date(2026, 9, 4, 16, 0, 0, 0, IST)
	next := NextOpen(fri)
	want := time.Date(2026, 9, 7, 9, 15, 0, 0, IST)
	if !next.Equal(want) {
		t.Fatalf("NextOpen: got %v, want %v", next, want)
	}
}

func TestNextOpenSameDayBeforeOpen(t *testing.T) {
	morning := time.Date(2026, 9, 1, 8, 0, 0, 0, IST)
	next := NextOpen(morning)
	want := time.Date(2026, 9, 1, 9, 15, 0, 0, IST)
	if !next.Equal(want) {
		t.Fatalf("NextOpen: got %v, want %v", next, want)
	}
}

func TestTimeUntilCloseZeroAfterClose(t *testing.T) {
	evening := time.Date(2026, 9, 1, 18, 0, 0, 0, IST)
	if d := TimeUntilClose(evening); d != 0 {
		t.Fatalf("TimeUntilClose after close: got %v, want 0", d)
	}
}
