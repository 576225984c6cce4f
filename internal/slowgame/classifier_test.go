package slowgame

import (
	"math"
	"testing"
)

func TestTotalMinutes(t *testing.T) {
	if got := TotalMinutes(20, 10); math.Abs(got-26.6667) > 0.001 {
		t.Fatalf("TotalMinutes(20,10)=%v", got)
	}
	if got := TotalMinutes(15, 0); got != 15 {
		t.Fatalf("TotalMinutes(15,0)=%v", got)
	}
	// 870s + 1s is 14.5 + 0.67
	if got := TotalMinutes(14.5, 1); math.Abs(got-15.1667) > 0.001 {
		t.Fatalf("TotalMinutes(14.5,1)=%v", got)
	}
	if !New(15).IsSlow(14.5, 1) {
		t.Fatalf("14.5+1 should be slow at 15")
	}
}

func TestIsSlowThresholds(t *testing.T) {
	cases := []struct {
		threshold  float64
		start, inc int
		want       bool
	}{
		{15, 15, 0, true},
		{30, 15, 0, false},
		{30, 20, 15, true}, // exactly 30
		{15, 10, 5, false},
		{15, 5, 15, true},
		{15, 3, 2, false},
	}
	for _, tc := range cases {
		if got := New(tc.threshold).IsSlow(float64(tc.start), tc.inc); got != tc.want {
			t.Fatalf("threshold=%v %d+%d: got %v want %v", tc.threshold, tc.start, tc.inc, got, tc.want)
		}
	}
}

func TestIsSlowMonotonic(t *testing.T) {
	c := New(15)
	for start := 0; start <= 40; start++ {
		for inc := 0; inc <= 40; inc++ {
			if !c.IsSlow(float64(start), inc) {
				continue
			}
			if !c.IsSlow(float64(start+1), inc) || !c.IsSlow(float64(start), inc+1) {
				t.Fatalf("classification not monotonic at %d+%d", start, inc)
			}
		}
	}
}
