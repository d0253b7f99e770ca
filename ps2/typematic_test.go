package ps2

import "testing"

func TestSelectTypematic(t *testing.T) {
	tests := []struct {
		rate, delay         int
		wantRate, wantDelay int
		wantCode            byte
	}{
		{300, 250, 300, 250, 0x00},
		{0, 250, 20, 250, 0x1F},
		{-5, 250, 20, 250, 0x1F},
		{1000, 1000, 300, 1000, 0x60},
		{109, 600, 109, 500, 0x2B},
		{20, 2000, 20, 1000, 0x7F},
		{250, 0, 240, 250, 0x02},
		{90, 750, 92, 750, 0x4D},
		{89, 625, 92, 500, 0x2D}, // 89 is 3 from both 92 and 86; 625 is 125 from both 500 and 750
	}
	for _, tt := range tests {
		code, r, d := SelectTypematic(tt.rate, tt.delay)
		if r != tt.wantRate || d != tt.wantDelay {
			t.Errorf("SelectTypematic(%d, %d) = (%d, %d), want (%d, %d)", tt.rate, tt.delay, r, d, tt.wantRate, tt.wantDelay)
		}
		if code != tt.wantCode {
			t.Errorf("SelectTypematic(%d, %d) code = 0x%02X, want 0x%02X", tt.rate, tt.delay, code, tt.wantCode)
		}
	}
}

// The early exit in closestIndex must pick what a full scan picks
func TestClosestIndexMatchesFullScan(t *testing.T) {
	fullScan := func(table []int, want int) int {
		best := 0
		for i := range table {
			if absDiff(want, table[i]) < absDiff(want, table[best]) {
				best = i
			}
		}
		return best
	}

	for rate := -50; rate <= 400; rate++ {
		if got, want := closestIndex(typematicRates[:], rate), fullScan(typematicRates[:], rate); got != want {
			t.Fatalf("rate %d: index %d, full scan %d", rate, got, want)
		}
	}
	for delay := -100; delay <= 1300; delay++ {
		if got, want := closestIndex(typematicDelays[:], delay), fullScan(typematicDelays[:], delay); got != want {
			t.Fatalf("delay %d: index %d, full scan %d", delay, got, want)
		}
	}
}

func TestTypematicTables(t *testing.T) {
	rates := TypematicRates()
	if len(rates) != 32 || rates[0] != 300 || rates[31] != 20 {
		t.Fatalf("unexpected rate table %v", rates)
	}
	for i := 1; i < len(rates); i++ {
		if rates[i] >= rates[i-1] {
			t.Errorf("rate table not strictly decreasing at %d", i)
		}
	}
	// callers get a copy
	rates[0] = 1
	if TypematicRates()[0] != 300 {
		t.Error("TypematicRates exposes the table")
	}
	if d := TypematicDelays(); len(d) != 4 || d[0] != 250 || d[3] != 1000 {
		t.Errorf("unexpected delay table %v", d)
	}
}
