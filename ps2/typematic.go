package ps2

// Typematic rates in the keyboard's own units (300 is 30.0 characters per
// second), ordered by their index in the rate field of the typematic byte.
var typematicRates = [32]int{
	300, 267, 240, 218, 207, 185, 171, 160,
	150, 133, 120, 109, 100, 92, 86, 80,
	75, 67, 60, 55, 50, 46, 43, 40,
	37, 33, 30, 27, 25, 23, 21, 20,
}

// Typematic delays in milliseconds, by index in the delay field
var typematicDelays = [4]int{250, 500, 750, 1000}

// TypematicRates returns the supported repeat rates, fastest first
func TypematicRates() []int {
	r := typematicRates
	return r[:]
}

// TypematicDelays returns the supported repeat delays in milliseconds
func TypematicDelays() []int {
	d := typematicDelays
	return d[:]
}

// SelectTypematic picks the supported rate and delay closest to the
// requested ones and returns the typematic parameter byte with the values
// it encodes. Ties go to the lower index.
func SelectTypematic(rate, delayMs int) (code byte, actualRate, actualDelay int) {
	ri := closestIndex(typematicRates[:], rate)
	di := closestIndex(typematicDelays[:], delayMs)
	code = byte(ri) | byte(di)<<5
	return code, typematicRates[ri], typematicDelays[di]
}

// closestIndex scans a monotonic table and stops once the distance grows
func closestIndex(table []int, want int) int {
	best := 0
	bestDiff := absDiff(want, table[0])
	for i := 1; i < len(table); i++ {
		d := absDiff(want, table[i])
		if d < bestDiff {
			best, bestDiff = i, d
		}
		if d > bestDiff {
			break
		}
	}
	return best
}

func absDiff(a, b int) int {
	if a < b {
		return b - a
	}
	return a - b
}
