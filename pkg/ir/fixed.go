package ir

import "math"

// FracBits is the number of fractional bits in the target's float format.
const FracBits = 16

// One is 1.0 in Q16.16.
const One int32 = 1 << FracBits

// FixedFromFloat converts f to Q16.16, rounding to nearest and saturating at
// the representable range.
func FixedFromFloat(f float64) int32 {
	v := math.Round(f * float64(One))
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// FixedToFloat converts a Q16.16 word back to float64.
func FixedToFloat(v int32) float64 {
	return float64(v) / float64(One)
}
