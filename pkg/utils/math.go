package utils

import "math"

// Round rounds x to the given number of decimal places.
// NaN and infinities are returned unchanged.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// RoundPtr rounds *x in a copy; nil stays nil.
func RoundPtr(x *float64, places int) *float64 {
	if x == nil {
		return nil
	}
	r := Round(*x, places)
	return &r
}
