package engine

import "math"

// clamp maps NaN to lo; infinities fall on the matching bound.
func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clamp01(x float64) float64 { return clamp(x, 0, 1) }

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func finiteOr(x, def float64) float64 {
	if finite(x) {
		return x
	}
	return def
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
