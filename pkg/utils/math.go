package utils

import "math"

// DefaultTolerance is the relative tolerance used when comparing parameter values
const DefaultTolerance = 1e-10

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// AlmostEqual reports whether a and b agree within a relative tolerance
// (absolute for values close to zero).
func AlmostEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1.0, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}

// AlmostEqualSlices compares two slices element-wise with AlmostEqual
func AlmostEqualSlices(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !AlmostEqual(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

// Normalize maps v from [min, max] onto [-1, 1]. A degenerate range maps to 0.
func Normalize(v, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	return 2*(v-min)/(max-min) - 1
}

// Denormalize is the inverse of Normalize.
func Denormalize(p, min, max float64) float64 {
	return min + (p+1)*(max-min)/2
}
