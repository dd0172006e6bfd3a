package fpmodel

import (
	"math"

	gscalar "gonum.org/v1/gonum/floats/scalar"
)

// Tolerances of the approximate instructions.
const (
	// SinCosSmall is 2^-20.5, the absolute error allowed for |x| <= 2pi.
	SinCosSmall = 6.74349576174304508591503488640641e-7
	// SinCosLarge is 2^-14.7, the absolute error allowed for |x| <= 100pi.
	SinCosLarge = 0.0000375715458174107752837949545034
)

// RelativeDiff checks got against the precise result with relative tolerance
// eps. Identical bits and NaN against NaN always pass.
func RelativeDiff(precise, got, eps float64) bool {
	if math.Float64bits(precise) == math.Float64bits(got) || gscalar.Same(precise, got) {
		return true
	}
	return math.Abs(precise-got) <= eps*math.Abs(precise)
}

// AbsoluteDiff checks got against the precise result with absolute tolerance
// eps.
func AbsoluteDiff(precise, got, eps float64) bool {
	if gscalar.Same(precise, got) {
		return true
	}
	return gscalar.EqualWithinAbs(precise, got, eps)
}

// WithinULP32 reports whether got is within ulps units in the last place of
// exact, counted on the raw bit patterns. Two NaNs are equal.
func WithinULP32(exact, got float32, ulps uint32) bool {
	if math.IsNaN(float64(exact)) && math.IsNaN(float64(got)) {
		return true
	}
	a, b := math.Float32bits(exact), math.Float32bits(got)
	if a > b {
		a, b = b, a
	}
	return b-a <= ulps
}

// SinCosBound returns the absolute error allowed for sin and cos at x, or
// +Inf where the result is not checked.
func SinCosBound(x float32) float64 {
	const pi = float32(math.Pi)
	switch {
	case x >= pi*-2 && x <= pi*2:
		return SinCosSmall
	case x >= pi*-100 && x <= pi*100:
		return SinCosLarge
	}
	return math.Inf(1)
}
