package fpmodel

import (
	"math"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// twoSum returns s = fl(a+b) and the exact error a+b-s.
func twoSum(a, b float64) (float64, float64) {
	s := a + b
	bb := s - a
	err := (a - (s - bb)) + (b - bb)
	return s, err
}

func (e Env) round32(v, tail float64) float32 {
	return float32(RoundNear(v, tail, Binary32, e.mode))
}

// exactZero gives the sign of an exact zero sum of x and y.
func (e Env) exactZero(x, y float64) float64 {
	if x == 0 && y == 0 && math.Signbit(x) == math.Signbit(y) {
		return x
	}
	if e.mode == TowardNegative {
		return math.Copysign(0, -1)
	}
	return 0
}

// Add32 returns a+b rounded to binary32.
func (e Env) Add32(a, b float32) float32 {
	x, y := float64(a), float64(b)
	s, err := twoSum(x, y)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return float32(s)
	}
	if s == 0 && err == 0 {
		return float32(e.exactZero(x, y))
	}
	return e.round32(s, err)
}

// Sub32 returns a-b rounded to binary32.
func (e Env) Sub32(a, b float32) float32 {
	return e.Add32(a, -b)
}

// Mul32 returns a*b rounded to binary32. The float64 product of two binary32
// values is exact.
func (e Env) Mul32(a, b float32) float32 {
	return e.round32(float64(a)*float64(b), 0)
}

// FMA32 returns a*b+c with a single rounding to binary32.
func (e Env) FMA32(a, b, c float32) float32 {
	p := float64(a) * float64(b)
	z := float64(c)
	s, err := twoSum(p, z)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return float32(s)
	}
	if s == 0 && err == 0 {
		return float32(e.exactZero(p, z))
	}
	return e.round32(s, err)
}

// Div32 returns a/b rounded to binary32.
func (e Env) Div32(a, b float32) float32 {
	x, y := float64(a), float64(b)
	q := x / y
	if math.IsNaN(q) || math.IsInf(q, 0) || q == 0 || math.IsInf(y, 0) {
		return float32(q)
	}
	r := math.FMA(-q, y, x)
	tail := float64(sign(r) * sign(y))
	return e.round32(q, tail)
}

// Recip32 returns 1/x rounded to binary32.
func (e Env) Recip32(x float32) float32 {
	return e.Div32(1, x)
}

// Sqrt32 returns the square root of x rounded to binary32.
func (e Env) Sqrt32(x float32) float32 {
	a := float64(x)
	s := math.Sqrt(a)
	if math.IsNaN(s) || math.IsInf(s, 0) || s == 0 {
		return float32(s)
	}
	return e.round32(s, math.FMA(-s, s, a))
}

// ToF16 narrows x to binary16.
func (e Env) ToF16(x float64) scalar.F16 {
	return F16FromFloat64(x, e.mode)
}

// FromInt converts an integer to the float format f.
func (e Env) FromInt(v int64, f Format) float64 {
	return RoundToFormat(bigInt(v), f, e.mode)
}

// FromUint converts an unsigned integer to the float format f.
func (e Env) FromUint(v uint64, f Format) float64 {
	return RoundToFormat(bigUint(v), f, e.mode)
}
