package fpmodel

import (
	"math"
	"math/big"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

func bigOf(x float64) *big.Float {
	return new(big.Float).SetFloat64(x)
}

func bigInt(v int64) *big.Float {
	return new(big.Float).SetInt64(v)
}

func bigUint(v uint64) *big.Float {
	return new(big.Float).SetUint64(v)
}

// EncodeF16 packs a value that binary16 represents exactly. NaN becomes the
// canonical quiet NaN with the sign of x.
func EncodeF16(x float64) scalar.F16 {
	var s uint16
	if math.Signbit(x) {
		s = 0x8000
	}
	a := math.Abs(x)
	switch {
	case math.IsNaN(x):
		return scalar.F16(s | uint16(scalar.F16NaN))
	case math.IsInf(x, 0):
		return scalar.F16(s | uint16(scalar.F16Inf))
	case a < Binary16.MinNormal():
		return scalar.F16(s | uint16(math.Ldexp(a, 24)))
	}
	_, exp := math.Frexp(a)
	e := exp - 1
	mant := uint16(math.Ldexp(a, 10-e)) & 0x3ff
	return scalar.F16(s | uint16(e+15)<<10 | mant)
}

// F16FromFloat64 rounds x to binary16 in direction m.
func F16FromFloat64(x float64, m Mode) scalar.F16 {
	if math.IsNaN(x) {
		return EncodeF16(x)
	}
	return EncodeF16(RoundToFormat(bigOf(x), Binary16, m))
}

// RoundIntegral32 rounds x to an integral binary32 value. Zero signs survive.
func RoundIntegral32(x float32, m Mode) float32 {
	return float32(Integral(float64(x), m))
}

// RoundIntegral16 rounds x to an integral binary16 value.
func RoundIntegral16(x scalar.F16, m Mode) scalar.F16 {
	if x.IsNaN() {
		return x
	}
	return EncodeF16(Integral(x.Float64(), m))
}

// SaturateInt clamps an integral float value to [lo, hi], the way a
// float-to-integer conversion does on the device. NaN yields 0.
func SaturateInt(x float64, lo int64, hi uint64) uint64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x <= float64(lo):
		return uint64(lo)
	case x >= float64(hi):
		return hi
	case x < 0:
		return uint64(int64(x))
	}
	return uint64(x)
}

// SaturateUnit clamps x to [0, 1]; NaN becomes +0.
func SaturateUnit(x float64) float64 {
	switch {
	case math.IsNaN(x), x <= 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// E4M3FromF32Sat converts x to E4M3 rounding to nearest even. Out of range
// values and infinities saturate to the largest finite magnitude.
func E4M3FromF32Sat(x float32) scalar.E4M3 {
	return scalar.E4M3(encodeF8(float64(x), E4M3, 3, 7))
}

// E5M2FromF32Sat converts x to E5M2 rounding to nearest even with the same
// saturation as E4M3FromF32Sat.
func E5M2FromF32Sat(x float32) scalar.E5M2 {
	return scalar.E5M2(encodeF8(float64(x), E5M2, 2, 15))
}

// encodeF8 returns 0x7f with the sign of x for NaN and otherwise the saturated, rounded
// encoding of x in format f with mbits mantissa bits and the given bias.
func encodeF8(x float64, f Format, mbits, bias int) uint8 {
	var s uint8
	if math.Signbit(x) {
		s = 0x80
	}
	if math.IsNaN(x) {
		return s | 0x7f
	}
	a := math.Abs(x)
	if math.IsInf(a, 0) || a > f.MaxFinite {
		a = f.MaxFinite
	} else {
		a = RoundToFormat(bigOf(a), f, NearestEven)
		if math.IsInf(a, 0) || math.IsNaN(a) {
			a = f.MaxFinite
		}
	}
	if a < f.MinNormal() {
		return s | uint8(math.Ldexp(a, f.Prec-1-f.Emin))
	}
	_, exp := math.Frexp(a)
	e := exp - 1
	mant := uint8(math.Ldexp(a, mbits-e)) & (1<<mbits - 1)
	return s | uint8(e+bias)<<mbits | mant
}

// E4M3ToF16 decodes an E4M3 value to binary16. Every E4M3 value is exact in
// binary16.
func E4M3ToF16(v scalar.E4M3) scalar.F16 {
	return EncodeF16(v.Float64())
}

// E5M2ToF16 decodes an E5M2 value to binary16.
func E5M2ToF16(v scalar.E5M2) scalar.F16 {
	return scalar.F16(uint16(v) << 8)
}
