package scalar

import (
	"math"

	"github.com/x448/float16"
)

// F16 holds the bits of an IEEE-754 binary16 value.
type F16 uint16

const (
	F16NaN    F16 = 0x7e00
	F16Inf    F16 = 0x7c00
	F16NegInf F16 = 0xfc00
	F16Max    F16 = 0x7bff
)

func (h F16) half() float16.Float16 {
	return float16.Frombits(uint16(h))
}

// Float64 decodes h exactly; every binary16 value is representable in
// binary32.
func (h F16) Float64() float64 {
	return float64(h.Float32())
}

func (h F16) Float32() float32 {
	return h.half().Float32()
}

func (h F16) IsNaN() bool {
	return h.half().IsNaN()
}

func (h F16) IsInf() bool {
	return h.half().IsInf(0)
}

// IsSubnormal reports a non-zero value with a zero exponent field.
func (h F16) IsSubnormal() bool {
	f := h.half()
	return f.IsFinite() && !f.IsNormal() && h&0x7fff != 0
}

func (h F16) Signbit() bool {
	return h.half().Signbit()
}

// E4M3 holds the bits of an 8-bit float with 4 exponent and 3 mantissa bits.
// The format has no infinities; S.1111.111 is the only NaN pattern.
type E4M3 uint8

const (
	E4M3NaN E4M3 = 0x7f
	E4M3Max E4M3 = 0x7e
)

// IsNaN is specific to the format: the all-ones exponent still encodes
// finite values unless the mantissa is also all ones.
func (e E4M3) IsNaN() bool {
	return e&0x7f == 0x7f
}

func (e E4M3) Float64() float64 {
	if e.IsNaN() {
		return math.NaN()
	}
	exp := int(e>>3) & 0xf
	frac := float64(e & 0x7)
	var v float64
	if exp == 0 {
		v = math.Ldexp(frac, -9)
	} else {
		v = math.Ldexp(8+frac, exp-10)
	}
	if e&0x80 != 0 {
		return -v
	}
	return v
}

// E5M2 holds the bits of an 8-bit float with 5 exponent and 2 mantissa bits,
// laid out like a truncated binary16.
type E5M2 uint8

const (
	E5M2NaN E5M2 = 0x7f
	E5M2Inf E5M2 = 0x7c
	E5M2Max E5M2 = 0x7b
)

func (e E5M2) IsNaN() bool {
	return e&0x7f > 0x7c
}

func (e E5M2) Float64() float64 {
	if e.IsNaN() {
		return math.NaN()
	}
	exp := int(e>>2) & 0x1f
	frac := float64(e & 0x3)
	var v float64
	switch exp {
	case 0:
		v = math.Ldexp(frac, -16)
	case 0x1f:
		v = math.Inf(1)
	default:
		v = math.Ldexp(4+frac, exp-17)
	}
	if e&0x80 != 0 {
		return -v
	}
	return v
}
