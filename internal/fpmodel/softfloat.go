package fpmodel

import (
	"math"
	"math/big"
)

// Format is a binary floating-point interchange format.
type Format struct {
	Name string
	// Prec counts significand bits including the implicit one.
	Prec int
	// Emin is the exponent of the smallest normal binade.
	Emin      int
	MaxFinite float64
	HasInf    bool
}

var (
	Binary16 = Format{Name: "f16", Prec: 11, Emin: -14, MaxFinite: 65504, HasInf: true}
	Binary32 = Format{Name: "f32", Prec: 24, Emin: -126, MaxFinite: math.MaxFloat32, HasInf: true}
	Binary64 = Format{Name: "f64", Prec: 53, Emin: -1022, MaxFinite: math.MaxFloat64, HasInf: true}
	E4M3     = Format{Name: "e4m3", Prec: 4, Emin: -6, MaxFinite: 448}
	E5M2     = Format{Name: "e5m2", Prec: 3, Emin: -14, MaxFinite: 57344, HasInf: true}
)

// MinNormal is the smallest positive normal value of the format.
func (f Format) MinNormal() float64 {
	return math.Ldexp(1, f.Emin)
}

// direction of a rounding step relative to the magnitude of the value.
type direction uint8

const (
	nearest direction = iota
	down
	up
)

func magnitudeDirection(m Mode, negative bool) direction {
	switch m {
	case TowardZero:
		return down
	case TowardPositive:
		if negative {
			return down
		}
		return up
	case TowardNegative:
		if negative {
			return up
		}
		return down
	}
	return nearest
}

// fraction classifies the discarded part of a scaled significand.
type fraction uint8

const (
	fracZero fraction = iota
	fracBelowHalf
	fracHalf
	fracAboveHalf
)

// step rounds the integral significand t given the class of the discarded
// fraction.
func step(t uint64, frac fraction, dir direction) uint64 {
	switch {
	case frac == fracZero:
		return t
	case dir == down:
		return t
	case dir == up:
		return t + 1
	case frac == fracAboveHalf:
		return t + 1
	case frac == fracHalf && t&1 == 1:
		return t + 1
	}
	return t
}

func overflow(f Format, negative bool, dir direction) float64 {
	var r float64
	switch {
	case dir == down:
		r = f.MaxFinite
	case f.HasInf:
		r = math.Inf(1)
	default:
		return math.NaN()
	}
	if negative {
		return -r
	}
	return r
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// RoundNear rounds the exact value v+tail to format f in direction m. The
// caller guarantees that v is the float64 nearest to the exact value, so only
// the sign of tail matters. f must be narrower than binary64.
func RoundNear(v, tail float64, f Format, m Mode) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if v == 0 && tail == 0 {
		return v
	}
	if v == 0 {
		// Only the tail is left; it is far below any narrower format's
		// smallest subnormal.
		v = math.Copysign(math.SmallestNonzeroFloat64, tail)
		tail = 0
	}
	negative := math.Signbit(v)
	a := math.Abs(v)
	t := sign(tail)
	if negative {
		t = -t
	}
	whole, frac, qe := scale(a, f)
	if frac == fracZero && t != 0 {
		// a is representable in f but the exact value lies just off it. Any
		// float64 strictly between a and its neighbour rounds the same way.
		a = math.Nextafter(a, float64(t)*math.Inf(1))
		whole, frac, qe = scale(a, f)
	} else if frac == fracHalf && t > 0 {
		frac = fracAboveHalf
	} else if frac == fracHalf && t < 0 {
		frac = fracBelowHalf
	}
	dir := magnitudeDirection(m, negative)
	r := math.Ldexp(float64(step(whole, frac, dir)), qe)
	if r > f.MaxFinite {
		return overflow(f, negative, dir)
	}
	if negative {
		return -r
	}
	return r
}

// scale splits a positive a into an integral significand at the quantum of
// format f, the class of the remainder and the quantum exponent.
func scale(a float64, f Format) (uint64, fraction, int) {
	e := f.Emin
	if _, exp := math.Frexp(a); exp-1 > e {
		e = exp - 1
	}
	qe := e - (f.Prec - 1)
	n := math.Ldexp(a, -qe)
	whole := math.Floor(n)
	frac := fracZero
	switch d := n - whole; {
	case d == 0:
	case d < 0.5:
		frac = fracBelowHalf
	case d == 0.5:
		frac = fracHalf
	default:
		frac = fracAboveHalf
	}
	return uint64(whole), frac, qe
}

// RoundToFormat rounds an arbitrary-precision value to format f in direction m.
func RoundToFormat(x *big.Float, f Format, m Mode) float64 {
	negative := x.Signbit()
	if x.IsInf() {
		if negative {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	if x.Sign() == 0 {
		if negative {
			return math.Copysign(0, -1)
		}
		return 0
	}
	a := new(big.Float).SetPrec(x.Prec()).Abs(x)
	e := a.MantExp(nil) - 1
	if e < f.Emin {
		e = f.Emin
	}
	qe := e - (f.Prec - 1)
	n := new(big.Float).SetMantExp(a, -qe)
	whole, _ := n.Int(nil)
	rest := new(big.Float).SetPrec(n.Prec() + 64).Sub(n, new(big.Float).SetInt(whole))
	frac := fracZero
	if rest.Sign() != 0 {
		switch rest.Cmp(big.NewFloat(0.5)) {
		case -1:
			frac = fracBelowHalf
		case 0:
			frac = fracHalf
		default:
			frac = fracAboveHalf
		}
	}
	dir := magnitudeDirection(m, negative)
	if !whole.IsUint64() {
		return overflow(f, negative, dir)
	}
	r := math.Ldexp(float64(step(whole.Uint64(), frac, dir)), qe)
	if r > f.MaxFinite {
		return overflow(f, negative, dir)
	}
	if negative {
		return -r
	}
	return r
}
