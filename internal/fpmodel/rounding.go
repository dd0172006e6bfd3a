// Package fpmodel holds the host-side floating-point semantics the oracles are
// built on: rounding modes, software rounding to narrow formats, flush-to-zero,
// the comparison predicate family and result tolerances.
package fpmodel

import "math"

// Mode is a rounding direction.
type Mode uint8

const (
	NearestEven Mode = iota
	TowardZero
	TowardNegative
	TowardPositive
)

func (m Mode) String() string {
	switch m {
	case TowardZero:
		return "rz"
	case TowardNegative:
		return "rm"
	case TowardPositive:
		return "rp"
	}
	return "rn"
}

// Modes lists the four directions in PTX order.
func Modes() []Mode {
	return []Mode{NearestEven, TowardZero, TowardNegative, TowardPositive}
}

// Rounding is the instruction modifier. The "i" variants round a float to an
// integral value; the others round to the precision of the destination.
type Rounding uint8

const (
	Default Rounding = iota
	Rni
	Rzi
	Rmi
	Rpi
	Rn
	Rz
	Rm
	Rp
)

// AllRoundings lists every modifier, Default first.
func AllRoundings() []Rounding {
	return []Rounding{Default, Rni, Rzi, Rmi, Rpi, Rn, Rz, Rm, Rp}
}

// ExplicitRoundings lists the four precision-rounding modifiers.
func ExplicitRoundings() []Rounding {
	return []Rounding{Rn, Rz, Rm, Rp}
}

func (r Rounding) String() string {
	switch r {
	case Rni:
		return "rni"
	case Rzi:
		return "rzi"
	case Rmi:
		return "rmi"
	case Rpi:
		return "rpi"
	case Rn:
		return "rn"
	case Rz:
		return "rz"
	case Rm:
		return "rm"
	case Rp:
		return "rp"
	}
	return ""
}

// PTX returns the modifier as written in an instruction, e.g. ".rzi".
func (r Rounding) PTX() string {
	if r == Default {
		return ""
	}
	return "." + r.String()
}

func (r Rounding) IsInteger() bool {
	return r >= Rni && r <= Rpi
}

// Mode returns the direction of r. Default rounds to nearest even.
func (r Rounding) Mode() Mode {
	switch r {
	case Rzi, Rz:
		return TowardZero
	case Rmi, Rm:
		return TowardNegative
	case Rpi, Rp:
		return TowardPositive
	}
	return NearestEven
}

// Integral rounds x to an integral value in direction m.
func Integral(x float64, m Mode) float64 {
	switch m {
	case TowardZero:
		return math.Trunc(x)
	case TowardNegative:
		return math.Floor(x)
	case TowardPositive:
		return math.Ceil(x)
	}
	return math.RoundToEven(x)
}

// Env carries the rounding direction for a block of host arithmetic.
//
// There is no hidden floating-point control register on the host side: every
// operation below rounds in software from an exact intermediate, so an Env is
// a plain value and concurrent use from several goroutines is safe.
type Env struct {
	mode Mode
}

// WithMode runs body with arithmetic rounding in direction m and returns its
// result. Nothing needs restoring afterwards, panics included.
func WithMode[T any](m Mode, body func(Env) T) T {
	return body(Env{mode: m})
}

func (e Env) Mode() Mode {
	return e.mode
}
