package fpmodel

import (
	"math"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// Comparison is the comparison operator of setp/set.
type Comparison uint8

const (
	Eq Comparison = iota
	Ne
	Lt
	Le
	Gt
	Ge
	Lo
	Ls
	Hi
	Hs
	Equ
	Neu
	Ltu
	Leu
	Gtu
	Geu
	Num
	Nan
)

var comparisonNames = [...]string{
	"eq", "ne", "lt", "le", "gt", "ge", "lo", "ls", "hi", "hs",
	"equ", "neu", "ltu", "leu", "gtu", "geu", "num", "nan",
}

func (c Comparison) String() string {
	return comparisonNames[c]
}

// IterInt returns the operators valid on integers.
func IterInt() []Comparison {
	return []Comparison{Eq, Ne, Lt, Le, Gt, Ge, Lo, Ls, Hi, Hs}
}

// IterFloat returns the operators valid on floats.
func IterFloat() []Comparison {
	return []Comparison{Eq, Ne, Lt, Le, Gt, Ge, Equ, Neu, Ltu, Leu, Gtu, Geu, Num, Nan}
}

// Signed reports whether c is allowed on signed integer operands.
func (c Comparison) Signed() bool {
	return c <= Ge
}

// Int evaluates c on integers. lo, ls, hi and hs are the unsigned spellings
// of lt, le, gt and ge; the operand type decides the ordering.
func Int[T scalar.Integer](c Comparison, a, b T) bool {
	switch c {
	case Eq, Equ:
		return a == b
	case Ne, Neu:
		return a != b
	case Lt, Lo, Ltu:
		return a < b
	case Le, Ls, Leu:
		return a <= b
	case Gt, Hi, Gtu:
		return a > b
	case Ge, Hs, Geu:
		return a >= b
	case Num:
		return true
	}
	return false
}

// Float32 evaluates c on binary32 operands after flushing subnormals if ftz is
// set. Ordered operators are false when either operand is NaN, unordered ones
// are true.
func Float32(c Comparison, a, b float32, ftz bool) bool {
	return compareFloat(c, float64(FlushF32(a, ftz)), float64(FlushF32(b, ftz)))
}

func compareFloat(c Comparison, a, b float64) bool {
	unordered := math.IsNaN(a) || math.IsNaN(b)
	switch c {
	case Num:
		return !unordered
	case Nan:
		return unordered
	case Equ, Neu, Ltu, Leu, Gtu, Geu:
		if unordered {
			return true
		}
	default:
		if unordered {
			return false
		}
	}
	switch c {
	case Eq, Equ:
		return a == b
	case Ne, Neu:
		return a != b
	case Lt, Lo, Ltu:
		return a < b
	case Le, Ls, Leu:
		return a <= b
	case Gt, Hi, Gtu:
		return a > b
	}
	return a >= b
}
