// Package scalar describes the element types a test can move to and from the
// device, and how tuples of them are laid out in columnar host buffers.
package scalar

import (
	"fmt"
	"math"
)

// Kind describes one device element type.
type Kind struct {
	// Name is the PTX type suffix, e.g. "u32", "s16", "f32".
	Name string
	// Size is the width in bytes.
	Size  int
	Float bool
	// Unsigned is true when the smallest value of the type is zero.
	Unsigned bool
}

// Signed reports whether the kind is a signed integer.
func (k Kind) Signed() bool {
	return !k.Float && !k.Unsigned
}

// Bits is the width in bits.
func (k Kind) Bits() int {
	return k.Size * 8
}

func (k Kind) String() string {
	return k.Name
}

// Scalar is the set of Go types that map onto a device element type.
// F16, E4M3 and E5M2 are covered through their underlying integer types.
type Scalar interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

// Integer is the integer subset of Scalar.
type Integer interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

var (
	U8    = Kind{Name: "u8", Size: 1, Unsigned: true}
	S8    = Kind{Name: "s8", Size: 1}
	U16   = Kind{Name: "u16", Size: 2, Unsigned: true}
	S16   = Kind{Name: "s16", Size: 2}
	U32   = Kind{Name: "u32", Size: 4, Unsigned: true}
	S32   = Kind{Name: "s32", Size: 4}
	U64   = Kind{Name: "u64", Size: 8, Unsigned: true}
	S64   = Kind{Name: "s64", Size: 8}
	F16K  = Kind{Name: "f16", Size: 2, Float: true}
	F32   = Kind{Name: "f32", Size: 4, Float: true}
	F64   = Kind{Name: "f64", Size: 8, Float: true}
	E4M3K = Kind{Name: "e4m3", Size: 1, Float: true}
	E5M2K = Kind{Name: "e5m2", Size: 1, Float: true}
	Pred  = Kind{Name: "pred", Size: 1, Unsigned: true}
)

// KindOf returns the descriptor for T. The choice is made on the static type
// only, never on a value.
func KindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return U8
	case int8:
		return S8
	case uint16:
		return U16
	case int16:
		return S16
	case uint32:
		return U32
	case int32:
		return S32
	case uint64:
		return U64
	case int64:
		return S64
	case F16:
		return F16K
	case float32:
		return F32
	case float64:
		return F64
	case E4M3:
		return E4M3K
	case E5M2:
		return E5M2K
	}
	panic(fmt.Sprintf("scalar: unsupported element type %T", zero))
}

// ToBits returns the raw little-endian payload of v widened to 64 bits.
// Only the low Size bytes are meaningful.
func ToBits[T Scalar](v T) uint64 {
	switch x := any(v).(type) {
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	return uint64(v)
}

// FromBits rebuilds a T from its raw payload.
func FromBits[T Scalar](b uint64) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(math.Float32frombits(uint32(b))).(T)
	case float64:
		return any(math.Float64frombits(b)).(T)
	}
	return T(b)
}

// MinMax returns the bounds of an integer kind. It panics for float kinds.
func MinMax(k Kind) (min int64, max uint64) {
	if k.Float {
		panic("scalar: MinMax on float kind " + k.Name)
	}
	bits := k.Bits()
	if k.Unsigned {
		if bits == 64 {
			return 0, math.MaxUint64
		}
		return 0, 1<<bits - 1
	}
	return -1 << (bits - 1), 1<<(bits-1) - 1
}
