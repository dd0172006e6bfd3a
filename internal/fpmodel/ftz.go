package fpmodel

import (
	"math"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// Bit patterns of the binary32 subnormal boundaries.
const (
	MaxNegativeNormal    uint32 = 0x80800000
	MaxNegativeSubnormal uint32 = 0x807fffff
	MaxPositiveSubnormal uint32 = 0x007fffff
	MinPositiveSubnormal uint32 = 0x00000001
	MinNegativeSubnormal uint32 = 0x80000001

	MaxPositiveSubnormalF16 scalar.F16 = 0x03ff
	MaxNegativeSubnormalF16 scalar.F16 = 0x83ff
)

// FlushF32 replaces a subnormal x with a zero of the same sign when ftz is set.
func FlushF32(x float32, ftz bool) float32 {
	if !ftz {
		return x
	}
	b := math.Float32bits(x)
	if m := b &^ 0x80000000; m != 0 && m <= MaxPositiveSubnormal {
		return math.Float32frombits(b & 0x80000000)
	}
	return x
}

// FlushF16 is FlushF32 for binary16.
func FlushF16(x scalar.F16, ftz bool) scalar.F16 {
	if ftz && x.IsSubnormal() {
		return x & 0x8000
	}
	return x
}

// IsSubnormal32 reports whether x is a nonzero binary32 subnormal.
func IsSubnormal32(x float32) bool {
	m := math.Float32bits(x) &^ 0x80000000
	return m != 0 && m <= MaxPositiveSubnormal
}

// FlushWide32 flushes a wide intermediate that lies below the binary32
// normal range, before it is rounded to binary32.
func FlushWide32(x float64, ftz bool) float64 {
	if ftz && x != 0 && math.Abs(x) < 0x1p-126 {
		return math.Copysign(0, x)
	}
	return x
}
