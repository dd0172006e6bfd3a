package fpmodel

import (
	"math/bits"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// MulWide returns the low and high halves of the double-width product a*b.
// Signed operands produce the two's complement halves of the signed product.
func MulWide[T scalar.Integer](a, b T) (lo, hi T) {
	k := scalar.KindOf[T]()
	n := k.Bits()
	if n < 64 {
		var p uint64
		if k.Signed() {
			p = uint64(int64(a) * int64(b))
		} else {
			p = uint64(a) * uint64(b)
		}
		return T(p), T(p >> n)
	}
	h, l := bits.Mul64(uint64(a), uint64(b))
	if k.Signed() {
		if a < 0 {
			h -= uint64(b)
		}
		if b < 0 {
			h -= uint64(a)
		}
	}
	return T(l), T(h)
}
