package testcase

import (
	"math/bits"
	"math/rand/v2"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// BitField returns the bfe, bfi and brev tests.
func BitField() []Case {
	return []Case{
		bfe[uint32](),
		bfe[int32](),
		bfe[uint64](),
		bfe[int64](),
		bfi[uint32](),
		bfi[uint64](),
		brev(),
	}
}

// fieldOperand draws a position or length. Values past the operand width
// are deliberately common.
func fieldOperand(r *rand.Rand) uint32 {
	return uint32(uint16(r.Uint32()) & 0x1ff)
}

// fieldBounds applies the operand truncation of bfe and bfi: the 32-bit
// forms read only the low byte of pos and len, the 64-bit forms the whole
// register.
func fieldBounds(width int, pos, length uint32) (uint32, uint32) {
	if width == 32 {
		return pos & 0xff, length & 0xff
	}
	return pos, length
}

// extractField computes bfe.
func extractField[T scalar.Integer](value T, pos, length uint32) T {
	k := scalar.KindOf[T]()
	pos, length = fieldBounds(k.Bits(), pos, length)
	msb := uint32(k.Bits() - 1)
	v := uint64(value)
	bit := func(i uint32) uint64 { return v >> i & 1 }

	var sbit uint64
	if k.Signed() && length != 0 {
		sbit = bit(min(pos+length-1, msb))
	}
	var d uint64
	for i := uint32(0); i <= msb; i++ {
		b := sbit
		if i < length && pos+i <= msb {
			b = bit(pos + i)
		}
		d |= b << i
	}
	return T(d)
}

// insertField computes bfi: length bits of a placed into b at pos.
func insertField[T scalar.Integer](a, b T, pos, length uint32) T {
	width := scalar.KindOf[T]().Bits()
	pos, length = fieldBounds(width, pos, length)
	msb := uint32(width - 1)
	src, f := uint64(a), uint64(b)
	for i := uint32(0); i < length; i++ {
		if pos+i > msb {
			break
		}
		at := pos + i
		f = f&^(1<<at) | (src>>i&1)<<at
	}
	return T(f)
}

func bfe[T scalar.Integer]() Case {
	name := kindName[T]()
	return randomCase("bfe_rng_"+name, engine.RandomTest[scalar.Triple[T, uint32, uint32], T]{
		Test: engine.Test[scalar.Triple[T, uint32, uint32], T]{
			Body:   ptx.Fill(template("bfe"), "<TYPE>", name),
			Args:   []string{"input", "positions", "lengths", "output"},
			Input:  scalar.TripleOf(scalar.Of[T](), scalar.Of[uint32](), scalar.Of[uint32]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Triple[T, uint32, uint32], out T) (T, bool) {
				return eq(extractField(in.A, in.B, in.C), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[T, uint32, uint32] {
			return scalar.P3(randInt[T](r), fieldOperand(r), fieldOperand(r))
		},
	})
}

func bfi[T uint32 | uint64]() Case {
	name := bitsName[T]()
	return randomCase("bfi_rng_"+name, engine.RandomTest[scalar.Quad[T, T, uint32, uint32], T]{
		Test: engine.Test[scalar.Quad[T, T, uint32, uint32], T]{
			Body:   ptx.Fill(template("bfi"), "<TYPE>", name),
			Args:   []string{"input_a", "input_b", "positions", "lengths", "output"},
			Input:  scalar.QuadOf(scalar.Of[T](), scalar.Of[T](), scalar.Of[uint32](), scalar.Of[uint32]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Quad[T, T, uint32, uint32], out T) (T, bool) {
				return eq(insertField(in.A, in.B, in.C, in.D), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Quad[T, T, uint32, uint32] {
			return scalar.P4(randInt[T](r), randInt[T](r), fieldOperand(r), fieldOperand(r))
		},
	})
}

func brev() Case {
	return rangeCase("brev_b32", engine.RangeTest[uint32, uint32]{
		Test: engine.Test[uint32, uint32]{
			Body:   template("brev"),
			Args:   []string{"input", "output"},
			Input:  scalar.Of[uint32](),
			Output: scalar.Of[uint32](),
			Verify: func(in, out uint32) (uint32, bool) {
				return eq(bits.Reverse32(in), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: func(i uint32) uint32 { return i },
	})
}
