package testcase

import (
	"encoding/binary"
	"math"
	"math/bits"
	"math/rand/v2"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// IntegerArithmetic returns the add, sub, carry-chain, mad, mul, mul24 and
// sad tests.
func IntegerArithmetic() []Case {
	cases := []Case{
		addSub[uint16]("add", func(a, b uint16) uint16 { return a + b }),
		addSub[int16]("add", func(a, b int16) int16 { return a + b }),
		addSub[uint16]("sub", func(a, b uint16) uint16 { return a - b }),
		addSub[int16]("sub", func(a, b int16) int16 { return a - b }),
		saturating("add", func(a, b int64) int64 { return a + b }),
		saturating("sub", func(a, b int64) int64 { return a - b }),
	}
	for _, sub := range []bool{false, true} {
		for _, cc := range []bool{false, true} {
			cases = append(cases, carry[uint32](sub, cc), carry[int32](sub, cc))
		}
	}
	for _, cc := range []bool{false, true} {
		cases = append(cases, madc[uint32](cc), madc[int32](cc))
	}
	cases = append(cases,
		madHalf[uint16](false), madHalf[int16](false),
		madHalf[uint16](true), madHalf[int16](true),
		madWide[uint16, uint32](), madWide[int16, int32](),
		madHiSat(),
		mulHalf[uint16](false), mulHalf[int16](false),
		mulHalf[uint16](true), mulHalf[int16](true),
		mulWide[uint16, uint32](), mulWide[int16, int32](),
		mul24[uint32](false), mul24[int32](false),
		mul24[uint32](true), mul24[int32](true),
		sad[uint16](), sad[int16](),
	)
	return cases
}

// splitHalves is the pair domain of the 16-bit range tests: the high half of
// the index is a, the low half b.
func splitHalves[T int16 | uint16](i uint32) scalar.Pair[T, T] {
	return scalar.P2(T(i>>16), T(i&0xffff))
}

func addSub[T int16 | uint16](op string, host func(a, b T) T) Case {
	name := kindName[T]()
	return rangeCase(op+"_"+name, engine.RangeTest[scalar.Pair[T, T], T]{
		Test: engine.Test[scalar.Pair[T, T], T]{
			Body:   ptx.Fill(template("binary"), "<OP>", op, "<TYPE>", name),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Pair[T, T], out T) (T, bool) {
				return eq(host(in.A, in.B), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: splitHalves[T],
	})
}

// spreadBytes maps an index onto two s32 operands whose set bits sit at both
// ends of the word, so that sums reach both saturation bounds.
func spreadBytes(i uint32) scalar.Pair[int32, int32] {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], i)
	a := binary.LittleEndian.Uint32([]byte{b[0], 0, 0, b[1]})
	c := binary.LittleEndian.Uint32([]byte{b[2], 0, 0, b[3]})
	return scalar.P2(int32(a), int32(c))
}

func clampS32(v int64) int32 {
	return int32(max(math.MinInt32, min(math.MaxInt32, v)))
}

func saturating(op string, host func(a, b int64) int64) Case {
	return rangeCase(op+"_sat_s32", engine.RangeTest[scalar.Pair[int32, int32], int32]{
		Test: engine.Test[scalar.Pair[int32, int32], int32]{
			Body:   ptx.Fill(template("binary"), "<OP>", op+".sat", "<TYPE>", "s32"),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[int32](), scalar.Of[int32]()),
			Output: scalar.Of[int32](),
			Verify: func(in scalar.Pair[int32, int32], out int32) (int32, bool) {
				return eq(clampS32(host(int64(in.A), int64(in.B))), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: spreadBytes,
	})
}

// withCarry packs a 32-bit result and the carry flag read back after it.
func withCarry(res uint32, cf bool) uint64 {
	var c uint64
	if cf {
		c = 1
	}
	return uint64(res) | c<<32
}

// carryChain computes addc and subc. The flag follows the device
// convention: for subtraction it is set when no borrow occurred. Without
// .cc the incoming flag is left untouched.
func carryChain(sub, cc bool, a, b, cin uint32) uint64 {
	in := cin != 0
	if sub {
		in = !in
	}
	var ci uint32
	if in {
		ci = 1
	}
	rhs, c2 := bits.Add32(b, ci, 0)
	var res, c1 uint32
	if sub {
		res, c1 = bits.Sub32(a, rhs, 0)
	} else {
		res, c1 = bits.Add32(a, rhs, 0)
	}
	out := cin != 0
	if cc {
		out = c1 != 0 || c2 != 0
		if sub {
			out = !out
		}
	}
	return withCarry(res, out)
}

func carry[T int32 | uint32](sub, cc bool) Case {
	op := "addc"
	if sub {
		op = "subc"
	}
	// the unsigned forms keep their historical unsuffixed names
	name := op + opt(cc, "_cc") + opt(scalar.KindOf[T]().Signed(), "_"+kindName[T]())
	return randomCase(name, engine.RandomTest[scalar.Triple[T, T, uint32], uint64]{
		Test: engine.Test[scalar.Triple[T, T, uint32], uint64]{
			Body:   ptx.Fill(template("carry"), "<OP>", op, "<CC>", opt(cc, ".cc"), "<TYPE>", kindName[T]()),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[T](), scalar.Of[T](), scalar.Of[uint32]()),
			Output: scalar.Of[uint64](),
			Verify: func(in scalar.Triple[T, T, uint32], out uint64) (uint64, bool) {
				return eq(carryChain(sub, cc, uint32(in.A), uint32(in.B), in.C), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[T, T, uint32] {
			return scalar.P3(randInt[T](r), randInt[T](r), uint32(r.IntN(2)))
		},
	})
}

// multiplyAddCarry computes madc.lo: the low product half plus c plus the
// incoming carry.
func multiplyAddCarry(cc bool, a, b, c, cin uint32) uint64 {
	lhs := a * b
	rhs, c2 := bits.Add32(c, cin&1, 0)
	res, c3 := bits.Add32(lhs, rhs, 0)
	out := cin != 0
	if cc {
		out = c2 != 0 || c3 != 0
	}
	return withCarry(res, out)
}

func madc[T int32 | uint32](cc bool) Case {
	name := "madc" + opt(cc, "_cc") + "_" + kindName[T]()
	return randomCase(name, engine.RandomTest[scalar.Quad[T, T, T, uint32], uint64]{
		Test: engine.Test[scalar.Quad[T, T, T, uint32], uint64]{
			Body:   ptx.Fill(template("madc"), "<CC>", opt(cc, ".cc"), "<TYPE>", kindName[T]()),
			Args:   []string{"input_a", "input_b", "input_c", "input_d", "output"},
			Input:  scalar.QuadOf(scalar.Of[T](), scalar.Of[T](), scalar.Of[T](), scalar.Of[uint32]()),
			Output: scalar.Of[uint64](),
			Verify: func(in scalar.Quad[T, T, T, uint32], out uint64) (uint64, bool) {
				return eq(multiplyAddCarry(cc, uint32(in.A), uint32(in.B), uint32(in.C), in.D), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Quad[T, T, T, uint32] {
			return scalar.P4(randInt[T](r), randInt[T](r), randInt[T](r), uint32(r.IntN(2)))
		},
	})
}

func halfName(hi bool) string {
	if hi {
		return "hi"
	}
	return "lo"
}

func madHalf[T int16 | uint16](hi bool) Case {
	name := kindName[T]()
	return randomCase("mad_"+halfName(hi)+"_"+name, engine.RandomTest[scalar.Triple[T, T, T], T]{
		Test: engine.Test[scalar.Triple[T, T, T], T]{
			Body: ptx.Fill(template("mad"),
				"<MODE>", "."+halfName(hi), "<SAT>", "", "<STYPE>", name, "<DTYPE>", name),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[T](), scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Triple[T, T, T], out T) (T, bool) {
				lo, h := fpmodel.MulWide(in.A, in.B)
				if hi {
					lo = h
				}
				return eq(lo+in.C, out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[T, T, T] {
			return scalar.P3(randInt[T](r), randInt[T](r), randInt[T](r))
		},
	})
}

// madWide multiplies two T into the double-width U and adds a U.
func madWide[T int16 | uint16, U int32 | uint32]() Case {
	s, d := kindName[T](), kindName[U]()
	return randomCase("mad_wide_"+s, engine.RandomTest[scalar.Triple[T, T, U], U]{
		Test: engine.Test[scalar.Triple[T, T, U], U]{
			Body: ptx.Fill(template("mad"),
				"<MODE>", ".wide", "<SAT>", "", "<STYPE>", s, "<DTYPE>", d),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[T](), scalar.Of[T](), scalar.Of[U]()),
			Output: scalar.Of[U](),
			Verify: func(in scalar.Triple[T, T, U], out U) (U, bool) {
				return eq(U(in.A)*U(in.B)+in.C, out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[T, T, U] {
			return scalar.P3(randInt[T](r), randInt[T](r), randInt[U](r))
		},
	})
}

func madHiSat() Case {
	return randomCase("mad_hi_sat_s32", engine.RandomTest[scalar.Triple[int32, int32, int32], int32]{
		Test: engine.Test[scalar.Triple[int32, int32, int32], int32]{
			Body: ptx.Fill(template("mad"),
				"<MODE>", ".hi", "<SAT>", ".sat", "<STYPE>", "s32", "<DTYPE>", "s32"),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[int32](), scalar.Of[int32](), scalar.Of[int32]()),
			Output: scalar.Of[int32](),
			Verify: func(in scalar.Triple[int32, int32, int32], out int32) (int32, bool) {
				_, hi := fpmodel.MulWide(in.A, in.B)
				return eq(clampS32(int64(hi)+int64(in.C)), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[int32, int32, int32] {
			return scalar.P3(randInt[int32](r), randInt[int32](r), randInt[int32](r))
		},
	})
}

// mulOperands is the 16-bit multiply domain: a is the low half of the
// index, b the high half.
func mulOperands[T int16 | uint16](i uint32) scalar.Pair[T, T] {
	return scalar.P2(T(i&0xffff), T(i>>16))
}

func mulHalf[T int16 | uint16](hi bool) Case {
	name := kindName[T]()
	return rangeCase("mul_"+halfName(hi)+"_"+name, engine.RangeTest[scalar.Pair[T, T], T]{
		Test: engine.Test[scalar.Pair[T, T], T]{
			Body: ptx.Fill(template("mul"),
				"<OP>", "mul", "<MODE>", "."+halfName(hi), "<STYPE>", name, "<DTYPE>", name),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Pair[T, T], out T) (T, bool) {
				lo, h := fpmodel.MulWide(in.A, in.B)
				if hi {
					return eq(h, out)
				}
				return eq(lo, out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: mulOperands[T],
	})
}

func mulWide[T int16 | uint16, U int32 | uint32]() Case {
	s, d := kindName[T](), kindName[U]()
	return rangeCase("mul_wide_"+s, engine.RangeTest[scalar.Pair[T, T], U]{
		Test: engine.Test[scalar.Pair[T, T], U]{
			Body: ptx.Fill(template("mul"),
				"<OP>", "mul", "<MODE>", ".wide", "<STYPE>", s, "<DTYPE>", d),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[U](),
			Verify: func(in scalar.Pair[T, T], out U) (U, bool) {
				return eq(U(in.A)*U(in.B), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: mulOperands[T],
	})
}

// low24 is the operand mul24 actually multiplies.
func low24[T int32 | uint32](v T) int64 {
	if scalar.KindOf[T]().Signed() {
		return int64(int32(uint32(v)<<8) >> 8)
	}
	return int64(uint32(v) & 0xffffff)
}

// mul24Host returns the selected half of the 48-bit product: lo is the low
// 32 bits, hi bits 16 through 47.
func mul24Host[T int32 | uint32](a, b T, hi bool) T {
	p := low24(a) * low24(b)
	if hi {
		return T(uint32(p >> 16))
	}
	return T(uint32(p))
}

func mul24[T int32 | uint32](hi bool) Case {
	name := kindName[T]()
	return randomCase("mul24_"+halfName(hi)+"_"+name, engine.RandomTest[scalar.Pair[T, T], T]{
		Test: engine.Test[scalar.Pair[T, T], T]{
			Body: ptx.Fill(template("mul"),
				"<OP>", "mul24", "<MODE>", "."+halfName(hi), "<STYPE>", name, "<DTYPE>", name),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Pair[T, T], out T) (T, bool) {
				return eq(mul24Host(in.A, in.B, hi), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Pair[T, T] {
			return scalar.P2(randInt[T](r), randInt[T](r))
		},
	})
}

// nibbles spreads a byte into the top and bottom nibble of a 16-bit value.
func nibbles(b uint32) uint16 {
	return uint16((b>>4)<<12 | b&0xf)
}

// sadOperands: c is the low half of the index; a and b come from the two
// upper bytes.
func sadOperands[T int16 | uint16](i uint32) scalar.Triple[T, T, T] {
	a := nibbles(i >> 16 & 0xff)
	b := nibbles(i >> 24)
	return scalar.P3(T(a), T(b), T(i&0xffff))
}

func sad[T int16 | uint16]() Case {
	name := kindName[T]()
	return rangeCase("sad_"+name, engine.RangeTest[scalar.Triple[T, T, T], T]{
		Test: engine.Test[scalar.Triple[T, T, T], T]{
			Body:   ptx.Fill(template("sad"), "<TYPE>", name),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[T](), scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Triple[T, T, T], out T) (T, bool) {
				d := in.A - in.B
				if in.A < in.B {
					d = in.B - in.A
				}
				return eq(in.C+d, out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: sadOperands[T],
	})
}
