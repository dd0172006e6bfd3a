package testcase

import (
	"math"
	"math/rand/v2"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// Shifts returns the shl, shr, shf, prmt, dp4a, dp2a and vshr tests.
func Shifts() []Case {
	cases := []Case{
		shift[uint16]("shl", "b16", func(v uint16, s uint16) uint16 { return v << s }),
		shift[uint16]("shr", "u16", func(v uint16, s uint16) uint16 { return v >> s }),
		shift[int16]("shr", "s16", func(v int16, s uint16) int16 { return v >> s }),
	}
	for _, left := range []bool{true, false} {
		for _, clamp := range []bool{true, false} {
			cases = append(cases, shf(left, clamp))
		}
	}
	for _, m := range prmtModes {
		cases = append(cases, prmt(m))
	}
	for _, as := range []bool{false, true} {
		for _, bs := range []bool{false, true} {
			cases = append(cases, dp4a(as, bs))
			for _, hi := range []bool{false, true} {
				cases = append(cases, dp2a(hi, as, bs))
			}
		}
	}
	for _, ds := range []bool{false, true} {
		for _, as := range []bool{true, false} {
			for _, sat := range []bool{false, true} {
				for _, clamp := range []bool{true, false} {
					for _, add := range []bool{false, true} {
						cases = append(cases, vshr(ds, as, sat, clamp, add))
					}
				}
			}
		}
	}
	return cases
}

// shift tests a 16-bit shift by every amount up to 0xffff. Go already gives
// the device result for amounts past the width: zero, or the sign fill for
// a signed right shift.
func shift[T int16 | uint16](op, typ string, host func(T, uint16) T) Case {
	return rangeCase(op+"_"+typ, engine.RangeTest[scalar.Pair[T, uint16], T]{
		Test: engine.Test[scalar.Pair[T, uint16], T]{
			Body:   ptx.Fill(template("shift"), "<OP>", op, "<TYPE>", typ),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[T](), scalar.Of[uint16]()),
			Output: scalar.Of[T](),
			Verify: func(in scalar.Pair[T, uint16], out T) (T, bool) {
				return eq(host(in.A, in.B), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: func(i uint32) scalar.Pair[T, uint16] {
			return scalar.P2(T(i&0xffff), uint16(i>>16))
		},
	})
}

// funnelShift computes shf: the 64-bit value b:a shifted and cut back to 32
// bits. Shifts of 32 or more produce zero on each half.
func funnelShift(left, clamp bool, a, b, c uint32) uint32 {
	n := c & 0x1f
	if clamp {
		n = min(c, 32)
	}
	if left {
		return b<<n | a>>(32-n)
	}
	return b<<(32-n) | a>>n
}

func shf(left, clamp bool) Case {
	dir, mode := "r", "wrap"
	if left {
		dir = "l"
	}
	if clamp {
		mode = "clamp"
	}
	return randomCase("shf_"+dir+"_"+mode+"_b32", engine.RandomTest[scalar.Triple[uint32, uint32, uint32], uint32]{
		Test: engine.Test[scalar.Triple[uint32, uint32, uint32], uint32]{
			Body:   ptx.Fill(template("shf"), "<DIR>", dir, "<MODE>", mode),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[uint32](), scalar.Of[uint32](), scalar.Of[uint32]()),
			Output: scalar.Of[uint32](),
			Verify: func(in scalar.Triple[uint32, uint32, uint32], out uint32) (uint32, bool) {
				return eq(funnelShift(left, clamp, in.A, in.B, in.C), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[uint32, uint32, uint32] {
			return scalar.P3(r.Uint32(), r.Uint32(), r.Uint32())
		},
	})
}

// prmtMode is a byte permute mode. A table maps the two low bits of the
// selector to source byte indices, most significant result byte first.
type prmtMode struct {
	name  string
	table *[4][4]uint8
}

var prmtModes = []prmtMode{
	{name: ""},
	{name: "f4e", table: &[4][4]uint8{{3, 2, 1, 0}, {4, 3, 2, 1}, {5, 4, 3, 2}, {6, 5, 4, 3}}},
	{name: "b4e", table: &[4][4]uint8{{5, 6, 7, 0}, {6, 7, 0, 1}, {7, 0, 1, 2}, {0, 1, 2, 3}}},
	{name: "rc8", table: &[4][4]uint8{{0, 0, 0, 0}, {1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}}},
	{name: "ecl", table: &[4][4]uint8{{3, 2, 1, 0}, {3, 2, 1, 1}, {3, 2, 2, 2}, {3, 3, 3, 3}}},
	{name: "ecr", table: &[4][4]uint8{{0, 0, 0, 0}, {1, 1, 1, 0}, {2, 2, 1, 0}, {3, 2, 1, 0}}},
	{name: "rc16", table: &[4][4]uint8{{1, 0, 1, 0}, {3, 2, 3, 2}, {1, 0, 1, 0}, {3, 2, 3, 2}}},
}

// permute computes prmt over the eight bytes of b:a.
func permute(m prmtMode, a, b, c uint32) uint32 {
	var src [8]byte
	for i := 0; i < 4; i++ {
		src[i] = byte(a >> (8 * i))
		src[4+i] = byte(b >> (8 * i))
	}
	var d uint32
	if m.table == nil {
		for i := 0; i < 4; i++ {
			n := c >> (4 * i) & 0xf
			v := src[n&7]
			if n&8 != 0 {
				v = 0
				if src[n&7]&0x80 != 0 {
					v = 0xff
				}
			}
			d |= uint32(v) << (8 * i)
		}
		return d
	}
	row := m.table[c&3]
	for i, idx := range row {
		d |= uint32(src[idx]) << (8 * (3 - i))
	}
	return d
}

const (
	prmtA = 0x04030201
	prmtB = 0x08070605
)

func prmt(m prmtMode) Case {
	name := "prmt" + opt(m.name != "", "_"+m.name)
	return rangeCase(name, engine.RangeTest[scalar.Triple[uint32, uint32, uint32], uint32]{
		Test: engine.Test[scalar.Triple[uint32, uint32, uint32], uint32]{
			Body:   ptx.Fill(template("prmt"), "<MODE>", opt(m.name != "", "."+m.name)),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[uint32](), scalar.Of[uint32](), scalar.Of[uint32]()),
			Output: scalar.Of[uint32](),
			Verify: func(in scalar.Triple[uint32, uint32, uint32], out uint32) (uint32, bool) {
				return eq(permute(m, in.A, in.B, in.C), out)
			},
		},
		MaxValue: 0xffff,
		Generate: func(i uint32) scalar.Triple[uint32, uint32, uint32] {
			return scalar.P3(uint32(prmtA), uint32(prmtB), i)
		},
	})
}

func signedName(signed bool) string {
	if signed {
		return "s32"
	}
	return "u32"
}

func lane(v uint32, shift, width int, signed bool) int32 {
	x := v >> shift
	switch {
	case width == 8 && signed:
		return int32(int8(x))
	case width == 8:
		return int32(uint8(x))
	case signed:
		return int32(int16(x))
	}
	return int32(uint16(x))
}

// dot4 computes dp4a: four byte products accumulated onto c with
// wraparound.
func dot4(a, b, c uint32, as, bs bool) uint32 {
	acc := c
	for i := 0; i < 4; i++ {
		acc += uint32(lane(a, 8*i, 8, as) * lane(b, 8*i, 8, bs))
	}
	return acc
}

// dot2 computes dp2a: the two halves of a against bytes 0,1 (lo) or 2,3
// (hi) of b.
func dot2(a, b, c uint32, hi, as, bs bool) uint32 {
	base := 0
	if hi {
		base = 2
	}
	acc := c
	for i := 0; i < 2; i++ {
		acc += uint32(lane(a, 16*i, 16, as) * lane(b, 8*(base+i), 8, bs))
	}
	return acc
}

type dotInput = scalar.Triple[uint32, uint32, uint32]

func dotTest(name, op string, as, bs bool, host func(a, b, c uint32) uint32) Case {
	return randomCase(name, engine.RandomTest[dotInput, uint32]{
		Test: engine.Test[dotInput, uint32]{
			Body: ptx.Fill(template("dot"),
				"<OP>", op,
				"<ATYPE>", signedName(as),
				"<BTYPE>", signedName(bs),
				"<CTYPE>", signedName(as || bs)),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[uint32](), scalar.Of[uint32](), scalar.Of[uint32]()),
			Output: scalar.Of[uint32](),
			Verify: func(in dotInput, out uint32) (uint32, bool) {
				return eq(host(in.A, in.B, in.C), out)
			},
		},
		Generate: func(r *rand.Rand) dotInput {
			return scalar.P3(r.Uint32(), r.Uint32(), r.Uint32())
		},
	})
}

func dp4a(as, bs bool) Case {
	name := "dp4a_" + signedName(as) + "_" + signedName(bs)
	return dotTest(name, "dp4a", as, bs, func(a, b, c uint32) uint32 {
		return dot4(a, b, c, as, bs)
	})
}

func dp2a(hi, as, bs bool) Case {
	name := "dp2a_" + halfName(hi) + "_" + signedName(as) + "_" + signedName(bs)
	return dotTest(name, "dp2a."+halfName(hi), as, bs, func(a, b, c uint32) uint32 {
		return dot2(a, b, c, hi, as, bs)
	})
}

// videoShift computes vshr on the raw 32-bit operands: the shift, then the
// optional saturation to the destination type, then the optional add.
func videoShift(a, b, c uint32, ds, as, sat, clamp, add bool) uint32 {
	av := int64(a)
	if as {
		av = int64(int32(a))
	}
	var t int64
	switch {
	case clamp && b >= 32:
		if av < 0 {
			t = -1
		}
	case clamp:
		t = av >> b
	default:
		t = av >> (b & 0x1f)
	}
	if sat {
		if ds {
			t = max(math.MinInt32, min(math.MaxInt32, t))
		} else {
			t = max(0, min(math.MaxUint32, t))
		}
	}
	d := uint32(t)
	if add {
		d += c
	}
	return d
}

func vshr(ds, as, sat, clamp, add bool) Case {
	mode := "wrap"
	if clamp {
		mode = "clamp"
	}
	name := "vshr_" + signedName(ds) + "_" + signedName(as) + "_u32" +
		opt(sat, "_sat") + "_" + mode + opt(add, "_add")
	return randomCase(name, engine.RandomTest[dotInput, uint32]{
		Test: engine.Test[dotInput, uint32]{
			Body: ptx.Fill(template("vshr"),
				"<DTYPE>", signedName(ds),
				"<ATYPE>", signedName(as),
				"<SAT>", opt(sat, ".sat"),
				"<MODE>", "."+mode,
				"<OP2>", opt(add, ".add"),
				"<OP2_ARGS>", opt(add, ", %c")),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[uint32](), scalar.Of[uint32](), scalar.Of[uint32]()),
			Output: scalar.Of[uint32](),
			Verify: func(in dotInput, out uint32) (uint32, bool) {
				return eq(videoShift(in.A, in.B, in.C, ds, as, sat, clamp, add), out)
			},
		},
		Generate: func(r *rand.Rand) dotInput {
			return scalar.P3(r.Uint32(), r.Uint32(), r.Uint32())
		},
	})
}
