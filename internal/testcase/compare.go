package testcase

import (
	"math"
	"math/rand/v2"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// Compare returns the set, testp and cvt.pack tests.
func Compare() []Case {
	var cases []Case
	for _, cmp := range fpmodel.IterInt() {
		cases = append(cases, setInt[uint16](cmp, nil))
		if cmp.Signed() {
			cases = append(cases, setInt[int16](cmp, nil))
		}
		for _, op := range boolOps {
			for _, pred := range []bool{true, false} {
				cases = append(cases, setInt[uint16](cmp, &predicate{op, pred}))
				if cmp.Signed() {
					cases = append(cases, setInt[int16](cmp, &predicate{op, pred}))
				}
			}
		}
	}
	for _, cmp := range fpmodel.IterFloat() {
		for _, op := range boolOps {
			for _, ftz := range []bool{false, true} {
				cases = append(cases, setFloat(cmp, op, ftz))
			}
		}
	}
	for _, m := range testpModes {
		cases = append(cases, testp(m))
	}
	cases = append(cases, cvtPack[uint8](), cvtPack[int8]())
	return cases
}

// boolOp combines a comparison with a predicate operand.
type boolOp string

const (
	boolAnd boolOp = "and"
	boolOr  boolOp = "or"
	boolXor boolOp = "xor"
)

var boolOps = []boolOp{boolAnd, boolOr, boolXor}

func (op boolOp) apply(a, b bool) bool {
	switch op {
	case boolAnd:
		return a && b
	case boolOr:
		return a || b
	}
	return a != b
}

// predicate is the constant operand of the integer set tests.
type predicate struct {
	op    boolOp
	value bool
}

func setInt[T int16 | uint16](cmp fpmodel.Comparison, p *predicate) Case {
	src := kindName[T]()
	name := "set_" + cmp.String()
	body := []string{"<CMP>", cmp.String(), "<STYPE>", src, "<DTYPE>", "u32"}
	if p == nil {
		body = append(body, "<BOOL_OP>", "", "<PRED>", "0", "<PRED_ARG>", "")
	} else {
		name += "_" + string(p.op)
		pv := "0"
		if p.value {
			pv = "1"
		}
		body = append(body, "<BOOL_OP>", "."+string(p.op), "<PRED>", pv, "<PRED_ARG>", ", %p")
	}
	name += "_u32_" + src
	if p != nil {
		name += opt(p.value, "_true") + opt(!p.value, "_false")
	}
	return rangeCase(name, engine.RangeTest[scalar.Pair[T, T], uint32]{
		Test: engine.Test[scalar.Pair[T, T], uint32]{
			Body:   ptx.Fill(template("set"), body...),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[T](), scalar.Of[T]()),
			Output: scalar.Of[uint32](),
			Verify: func(in scalar.Pair[T, T], out uint32) (uint32, bool) {
				r := fpmodel.Int(cmp, in.A, in.B)
				if p != nil {
					r = p.op.apply(r, p.value)
				}
				var expected uint32
				if r {
					expected = 0xffffffff
				}
				return eq(expected, out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: splitHalves[T],
	})
}

// specialPairs returns the operand pairs the float tests mix into their
// random stream. Some slots take a fresh random operand.
func specialPairs(r *rand.Rand) [][2]float32 {
	maxNeg := f32(fpmodel.MaxNegativeSubnormal)
	maxPos := f32(fpmodel.MaxPositiveSubnormal)
	inf, nan := inf32(1), nan32()
	return [][2]float32{
		{0, inf},
		{inf, 0},
		{inf, negZero32()},
		{-inf, 0},
		{-inf, negZero32()},
		{nan, 0},
		{nan, negZero32()},
		{0, nan},
		{nan, 1},
		{maxNeg, maxPos},
		{maxNeg, randF32(r)},
		{maxPos, randF32(r)},
		{randF32(r), maxPos},
		{randF32(r), maxNeg},
		{maxPos, 1},
		{maxPos, 2},
	}
}

// extendedSpecialPairs adds the smallest subnormals to specialPairs.
func extendedSpecialPairs(r *rand.Rand) [][2]float32 {
	minNeg := f32(fpmodel.MinNegativeSubnormal)
	minPos := f32(fpmodel.MinPositiveSubnormal)
	return append(specialPairs(r),
		[2]float32{minNeg, minPos},
		[2]float32{minNeg, randF32(r)},
		[2]float32{minPos, randF32(r)},
		[2]float32{randF32(r), minPos},
		[2]float32{randF32(r), minNeg},
		[2]float32{minPos, 1},
		[2]float32{minPos, 10},
	)
}

// specialOrRandom picks one of the special pairs 1% of the time and two
// random floats otherwise.
func specialOrRandom(r *rand.Rand, specials func(*rand.Rand) [][2]float32) (float32, float32) {
	if chance(r, 0.01) {
		s := specials(r)
		p := s[r.IntN(len(s))]
		return p[0], p[1]
	}
	return randF32(r), randF32(r)
}

func setFloat(cmp fpmodel.Comparison, op boolOp, ftz bool) Case {
	name := "set_" + cmp.String() + "_" + string(op) + opt(ftz, "_ftz") + "_f32_f32"
	return randomCase(name, engine.RandomTest[scalar.Triple[float32, float32, bool], float32]{
		Test: engine.Test[scalar.Triple[float32, float32, bool], float32]{
			Body: ptx.Fill(template("set_bool"),
				"<CMP>", cmp.String(), "<BOOL_OP>", string(op), "<FTZ>", opt(ftz, ".ftz")),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[float32](), scalar.Of[float32](), scalar.Bool()),
			Output: scalar.Of[float32](),
			Verify: func(in scalar.Triple[float32, float32, bool], out float32) (float32, bool) {
				var expected float32
				if op.apply(fpmodel.Float32(cmp, in.A, in.B, ftz), in.C) {
					expected = 1
				}
				return sameF32(expected, out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[float32, float32, bool] {
			a, b := specialOrRandom(r, specialPairs)
			return scalar.P3(a, b, randBool(r))
		},
	})
}

type testpMode string

var testpModes = []testpMode{"finite", "infinite", "number", "notanumber", "normal", "subnormal"}

// classify evaluates testp. Zero counts as normal on the device.
func (m testpMode) classify(x float32) bool {
	v := float64(x)
	switch m {
	case "finite":
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case "infinite":
		return math.IsInf(v, 0)
	case "number":
		return !math.IsNaN(v)
	case "notanumber":
		return math.IsNaN(v)
	case "normal":
		return x == 0 || !math.IsNaN(v) && !math.IsInf(v, 0) && !fpmodel.IsSubnormal32(x)
	}
	return fpmodel.IsSubnormal32(x)
}

func testp(m testpMode) Case {
	return rangeCase("testp_"+string(m)+"_f32", engine.RangeTest[float32, uint32]{
		Test: engine.Test[float32, uint32]{
			Body:   ptx.Fill(template("testp"), "<MODE>", string(m), "<TYPE>", "f32"),
			Args:   []string{"input", "output"},
			Input:  scalar.Of[float32](),
			Output: scalar.Of[uint32](),
			Verify: func(in float32, out uint32) (uint32, bool) {
				var expected uint32
				if m.classify(in) {
					expected = 1
				}
				return eq(expected, out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: f32,
	})
}

// packSaturated computes cvt.pack.sat: a and b clamped to T, b in the low
// byte, a above it and c shifted into the upper half.
func packSaturated[T int8 | uint8](a, b int32, c uint32) uint32 {
	lo, hi := scalar.MinMax(scalar.KindOf[T]())
	clamp := func(v int32) uint32 {
		return uint32(uint8(max(int32(lo), min(int32(hi), v))))
	}
	return clamp(b) | clamp(a)<<8 | c<<16
}

func cvtPack[T int8 | uint8]() Case {
	name := kindName[T]()
	return randomCase("cvt_pack_sat_"+name+"_s32_b32", engine.RandomTest[scalar.Triple[int32, int32, uint32], uint32]{
		Test: engine.Test[scalar.Triple[int32, int32, uint32], uint32]{
			Body:   ptx.Fill(template("cvt_pack"), "<TYPE>", name),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[int32](), scalar.Of[int32](), scalar.Of[uint32]()),
			Output: scalar.Of[uint32](),
			Verify: func(in scalar.Triple[int32, int32, uint32], out uint32) (uint32, bool) {
				return eq(packSaturated[T](in.A, in.B, in.C), out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[int32, int32, uint32] {
			return scalar.P3(randInt[int32](r), randInt[int32](r), r.Uint32())
		},
	})
}
