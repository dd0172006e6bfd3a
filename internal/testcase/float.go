package testcase

import (
	"math"
	"math/rand/v2"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// FloatArithmetic returns the abs, neg, add, sub, mul, fma, div, min and max
// tests.
func FloatArithmetic() []Case {
	var cases []Case
	for _, ftz := range []bool{false, true} {
		cases = append(cases,
			unaryExact("abs", ftz, func(x float32) float32 { return float32(math.Abs(float64(x))) }),
			unaryExact("neg", ftz, func(x float32) float32 { return -x }),
		)
	}
	for _, rnd := range fpmodel.ExplicitRoundings() {
		for _, ftz := range []bool{false, true} {
			for _, sat := range []bool{false, true} {
				cases = append(cases,
					arith("add", rnd, ftz, sat),
					arith("sub", rnd, ftz, sat),
					arith("mul", rnd, ftz, sat),
					fma(rnd, ftz, sat),
				)
			}
		}
	}
	for _, ftz := range []bool{false, true} {
		for _, v := range divVariants {
			cases = append(cases, div(v, ftz))
		}
	}
	for _, ftz := range []bool{false, true} {
		for _, nan := range []bool{false, true} {
			cases = append(cases, minMax("min", ftz, nan), minMax("max", ftz, nan))
		}
	}
	return cases
}

func unaryExact(op string, ftz bool, host func(float32) float32) Case {
	return rangeCase(op+opt(ftz, "_ftz"), engine.RangeTest[float32, float32]{
		Test: engine.Test[float32, float32]{
			Body:   ptx.Fill(template("unary_f32"), "<OP>", op+opt(ftz, ".ftz")),
			Args:   []string{"input", "output"},
			Input:  scalar.Of[float32](),
			Output: scalar.Of[float32](),
			Verify: func(in, out float32) (float32, bool) {
				return sameF32(fpmodel.FlushF32(host(in), ftz), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: f32,
	})
}

// saturate32 clamps to [0, 1]; NaN and -0 become +0.
func saturate32(x float32, sat bool) float32 {
	if !sat {
		return x
	}
	return float32(fpmodel.SaturateUnit(float64(x)))
}

// arithHost computes add, sub and mul. Inputs are flushed first. A
// round-to-nearest multiply flushes its exact product before rounding; every
// other form flushes the rounded result.
func arithHost(op string, rnd fpmodel.Rounding, ftz, sat bool, a, b float32) float32 {
	a, b = fpmodel.FlushF32(a, ftz), fpmodel.FlushF32(b, ftz)
	r := fpmodel.WithMode(rnd.Mode(), func(env fpmodel.Env) float32 {
		switch op {
		case "add":
			return env.Add32(a, b)
		case "sub":
			return env.Sub32(a, b)
		}
		p := float64(a) * float64(b)
		if rnd == fpmodel.Rn && fpmodel.FlushWide32(p, ftz) != p {
			return float32(fpmodel.FlushWide32(p, ftz))
		}
		return env.Mul32(a, b)
	})
	return saturate32(fpmodel.FlushF32(r, ftz), sat)
}

func arithName(op string, rnd fpmodel.Rounding, ftz, sat bool) string {
	return op + "_" + rnd.String() + opt(ftz, "_ftz") + opt(sat, "_sat") + "_f32"
}

func arithModifiers(rnd fpmodel.Rounding, ftz, sat bool) string {
	return rnd.PTX() + opt(ftz, ".ftz") + opt(sat, ".sat")
}

func arith(op string, rnd fpmodel.Rounding, ftz, sat bool) Case {
	specials := specialPairs
	if op != "sub" {
		specials = extendedSpecialPairs
	}
	return randomCase(arithName(op, rnd, ftz, sat), engine.RandomTest[scalar.Pair[float32, float32], float32]{
		Test: engine.Test[scalar.Pair[float32, float32], float32]{
			Body:   ptx.Fill(template("binary_f32"), "<OP>", op+arithModifiers(rnd, ftz, sat)),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[float32](), scalar.Of[float32]()),
			Output: scalar.Of[float32](),
			Verify: func(in scalar.Pair[float32, float32], out float32) (float32, bool) {
				expected := arithHost(op, rnd, ftz, sat, in.A, in.B)
				if op == "add" && expected == 0 && out == 0 {
					return expected, true
				}
				return sameF32(expected, out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Pair[float32, float32] {
			a, b := specialOrRandom(r, specials)
			return scalar.P2(a, b)
		},
	})
}

func fmaHost(rnd fpmodel.Rounding, ftz, sat bool, a, b, c float32) float32 {
	a, b, c = fpmodel.FlushF32(a, ftz), fpmodel.FlushF32(b, ftz), fpmodel.FlushF32(c, ftz)
	r := fpmodel.WithMode(rnd.Mode(), func(env fpmodel.Env) float32 { return env.FMA32(a, b, c) })
	return saturate32(fpmodel.FlushF32(r, ftz), sat)
}

func fma(rnd fpmodel.Rounding, ftz, sat bool) Case {
	return randomCase(arithName("fma", rnd, ftz, sat), engine.RandomTest[scalar.Triple[float32, float32, float32], float32]{
		Test: engine.Test[scalar.Triple[float32, float32, float32], float32]{
			Body: ptx.Fill(template("fma_f32"),
				"<RND>", rnd.PTX(), "<FTZ>", opt(ftz, ".ftz"), "<SAT>", opt(sat, ".sat")),
			Args:   []string{"input_a", "input_b", "input_c", "output"},
			Input:  scalar.TripleOf(scalar.Of[float32](), scalar.Of[float32](), scalar.Of[float32]()),
			Output: scalar.Of[float32](),
			Verify: func(in scalar.Triple[float32, float32, float32], out float32) (float32, bool) {
				expected := fmaHost(rnd, ftz, sat, in.A, in.B, in.C)
				if expected == 0 && out == 0 {
					return expected, true
				}
				return sameF32(expected, out)
			},
		},
		Generate: func(r *rand.Rand) scalar.Triple[float32, float32, float32] {
			a, _ := specialOrRandom(r, extendedSpecialPairs)
			_, b := specialOrRandom(r, extendedSpecialPairs)
			return scalar.P3(a, b, randF32(r))
		},
	})
}

// divVariant is .approx, .full or an explicit rounding.
type divVariant struct {
	name string
	rnd  fpmodel.Rounding
}

var divVariants = []divVariant{
	{name: "approx"},
	{name: "full"},
	{name: "rn", rnd: fpmodel.Rn},
	{name: "rz", rnd: fpmodel.Rz},
	{name: "rm", rnd: fpmodel.Rm},
	{name: "rp", rnd: fpmodel.Rp},
}

// quotient is a/b rounded in direction m, flushed before rounding when ftz
// is set.
func quotient(a, b float32, m fpmodel.Mode, ftz bool) float32 {
	q := float64(a) / float64(b)
	if f := fpmodel.FlushWide32(q, ftz); f != q {
		return float32(f)
	}
	return fpmodel.WithMode(m, func(env fpmodel.Env) float32 { return env.Div32(a, b) })
}

// approxQuotient checks div.approx: within 2 ulp for divisors in
// [2^-126, 2^126]; anything for subnormal divisors; for larger divisors the
// result is zero, or NaN when a is infinite.
func approxQuotient(a, b, exact, out float32) (float32, bool) {
	if isNaN32(exact) && isNaN32(out) {
		return exact, true
	}
	if isInf32(exact, 0) && exact == out {
		return exact, true
	}
	switch d := math.Abs(float64(b)); {
	case d < 0x1p-126:
		return exact, true
	case d <= 0x1p126:
		return exact, fpmodel.WithinULP32(exact, out, 2)
	case isInf32(a, 0):
		return nan32(), isNaN32(out)
	}
	return 0, out == 0
}

func div(v divVariant, ftz bool) Case {
	name := "div_" + v.name + opt(ftz, "_ftz") + "_f32"
	mod := "." + v.name
	return randomCase(name, engine.RandomTest[scalar.Pair[float32, float32], float32]{
		Test: engine.Test[scalar.Pair[float32, float32], float32]{
			Body:   ptx.Fill(template("binary_f32"), "<OP>", "div"+mod+opt(ftz, ".ftz")),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[float32](), scalar.Of[float32]()),
			Output: scalar.Of[float32](),
			Verify: func(in scalar.Pair[float32, float32], out float32) (float32, bool) {
				a, b := fpmodel.FlushF32(in.A, ftz), fpmodel.FlushF32(in.B, ftz)
				exact := quotient(a, b, v.rnd.Mode(), ftz)
				switch v.name {
				case "approx":
					return approxQuotient(a, b, exact, out)
				case "full":
					return exact, fpmodel.WithinULP32(exact, out, 2)
				}
				return exact, fpmodel.WithinULP32(exact, out, 0)
			},
		},
		Generate: func(r *rand.Rand) scalar.Pair[float32, float32] {
			a, b := specialOrRandom(r, extendedSpecialPairs)
			return scalar.P2(a, b)
		},
	})
}

// minMaxHost computes min and max on f16. NaN operands are ignored unless
// both are NaN or the .NaN form propagates them. min(-0, +0) is -0.
func minMaxHost(isMax, ftz, nan bool, a, b scalar.F16) scalar.F16 {
	a, b = fpmodel.FlushF16(a, ftz), fpmodel.FlushF16(b, ftz)
	switch {
	case a.IsNaN() && b.IsNaN(), nan && (a.IsNaN() || b.IsNaN()):
		return scalar.F16NaN
	case a.IsNaN():
		return b
	case b.IsNaN():
		return a
	}
	x, y := a.Float64(), b.Float64()
	if x == y {
		// only the zeros differ
		if isMax == a.Signbit() {
			return b
		}
		return a
	}
	if (x > y) == isMax {
		return a
	}
	return b
}

func minMax(op string, ftz, nan bool) Case {
	name := op + opt(ftz, "_ftz") + opt(nan, "_nan")
	return rangeCase(name, engine.RangeTest[scalar.Pair[scalar.F16, scalar.F16], scalar.F16]{
		Test: engine.Test[scalar.Pair[scalar.F16, scalar.F16], scalar.F16]{
			Body:   ptx.Fill(template("minmax"), "<OP>", op+opt(ftz, ".ftz")+opt(nan, ".NaN")),
			Args:   []string{"input_a", "input_b", "output"},
			Input:  scalar.PairOf(scalar.Of[scalar.F16](), scalar.Of[scalar.F16]()),
			Output: scalar.Of[scalar.F16](),
			Verify: func(in scalar.Pair[scalar.F16, scalar.F16], out scalar.F16) (scalar.F16, bool) {
				return sameF16(minMaxHost(op == "max", ftz, nan, in.A, in.B), out)
			},
		},
		MaxValue: engine.FullRange,
		Generate: func(i uint32) scalar.Pair[scalar.F16, scalar.F16] {
			return scalar.P2(scalar.F16(i), scalar.F16(i>>16))
		},
	})
}
