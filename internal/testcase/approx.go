package testcase

import (
	"math"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// Tolerances of the approximate instructions, from the ISA reference.
var (
	sqrtApproxTolerance  = math.Exp2(-23)
	rcpApproxTolerance   = math.Exp2(-23)
	rsqrtApproxTolerance = math.Exp2(-22.9)
	lg2Tolerance         = math.Exp2(-22)
	tanhTolerance        = math.Exp2(-11)
)

// Transcendental returns the rcp, sqrt, rsqrt, sin, cos, lg2, ex2 and tanh
// tests.
func Transcendental() []Case {
	var cases []Case
	for _, ftz := range []bool{false, true} {
		for _, rnd := range fpmodel.ExplicitRoundings() {
			cases = append(cases, rcpRounded(rnd, ftz))
		}
		cases = append(cases, rcpApprox(ftz))
	}
	for _, ftz := range []bool{false, true} {
		cases = append(cases, sqrtApprox(ftz))
		for _, rnd := range fpmodel.ExplicitRoundings() {
			cases = append(cases, sqrtRounded(rnd, ftz))
		}
	}
	for _, ftz := range []bool{false, true} {
		cases = append(cases,
			approxCase("rsqrt", ftz, rsqrtVerify(ftz)),
			approxCase("sin", ftz, sinCosVerify(math.Sin, ftz)),
			approxCase("cos", ftz, sinCosVerify(math.Cos, ftz)),
			approxCase("lg2", ftz, lg2Verify(ftz)),
			approxCase("ex2", ftz, ex2Verify(ftz)),
		)
	}
	cases = append(cases, Case{
		Name: "tanh_approx",
		Run:  f32Range(ptx.Fill(template("unary_f32"), "<OP>", "tanh.approx"), tanhVerify),
	})
	return cases
}

func f32Range(body string, verify engine.Verify[float32, float32]) engine.TestFunc {
	return engine.Range(engine.RangeTest[float32, float32]{
		Test: engine.Test[float32, float32]{
			Body:   body,
			Args:   []string{"input", "output"},
			Input:  scalar.Of[float32](),
			Output: scalar.Of[float32](),
			Verify: verify,
		},
		MaxValue: engine.FullRange,
		Generate: f32,
	})
}

func approxCase(op string, ftz bool, verify engine.Verify[float32, float32]) Case {
	body := ptx.Fill(template("unary_f32"), "<OP>", op+".approx"+opt(ftz, ".ftz"))
	return Case{Name: op + "_approx" + opt(ftz, "_ftz"), Run: f32Range(body, verify)}
}

// special looks up the exactly specified result for x, if any.
type special func(x float32) (float32, bool)

// checkSpecial compares out against the exact result of a special input,
// flushed like any other result.
func checkSpecial(s special, x, out float32, ftz bool) (expected float32, ok, handled bool) {
	e, found := s(x)
	if !found {
		return 0, false, false
	}
	expected, ok = sameF32(fpmodel.FlushF32(e, ftz), out)
	return expected, ok, true
}

func rcpSpecial(x float32) (float32, bool) {
	switch {
	case isNaN32(x):
		return nan32(), true
	case isInf32(x, -1):
		return negZero32(), true
	case isInf32(x, 1):
		return 0, true
	case isNegZero32(x), fpmodel.IsSubnormal32(x) && x < 0:
		return inf32(-1), true
	case x == 0, fpmodel.IsSubnormal32(x):
		return inf32(1), true
	}
	return 0, false
}

// rcpException lists the two results where the device keeps a flushed zero
// that a directed rounding of the exact reciprocal would not produce.
func rcpException(rnd fpmodel.Rounding, ftz bool, x, out float32) bool {
	if !ftz {
		return false
	}
	switch {
	case rnd == fpmodel.Rm && x == -8.50706e37 && isNegZero32(out):
		return true
	case rnd == fpmodel.Rp && x == 8.50706e37 && math.Float32bits(out) == 0:
		return true
	}
	return false
}

func rcpRounded(rnd fpmodel.Rounding, ftz bool) Case {
	body := ptx.Fill(template("unary_f32"), "<OP>", "rcp"+rnd.PTX()+opt(ftz, ".ftz"))
	verify := func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		r := fpmodel.WithMode(rnd.Mode(), func(env fpmodel.Env) float32 { return env.Recip32(x) })
		expected := fpmodel.FlushF32(r, ftz)
		if e, ok := sameF32(expected, out); ok {
			return e, true
		}
		return expected, rcpException(rnd, ftz, x, out)
	}
	return Case{Name: "rcp_" + rnd.String() + opt(ftz, "_ftz"), Run: f32Range(body, verify)}
}

// rcpApproxSpan is the number of binary32 values in [1, 2).
const rcpApproxSpan = 0x40000000 - 0x3f800000

// rcpApproxInput walks [1, 2] and then a handful of special values in the
// tail of the domain.
func rcpApproxInput(i uint32) float32 {
	if i <= rcpApproxSpan {
		return f32(0x3f800000 + i)
	}
	switch i - rcpApproxSpan {
	case 1:
		return inf32(-1)
	case 2:
		return f32(fpmodel.MaxNegativeSubnormal)
	case 3:
		return negZero32()
	case 5:
		return f32(fpmodel.MaxPositiveSubnormal)
	case 6:
		return inf32(1)
	case 7:
		return nan32()
	}
	return 0
}

func rcpApprox(ftz bool) Case {
	verify := func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		if e, ok, handled := checkSpecial(rcpSpecial, x, out, ftz); handled {
			return e, ok
		}
		precise := 1 / float64(x)
		expected := fpmodel.FlushF32(float32(precise), ftz)
		return float32(precise), fpmodel.AbsoluteDiff(float64(expected), float64(out), rcpApproxTolerance)
	}
	return rangeCase("rcp_approx"+opt(ftz, "_ftz"), engine.RangeTest[float32, float32]{
		Test: engine.Test[float32, float32]{
			Body:   ptx.Fill(template("unary_f32"), "<OP>", "rcp.approx"+opt(ftz, ".ftz")),
			Args:   []string{"input", "output"},
			Input:  scalar.Of[float32](),
			Output: scalar.Of[float32](),
			Verify: verify,
		},
		MaxValue: rcpApproxSpan + 127,
		Generate: rcpApproxInput,
	})
}

func sqrtSpecial(x float32) (float32, bool) {
	switch {
	case isNaN32(x), isInf32(x, -1):
		return nan32(), true
	case x == 0:
		// keeps the sign of zero
		return x, true
	case x < 0:
		return nan32(), true
	case isInf32(x, 1):
		return x, true
	}
	return 0, false
}

func sqrtApprox(ftz bool) Case {
	body := ptx.Fill(template("unary_f32"), "<OP>", "sqrt.approx"+opt(ftz, ".ftz"))
	verify := func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		if e, ok, handled := checkSpecial(sqrtSpecial, x, out, ftz); handled {
			return e, ok
		}
		precise := fpmodel.FlushWide32(math.Sqrt(float64(x)), ftz)
		return float32(precise), fpmodel.RelativeDiff(precise, float64(out), sqrtApproxTolerance)
	}
	return Case{Name: "sqrt_approx" + opt(ftz, "_ftz"), Run: f32Range(body, verify)}
}

// sqrtHost is the correctly rounded square root of x.
func sqrtHost(x float32, m fpmodel.Mode) float32 {
	if s, ok := sqrtSpecial(x); ok {
		return s
	}
	return fpmodel.WithMode(m, func(env fpmodel.Env) float32 { return env.Sqrt32(x) })
}

func sqrtRounded(rnd fpmodel.Rounding, ftz bool) Case {
	body := ptx.Fill(template("unary_f32"), "<OP>", "sqrt"+rnd.PTX()+opt(ftz, ".ftz"))
	verify := func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		return sameF32(fpmodel.FlushF32(sqrtHost(x, rnd.Mode()), ftz), out)
	}
	return Case{Name: "sqrt_" + rnd.String() + opt(ftz, "_ftz"), Run: f32Range(body, verify)}
}

func rsqrtSpecial(x float32) (float32, bool) {
	switch {
	case isNaN32(x), isInf32(x, -1):
		return nan32(), true
	case isNegZero32(x):
		return inf32(-1), true
	case x < 0:
		return nan32(), true
	case x == 0:
		return inf32(1), true
	case isInf32(x, 1):
		return 0, true
	}
	return 0, false
}

func rsqrtVerify(ftz bool) engine.Verify[float32, float32] {
	return func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		if e, ok, handled := checkSpecial(rsqrtSpecial, x, out, ftz); handled {
			return e, ok
		}
		precise := 1 / math.Sqrt(float64(x))
		return float32(precise), fpmodel.RelativeDiff(precise, float64(out), rsqrtApproxTolerance)
	}
}

// sinCosSpecial: sine keeps the sign of a zero input, cosine of zero is 1.
func sinCosSpecial(fn func(float64) float64) special {
	return func(x float32) (float32, bool) {
		switch {
		case isNaN32(x), isInf32(x, 0):
			return nan32(), true
		case x == 0:
			return float32(fn(float64(x))), true
		}
		return 0, false
	}
}

func sinCosVerify(fn func(float64) float64, ftz bool) engine.Verify[float32, float32] {
	s := sinCosSpecial(fn)
	return func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		if e, ok, handled := checkSpecial(s, x, out, ftz); handled {
			return e, ok
		}
		precise := fpmodel.FlushWide32(fn(float64(x)), ftz)
		bound := fpmodel.SinCosBound(x)
		if math.IsInf(bound, 1) {
			return float32(precise), true
		}
		return float32(precise), fpmodel.AbsoluteDiff(precise, float64(out), bound)
	}
}

func lg2Special(x float32) (float32, bool) {
	switch {
	case isNaN32(x), isInf32(x, -1):
		return nan32(), true
	case x == 0:
		return inf32(-1), true
	case x < 0:
		return nan32(), true
	case isInf32(x, 1):
		return x, true
	}
	return 0, false
}

func lg2Verify(ftz bool) engine.Verify[float32, float32] {
	return func(in, out float32) (float32, bool) {
		x := fpmodel.FlushF32(in, ftz)
		if e, ok, handled := checkSpecial(lg2Special, x, out, false); handled {
			return e, ok
		}
		precise := fpmodel.FlushWide32(math.Log2(float64(x)), ftz)
		if x > 0.5 && x < 2 {
			return float32(precise), fpmodel.AbsoluteDiff(precise, float64(out), lg2Tolerance)
		}
		return float32(precise), fpmodel.RelativeDiff(precise, float64(out), lg2Tolerance)
	}
}

func ex2Special(x float32) (float32, bool) {
	switch {
	case isNaN32(x):
		return nan32(), true
	case isInf32(x, -1):
		return 0, true
	case isInf32(x, 1):
		return x, true
	case x == 0:
		return 1, true
	}
	return 0, false
}

func ex2Verify(ftz bool) engine.Verify[float32, float32] {
	return func(in, out float32) (float32, bool) {
		if e, ok, handled := checkSpecial(ex2Special, in, out, false); handled {
			return e, ok
		}
		x := fpmodel.FlushF32(in, ftz)
		expected := fpmodel.FlushF32(float32(math.Exp2(float64(x))), ftz)
		return expected, fpmodel.WithinULP32(expected, out, 2)
	}
}

func tanhSpecial(x float32) (float32, bool) {
	switch {
	case isNaN32(x):
		return nan32(), true
	case isInf32(x, -1):
		return -1, true
	case isInf32(x, 1):
		return 1, true
	case x == 0:
		return x, true
	}
	return 0, false
}

// tanhVerify: a result that rounds to zero must be exactly +0.
func tanhVerify(in, out float32) (float32, bool) {
	if e, ok, handled := checkSpecial(tanhSpecial, in, out, false); handled {
		return e, ok
	}
	precise := math.Tanh(float64(in))
	expected := float32(precise)
	if expected == 0 {
		return expected, math.Float32bits(out) == 0
	}
	return expected, fpmodel.RelativeDiff(precise, float64(out), tanhTolerance)
}
