package testcase

import (
	"fmt"
	"math"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

var (
	cvtInputs  = []scalar.Kind{scalar.S16, scalar.U16, scalar.S32, scalar.U32, scalar.F16K, scalar.F32}
	cvtOutputs = []scalar.Kind{
		scalar.S16, scalar.U16, scalar.S32, scalar.U32, scalar.S64, scalar.U64,
		scalar.F16K, scalar.F32, scalar.F64,
	}
)

// conversion is one cvt instruction form.
type conversion struct {
	rnd     fpmodel.Rounding
	ftz     bool
	sat     bool
	in, out scalar.Kind
}

func (c conversion) name() string {
	return "cvt" + opt(c.rnd != fpmodel.Default, "_"+c.rnd.String()) + opt(c.ftz, "_ftz") + opt(c.sat, "_sat") +
		"_" + c.out.Name + "_" + c.in.Name
}

// invalid reports whether the compiler must reject the form.
func (c conversion) invalid() bool {
	in, out := c.in, c.out
	if c.sat {
		switch {
		case in.Signed() && out.Signed() && out.Size >= in.Size,
			in.Unsigned && out.Unsigned && out.Size >= in.Size,
			in.Unsigned && out.Signed() && out.Size > in.Size:
			return true
		}
	}
	if c.ftz && out != scalar.F32 && in != scalar.F32 {
		return true
	}
	switch {
	case c.rnd == fpmodel.Default:
		return in.Float && out.Float && out.Size < in.Size || in.Float != out.Float
	case c.rnd.IsInteger():
		return !(in.Float && !out.Float || in.Float && out.Float && out.Size == in.Size)
	}
	return !(!in.Float && out.Float || in.Float && out.Float && out.Size < in.Size)
}

func (c conversion) test() engine.RangeTest[uint64, uint64] {
	return engine.RangeTest[uint64, uint64]{
		Test: engine.Test[uint64, uint64]{
			Body: ptx.Fill(template("cvt"),
				"<INPUT>", c.in.Name,
				"<INPUT_LD>", rawName(c.in),
				"<OUTPUT>", c.out.Name,
				"<OUTPUT_ST>", rawName(c.out),
				"<MODIFIERS>", c.rnd.PTX()+opt(c.ftz, ".ftz")+opt(c.sat, ".sat")),
			Args:   []string{"input", "output"},
			Input:  scalar.Raw(c.in),
			Output: scalar.Raw(c.out),
			Verify: c.verify,
		},
		MaxValue: uint32(1<<c.in.Bits() - 1),
		Generate: func(i uint32) uint64 { return uint64(i) },
	}
}

// Conversions returns one range test per valid cvt form and a single test
// that expects every invalid form to be rejected.
func Conversions() []Case {
	var cases []Case
	var forms []engine.InvalidForm
	for _, rnd := range fpmodel.AllRoundings() {
		for _, ftz := range []bool{false, true} {
			for _, sat := range []bool{false, true} {
				for _, in := range cvtInputs {
					for _, out := range cvtOutputs {
						c := conversion{rnd: rnd, ftz: ftz, sat: sat, in: in, out: out}
						t := c.test()
						if c.invalid() {
							forms = append(forms, engine.InvalidForm{Name: c.name(), Program: t.Program()})
							continue
						}
						cases = append(cases, Case{Name: c.name(), Run: engine.Range(t)})
					}
				}
			}
		}
	}
	return append(cases, Case{Name: "cvt_invalid", Run: engine.ExpectCompileFailure(forms)})
}

// rawName is the untyped spelling used for loads and stores; ld.f16 does not
// exist.
func rawName(k scalar.Kind) string {
	return fmt.Sprintf("b%d", k.Bits())
}

func mask(k scalar.Kind) uint64 {
	if k.Size == 8 {
		return math.MaxUint64
	}
	return 1<<k.Bits() - 1
}

// intValue widens an integer payload to int64 with the kind's extension.
func intValue(k scalar.Kind, bits uint64) int64 {
	if k.Unsigned {
		return int64(bits & mask(k))
	}
	shift := 64 - k.Bits()
	return int64(bits<<shift) >> shift
}

func floatValue(k scalar.Kind, bits uint64) float64 {
	switch k {
	case scalar.F16K:
		return scalar.F16(bits).Float64()
	case scalar.F32:
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

// floatBits encodes a value the kind represents exactly.
func floatBits(k scalar.Kind, v float64) uint64 {
	switch k {
	case scalar.F16K:
		return uint64(fpmodel.EncodeF16(v))
	case scalar.F32:
		return uint64(math.Float32bits(float32(v)))
	}
	return math.Float64bits(v)
}

func isSubnormal(k scalar.Kind, bits uint64) bool {
	if k == scalar.F16K {
		return scalar.F16(bits).IsSubnormal()
	}
	return fpmodel.IsSubnormal32(math.Float32frombits(uint32(bits)))
}

func formatOf(k scalar.Kind) fpmodel.Format {
	switch k {
	case scalar.F16K:
		return fpmodel.Binary16
	case scalar.F32:
		return fpmodel.Binary32
	}
	return fpmodel.Binary64
}

func (c conversion) verify(in, out uint64) (uint64, bool) {
	switch {
	case c.in.Float && c.out.Float:
		expected := c.floatToFloat(in)
		if math.IsNaN(floatValue(c.out, expected)) && math.IsNaN(floatValue(c.out, out)) {
			return expected, true
		}
		return eq(expected, out)
	case c.in.Float:
		if math.IsNaN(floatValue(c.in, in)) {
			// not consistent across devices
			return out, true
		}
		x := c.integral(in)
		if c.ftz && isSubnormal(c.in, in) {
			x = 0
		}
		lo, hi := scalar.MinMax(c.out)
		return eq(fpmodel.SaturateInt(x, lo, hi)&mask(c.out), out)
	case c.out.Float:
		return eq(c.intToFloat(in), out)
	}
	return eq(c.intToInt(in), out)
}

// floatToFloat converts between float kinds. An f32 input is flushed under
// .ftz unless it narrows to f16; the device keeps subnormal inputs there.
func (c conversion) floatToFloat(in uint64) uint64 {
	flush := c.ftz && c.in == scalar.F32 && (c.out != scalar.F16K || c.rnd.IsInteger())
	if flush && isSubnormal(c.in, in) {
		in &= 0x80000000
	}
	x := floatValue(c.in, in)
	switch {
	case c.rnd.IsInteger() && c.in.Size == c.out.Size:
		return c.finishFloat(c.integral(in))
	case c.out == scalar.F16K && c.in != scalar.F16K:
		r := fpmodel.WithMode(c.rnd.Mode(), func(env fpmodel.Env) scalar.F16 { return env.ToF16(x) })
		return c.finishFloat(r.Float64())
	}
	return c.finishFloat(x)
}

// integral rounds a float payload to an integral value of its own format.
func (c conversion) integral(in uint64) float64 {
	if c.in == scalar.F16K {
		return fpmodel.RoundIntegral16(scalar.F16(in), c.rnd.Mode()).Float64()
	}
	return float64(fpmodel.RoundIntegral32(math.Float32frombits(uint32(in)), c.rnd.Mode()))
}

func (c conversion) finishFloat(r float64) uint64 {
	if c.ftz && c.out.Size == 4 {
		r = fpmodel.FlushWide32(r, true)
	}
	if c.sat {
		r = fpmodel.SaturateUnit(r)
	}
	return floatBits(c.out, r)
}

func (c conversion) intToFloat(in uint64) uint64 {
	v := intValue(c.in, in)
	r := fpmodel.WithMode(c.rnd.Mode(), func(env fpmodel.Env) float64 {
		if c.in.Unsigned {
			return env.FromUint(uint64(v), formatOf(c.out))
		}
		return env.FromInt(v, formatOf(c.out))
	})
	if c.sat {
		r = fpmodel.SaturateUnit(r)
	}
	return floatBits(c.out, r)
}

// intToInt truncates, or clamps to the destination range under .sat. Every
// source fits in int64, so the range check cannot overflow.
func (c conversion) intToInt(in uint64) uint64 {
	v := intValue(c.in, in)
	if c.sat {
		lo, hi := scalar.MinMax(c.out)
		switch {
		case v <= lo:
			return uint64(lo) & mask(c.out)
		case v >= 0 && uint64(v) >= hi:
			return hi
		}
	}
	return uint64(v) & mask(c.out)
}
