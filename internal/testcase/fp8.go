package testcase

import (
	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// microFormat is one 8-bit float encoding as seen from the host.
type microFormat struct {
	name    string
	toF16   func(uint8) scalar.F16
	fromF32 func(float32) uint8
	isNaN   func(uint8) bool
}

var microFormats = []microFormat{
	{
		name:    "e4m3x2",
		toF16:   func(b uint8) scalar.F16 { return fpmodel.E4M3ToF16(scalar.E4M3(b)) },
		fromF32: func(x float32) uint8 { return uint8(fpmodel.E4M3FromF32Sat(x)) },
		isNaN:   func(b uint8) bool { return scalar.E4M3(b).IsNaN() },
	},
	{
		name:    "e5m2x2",
		toF16:   func(b uint8) scalar.F16 { return fpmodel.E5M2ToF16(scalar.E5M2(b)) },
		fromF32: func(x float32) uint8 { return uint8(fpmodel.E5M2FromF32Sat(x)) },
		isNaN:   func(b uint8) bool { return scalar.E5M2(b).IsNaN() },
	},
}

// MicroFloat returns the conversions between f32, f16 and the 8-bit float
// formats.
func MicroFloat() []Case {
	var cases []Case
	for _, f := range microFormats {
		cases = append(cases, widenMicro(f))
	}
	for _, f := range microFormats {
		cases = append(cases, narrowMicro(f))
	}
	return cases
}

// widenMicro decodes every byte value, packed twice into the source pair.
func widenMicro(f microFormat) Case {
	return rangeCase("cvt_rn_f16x2_"+f.name, engine.RangeTest[uint16, uint32]{
		Test: engine.Test[uint16, uint32]{
			Body:   ptx.Fill(template("cvt_f16x2_f8x2"), "<INPUT>", f.name),
			Args:   []string{"input", "output"},
			Input:  scalar.Of[uint16](),
			Output: scalar.Of[uint32](),
			Verify: func(in uint16, out uint32) (uint32, bool) {
				lo, hi := f.toF16(uint8(in)), f.toF16(uint8(in>>8))
				expected := uint32(lo) | uint32(hi)<<16
				_, okLo := sameF16(lo, scalar.F16(out))
				_, okHi := sameF16(hi, scalar.F16(out>>16))
				return expected, okLo && okHi
			},
		},
		MaxValue: 0xff,
		Generate: func(i uint32) uint16 { return uint16(i | i<<8) },
	})
}

// narrowMicro converts every f32 with satfinite into both halves of the
// destination pair.
func narrowMicro(f microFormat) Case {
	return rangeCase("cvt_rn_satfinite_"+f.name+"_f32", engine.RangeTest[float32, uint16]{
		Test: engine.Test[float32, uint16]{
			Body:   ptx.Fill(template("cvt_f8x2_f32"), "<OUTPUT>", f.name),
			Args:   []string{"input", "output"},
			Input:  scalar.Of[float32](),
			Output: scalar.Of[uint16](),
			Verify: func(in float32, out uint16) (uint16, bool) {
				e := f.fromF32(in)
				expected := uint16(e)<<8 | uint16(e)
				same := func(got uint8) bool {
					return got == e || f.isNaN(e) && f.isNaN(got)
				}
				return expected, same(uint8(out)) && same(uint8(out>>8))
			},
		},
		MaxValue: engine.FullRange,
		Generate: f32,
	})
}
