package testcase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxnlabs/ptx-conformance/internal/fpmodel"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

func TestExtractField(t *testing.T) {
	assert.Equal(t, uint32(0xf), extractField[uint32](0xf0, 4, 4))
	assert.Equal(t, int32(-1), extractField[int32](0xf0, 4, 4))
	assert.Equal(t, int32(7), extractField[int32](0x70, 4, 4))
	assert.Equal(t, uint32(0), extractField[uint32](0xffffffff, 3, 0))
	// the field runs off the top of the operand
	assert.Equal(t, uint32(1), extractField[uint32](0x80000000, 31, 5))
	assert.Equal(t, int32(-1), extractField[int32](math.MinInt32, 31, 5))
	// position past the operand: zero, or the sign for signed forms
	assert.Equal(t, uint32(0), extractField[uint32](0xffffffff, 40, 4))
	assert.Equal(t, int32(-1), extractField[int32](-1, 40, 4))
	// 32-bit forms only look at the low byte
	assert.Equal(t, uint32(0xf), extractField[uint32](0xf0, 0x104, 0x204))
	assert.Equal(t, uint64(0), extractField[uint64](0xf0, 0x104, 4))
}

func TestInsertField(t *testing.T) {
	assert.Equal(t, uint32(0xf0), insertField[uint32](0xf, 0, 4, 8))
	assert.Equal(t, uint32(0x0fffffff), insertField[uint32](0, 0xffffffff, 28, 8))
	assert.Equal(t, uint32(0xffffffff), insertField[uint32](0, 0xffffffff, 32, 8))
	assert.Equal(t, uint64(0xabcd)<<40, insertField[uint64](0xabcd, 0, 40, 16))
}

func TestCarryChain(t *testing.T) {
	assert.Equal(t, uint64(1)<<32, carryChain(false, true, 0xffffffff, 0, 1))
	assert.Equal(t, uint64(0xffffffff), carryChain(false, true, 0xfffffffe, 0, 1))
	// without .cc the incoming flag survives
	assert.Equal(t, uint64(1)<<32|4, carryChain(false, false, 1, 2, 1))
	// subtraction: a set flag means no borrow
	assert.Equal(t, uint64(1)<<32, carryChain(true, true, 0, 0, 1))
	assert.Equal(t, uint64(0xffffffff), carryChain(true, true, 0, 0, 0))
	assert.Equal(t, uint64(0xfffffffe), carryChain(true, true, 0, 2, 1))

	assert.Equal(t, uint64(1)<<32, multiplyAddCarry(true, 0xffffffff, 1, 0, 1))
	assert.Equal(t, uint64(7), multiplyAddCarry(true, 2, 3, 1, 0))
}

func TestMul24(t *testing.T) {
	assert.Equal(t, uint32(0xfe000001), mul24Host[uint32](0xffffff, 0xffffff, false))
	assert.Equal(t, uint32(0xfffffe00), mul24Host[uint32](0xffffff, 0xffffff, true))
	// the upper byte of each operand is ignored
	assert.Equal(t, uint32(6), mul24Host[uint32](0xff000002, 0x03, false))
	assert.Equal(t, int32(-2), mul24Host[int32](0x00ffffff, 2, false))
}

func TestFunnelShift(t *testing.T) {
	assert.Equal(t, uint32(3), funnelShift(true, true, 0x80000000, 1, 1))
	assert.Equal(t, uint32(1), funnelShift(true, true, 0x80000000, 1, 0))
	assert.Equal(t, uint32(0x80000000), funnelShift(true, true, 0x80000000, 1, 40))
	assert.Equal(t, uint32(3), funnelShift(true, false, 0x80000000, 1, 33))
	assert.Equal(t, uint32(0x80000001), funnelShift(false, false, 2, 1, 1))
	assert.Equal(t, uint32(1), funnelShift(false, true, 2, 1, 32))
}

func TestPermute(t *testing.T) {
	generic := prmtModes[0]
	assert.Equal(t, uint32(prmtA), permute(generic, prmtA, prmtB, 0x3210))
	assert.Equal(t, uint32(prmtB), permute(generic, prmtA, prmtB, 0x7654))
	assert.Equal(t, uint32(0x01020304), permute(generic, prmtA, prmtB, 0x0123))
	// sign replication
	assert.Equal(t, uint32(0x808080ff), permute(generic, 0x80, 0, 0x0008))

	byName := func(name string) prmtMode {
		for _, m := range prmtModes {
			if m.name == name {
				return m
			}
		}
		t.Fatalf("no prmt mode %s", name)
		return prmtMode{}
	}
	assert.Equal(t, uint32(0x04030201), permute(byName("f4e"), prmtA, prmtB, 0))
	assert.Equal(t, uint32(0x05040302), permute(byName("f4e"), prmtA, prmtB, 1))
	assert.Equal(t, uint32(0x06070801), permute(byName("b4e"), prmtA, prmtB, 0))
	assert.Equal(t, uint32(0x02020202), permute(byName("rc8"), prmtA, prmtB, 1))
	assert.Equal(t, uint32(0x04030202), permute(byName("ecl"), prmtA, prmtB, 1))
	assert.Equal(t, uint32(0x04030201), permute(byName("ecr"), prmtA, prmtB, 3))
	assert.Equal(t, uint32(0x04030403), permute(byName("rc16"), prmtA, prmtB, 1))
}

func TestDotAndVideo(t *testing.T) {
	assert.Equal(t, uint32(18), dot4(0x01010101, 0x02020202, 10, false, false))
	assert.Equal(t, uint32(0xfffffffc), dot4(0xffffffff, 0x01010101, 0, true, false))
	assert.Equal(t, uint32(4*255), dot4(0xffffffff, 0x01010101, 0, false, false))
	assert.Equal(t, uint32(2*3+1*4), dot2(0x00010002, 0x04030000, 0, true, false, false))

	assert.Equal(t, uint32(0xf8000000), videoShift(0x80000000, 4, 0, false, true, false, true, false))
	assert.Equal(t, uint32(0), videoShift(0x80000000, 4, 0, false, true, true, true, false))
	assert.Equal(t, uint32(0xffffffff), videoShift(0x80000000, 40, 0, true, true, false, true, false))
	assert.Equal(t, uint32(0x08000000+5), videoShift(0x80000000, 36, 5, false, false, false, false, true))
}

func TestPackSaturated(t *testing.T) {
	assert.Equal(t, uint32(0x1234ff00), packSaturated[uint8](300, -5, 0x1234))
	assert.Equal(t, uint32(0x00007f80), packSaturated[int8](300, -300, 0))
}

func TestTestpClassify(t *testing.T) {
	assert.True(t, testpMode("normal").classify(0))
	assert.True(t, testpMode("normal").classify(negZero32()))
	assert.False(t, testpMode("subnormal").classify(0))
	assert.True(t, testpMode("subnormal").classify(f32(1)))
	assert.False(t, testpMode("normal").classify(f32(1)))
	assert.True(t, testpMode("notanumber").classify(nan32()))
	assert.False(t, testpMode("finite").classify(inf32(-1)))
}

func TestFloatArithmetic(t *testing.T) {
	assert.Equal(t, float32(1), arithHost("add", fpmodel.Rn, false, true, 0.5, 0.75))
	assert.Equal(t, float32(0), arithHost("sub", fpmodel.Rn, false, true, 0.5, 0.75))
	assert.Equal(t, float32(0), arithHost("add", fpmodel.Rn, false, true, nan32(), 1))
	// operands are flushed before the operation
	assert.Equal(t, float32(1), arithHost("add", fpmodel.Rp, true, false, 1, f32(1)))
	assert.Equal(t, math.Nextafter32(1, 2), arithHost("add", fpmodel.Rp, false, false, 1, f32(1)))

	exact := quotient(1, 3, fpmodel.NearestEven, false)
	assert.Equal(t, float32(1)/3, exact)
	_, ok := approxQuotient(1, f32(5), quotient(1, f32(5), fpmodel.NearestEven, false), 42)
	assert.True(t, ok, "subnormal divisors are not checked")
	_, ok = approxQuotient(1, 0x1p127, 0x1p-127, 0)
	assert.True(t, ok)
	_, ok = approxQuotient(inf32(1), 0x1p127, inf32(1), 0)
	assert.False(t, ok)
}

func TestMinMaxZeros(t *testing.T) {
	neg, pos := scalar.F16(0x8000), scalar.F16(0)
	assert.Equal(t, neg, minMaxHost(false, false, false, neg, pos))
	assert.Equal(t, neg, minMaxHost(false, false, false, pos, neg))
	assert.Equal(t, pos, minMaxHost(true, false, false, neg, pos))
	assert.Equal(t, pos, minMaxHost(true, false, false, pos, neg))

	one := scalar.F16(0x3c00)
	assert.Equal(t, one, minMaxHost(false, false, false, scalar.F16NaN, one))
	assert.True(t, minMaxHost(false, false, true, scalar.F16NaN, one).IsNaN())
	// flushed subnormal compares equal to zero
	assert.Equal(t, neg, minMaxHost(false, true, false, 0x0001, neg))
}

func TestTranscendentalSpecials(t *testing.T) {
	assert.Equal(t, float32(1), rcpApproxInput(0))
	assert.Equal(t, float32(2), rcpApproxInput(rcpApproxSpan))
	assert.True(t, isInf32(rcpApproxInput(rcpApproxSpan+1), -1))
	assert.True(t, isNegZero32(rcpApproxInput(rcpApproxSpan+3)))
	assert.True(t, isNaN32(rcpApproxInput(rcpApproxSpan+7)))
	assert.Equal(t, float32(0), rcpApproxInput(rcpApproxSpan+100))

	r, ok := rcpSpecial(negZero32())
	assert.True(t, ok)
	assert.True(t, isInf32(r, -1))
	r, _ = rcpSpecial(f32(fpmodel.MaxPositiveSubnormal))
	assert.True(t, isInf32(r, 1))
	_, ok = rcpSpecial(3)
	assert.False(t, ok)

	assert.True(t, rcpException(fpmodel.Rm, true, -8.50706e37, negZero32()))
	assert.False(t, rcpException(fpmodel.Rm, false, -8.50706e37, negZero32()))

	assert.Equal(t, float32(math.Sqrt(2)), sqrtHost(2, fpmodel.NearestEven))
	assert.Equal(t, math.Nextafter32(float32(math.Sqrt(2)), 2), sqrtHost(2, fpmodel.TowardPositive))
	assert.True(t, isNegZero32(sqrtHost(negZero32(), fpmodel.NearestEven)))
	assert.True(t, isNaN32(sqrtHost(-1, fpmodel.NearestEven)))

	r, _ = rsqrtSpecial(negZero32())
	assert.True(t, isInf32(r, -1))
	r, _ = lg2Special(0)
	assert.True(t, isInf32(r, -1))
	r, _ = ex2Special(inf32(-1))
	assert.Equal(t, float32(0), r)
	r, _ = sinCosSpecial(math.Sin)(negZero32())
	assert.True(t, isNegZero32(r))
	r, _ = sinCosSpecial(math.Cos)(negZero32())
	assert.Equal(t, float32(1), r)

	_, ok = tanhVerify(inf32(1), 1)
	assert.True(t, ok)
	_, ok = tanhVerify(0.5, float32(math.Tanh(0.5))*(1+1e-4))
	assert.True(t, ok)
	_, ok = tanhVerify(0.5, 0.5)
	assert.False(t, ok)

	// beyond 100 pi the result is not checked
	_, ok = sinCosVerify(math.Cos, false)(1e6, 7)
	assert.True(t, ok)
	_, ok = sinCosVerify(math.Cos, false)(1, 0.5)
	assert.False(t, ok)
}

func bits32(x float32) uint64 {
	return uint64(math.Float32bits(x))
}

func TestConversionValidity(t *testing.T) {
	cases := []struct {
		c       conversion
		invalid bool
	}{
		{conversion{in: scalar.F32, out: scalar.F16K}, true},
		{conversion{rnd: fpmodel.Rn, in: scalar.F32, out: scalar.F16K}, false},
		{conversion{rnd: fpmodel.Rni, in: scalar.S32, out: scalar.F32}, true},
		{conversion{rnd: fpmodel.Rn, in: scalar.S32, out: scalar.F32}, false},
		{conversion{in: scalar.S32, out: scalar.F32}, true},
		{conversion{in: scalar.F32, out: scalar.S32}, true},
		{conversion{rnd: fpmodel.Rzi, in: scalar.F32, out: scalar.S32}, false},
		{conversion{rnd: fpmodel.Rzi, in: scalar.F32, out: scalar.F32}, false},
		{conversion{rnd: fpmodel.Rzi, in: scalar.F32, out: scalar.F64}, true},
		{conversion{in: scalar.F16K, out: scalar.F64}, false},
		{conversion{sat: true, in: scalar.S16, out: scalar.S32}, true},
		{conversion{sat: true, in: scalar.S32, out: scalar.S16}, false},
		{conversion{sat: true, in: scalar.U16, out: scalar.S16}, false},
		{conversion{sat: true, in: scalar.U16, out: scalar.S32}, true},
		{conversion{ftz: true, in: scalar.S32, out: scalar.U32}, true},
		{conversion{ftz: true, in: scalar.F16K, out: scalar.F32}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.invalid, tc.c.invalid(), tc.c.name())
	}
	assert.Equal(t, "cvt_rni_ftz_sat_s32_f32",
		conversion{rnd: fpmodel.Rni, ftz: true, sat: true, in: scalar.F32, out: scalar.S32}.name())
	assert.Equal(t, "cvt_u64_s16", conversion{in: scalar.S16, out: scalar.U64}.name())
}

func TestConversionOracle(t *testing.T) {
	rni := conversion{rnd: fpmodel.Rni, in: scalar.F32, out: scalar.S32}
	_, ok := rni.verify(bits32(2.5), 2)
	assert.True(t, ok)
	_, ok = rni.verify(bits32(3.5), 4)
	assert.True(t, ok)
	_, ok = rni.verify(bits32(2.5), 3)
	assert.False(t, ok)
	// float to integer saturates, NaN is not checked
	_, ok = rni.verify(bits32(3e9), 0x7fffffff)
	assert.True(t, ok)
	_, ok = rni.verify(bits32(nan32()), 12345)
	assert.True(t, ok)

	rmi := conversion{rnd: fpmodel.Rmi, ftz: true, in: scalar.F32, out: scalar.S32}
	_, ok = rmi.verify(bits32(-f32(1)), 0)
	assert.True(t, ok, "flushed subnormal rounds as zero")

	sat := conversion{rnd: fpmodel.Rn, sat: true, in: scalar.F32, out: scalar.F16K}
	_, ok = sat.verify(bits32(-5), 0)
	assert.True(t, ok)
	_, ok = sat.verify(bits32(5), 0x3c00)
	assert.True(t, ok)

	narrow := conversion{rnd: fpmodel.Rp, ftz: true, in: scalar.F32, out: scalar.F16K}
	_, ok = narrow.verify(bits32(f32(1)), 0x0001)
	assert.True(t, ok, "subnormal input survives narrowing to f16")

	widen := conversion{ftz: true, in: scalar.F32, out: scalar.F64}
	_, ok = widen.verify(bits32(-f32(1)), 1<<63)
	assert.True(t, ok)

	// integral rounding within one format
	half := conversion{rnd: fpmodel.Rni, in: scalar.F16K, out: scalar.F16K}
	_, ok = half.verify(0x3e00, 0x4000) // 1.5 -> 2
	assert.True(t, ok)
	_, ok = half.verify(0x4100, 0x4000) // 2.5 -> 2
	assert.True(t, ok)
	_, ok = half.verify(0xbe00, 0xbc00) // -1.5 -> -2, not -1
	assert.False(t, ok)
	ceil := conversion{rnd: fpmodel.Rpi, ftz: true, in: scalar.F32, out: scalar.F32}
	_, ok = ceil.verify(bits32(-f32(1)), 0x80000000)
	assert.True(t, ok, "flushed subnormal keeps its sign")
	_, ok = ceil.verify(bits32(f32(1)), 0)
	assert.True(t, ok, "flushed before rounding up")
	_, ok = ceil.verify(bits32(1.25), bits32(2))
	assert.True(t, ok)

	clamp := conversion{sat: true, in: scalar.S32, out: scalar.U16}
	_, ok = clamp.verify(0xffffffff, 0)
	assert.True(t, ok)
	_, ok = clamp.verify(70000, 0xffff)
	assert.True(t, ok)
	extend := conversion{in: scalar.S16, out: scalar.U64}
	_, ok = extend.verify(0xffff, math.MaxUint64)
	assert.True(t, ok)

	toHalf := conversion{rnd: fpmodel.Rz, in: scalar.U32, out: scalar.F16K}
	_, ok = toHalf.verify(0xffffffff, uint64(scalar.F16Max))
	assert.True(t, ok)
}

func TestMicroFloat(t *testing.T) {
	e4m3 := microFormats[0]
	assert.Equal(t, scalar.F16(0x3c00), e4m3.toF16(0x38))
	assert.Equal(t, uint8(0x7e), e4m3.fromF32(1e9))
	assert.True(t, e4m3.isNaN(e4m3.fromF32(nan32())))

	e5m2 := microFormats[1]
	assert.Equal(t, scalar.F16(0x3c00), e5m2.toF16(0x3c))
	assert.Equal(t, uint8(0x7b), e5m2.fromF32(inf32(1)))
}
