package scalar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestF16Decode(t *testing.T) {
	tests := []struct {
		bits F16
		want float64
	}{
		{0x0000, 0},
		{0x3c00, 1},
		{0x4000, 2},
		{0xc000, -2},
		{0x3555, 0x1.554p-02},
		{0x0001, 0x1p-24},
		{0x03ff, 0x1.ff8p-15},
		{0x0400, 0x1p-14},
		{F16Max, 65504},
		{F16Inf, math.Inf(1)},
		{F16NegInf, math.Inf(-1)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.bits.Float64(), "%#04x", uint16(tt.bits))
	}
	assert.True(t, math.Signbit(F16(0x8000).Float64()))
}

func TestF16DecodeAll(t *testing.T) {
	for b := 0; b < 1<<16; b++ {
		h := F16(b)
		exp, frac := b>>10&0x1f, b&0x3ff
		var want float64
		switch {
		case exp == 0x1f && frac != 0:
			assert.True(t, math.IsNaN(h.Float64()), "%#04x", b)
			assert.True(t, h.IsNaN())
			continue
		case exp == 0x1f:
			want = math.Inf(1)
		case exp == 0:
			want = math.Ldexp(float64(frac), -24)
		default:
			want = math.Ldexp(float64(frac|0x400), exp-25)
		}
		if b&0x8000 != 0 {
			want = -want
		}
		if !assert.Equal(t, want, h.Float64(), "%#04x", b) {
			return
		}
		assert.Equal(t, exp == 0 && frac != 0, h.IsSubnormal(), "%#04x", b)
		assert.Equal(t, b&0x8000 != 0, h.Signbit(), "%#04x", b)
	}
}

func TestF16Classes(t *testing.T) {
	assert.True(t, F16NaN.IsNaN())
	assert.True(t, F16(0xfc01).IsNaN())
	assert.False(t, F16Inf.IsNaN())
	assert.True(t, F16Inf.IsInf())
	assert.True(t, F16(0x0001).IsSubnormal())
	assert.True(t, F16(0x83ff).IsSubnormal())
	assert.False(t, F16(0x0400).IsSubnormal())
	assert.False(t, F16(0).IsSubnormal())
}

func TestE4M3(t *testing.T) {
	assert.Equal(t, 448.0, E4M3Max.Float64())
	assert.Equal(t, -448.0, E4M3(0xfe).Float64())
	assert.Equal(t, 1.0, E4M3(0x38).Float64())
	assert.Equal(t, 0x1p-9, E4M3(0x01).Float64())
	assert.Equal(t, 0x1p-6, E4M3(0x08).Float64())
	// The all-ones exponent is still finite unless the mantissa is all ones.
	assert.False(t, E4M3(0x78).IsNaN())
	assert.Equal(t, 256.0, E4M3(0x78).Float64())
	assert.True(t, E4M3(0x7f).IsNaN())
	assert.True(t, E4M3(0xff).IsNaN())
	assert.True(t, math.IsNaN(E4M3NaN.Float64()))
}

func TestE5M2(t *testing.T) {
	assert.Equal(t, 57344.0, E5M2Max.Float64())
	assert.Equal(t, 1.0, E5M2(0x3c).Float64())
	assert.Equal(t, 0x1p-16, E5M2(0x01).Float64())
	assert.True(t, math.IsInf(E5M2Inf.Float64(), 1))
	assert.True(t, math.IsInf(E5M2(0xfc).Float64(), -1))
	assert.False(t, E5M2(0x7c).IsNaN())
	for _, b := range []E5M2{0x7d, 0x7e, 0x7f, 0xfd, 0xfe, 0xff} {
		assert.True(t, b.IsNaN(), "%#02x", uint8(b))
	}
}

func TestE5M2MatchesF16Prefix(t *testing.T) {
	for b := 0; b < 256; b++ {
		e := E5M2(b)
		h := F16(uint16(b) << 8)
		if e.IsNaN() {
			assert.True(t, h.IsNaN())
			continue
		}
		assert.Equal(t, h.Float64(), e.Float64(), "%#02x", b)
	}
}
