package scalar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip[T any](t *testing.T, l Layout[T], values []T) {
	t.Helper()
	cols := NewColumns(l.Kinds(), len(values))
	for _, v := range values {
		l.Write(v, cols)
	}
	total := 0
	for i, k := range l.Kinds() {
		require.Len(t, cols[i], len(values)*k.Size, "column %d", i)
		total += k.Size
	}
	assert.Equal(t, total, l.Size())
	for i, v := range values {
		assert.Equal(t, v, l.Read(cols, i), "index %d", i)
	}
}

func TestSingleRoundTrip(t *testing.T) {
	t.Run("u8", func(t *testing.T) { roundTrip(t, Of[uint8](), []uint8{0, 1, 0x7f, 0xff}) })
	t.Run("s8", func(t *testing.T) { roundTrip(t, Of[int8](), []int8{0, -1, math.MinInt8, math.MaxInt8}) })
	t.Run("u16", func(t *testing.T) { roundTrip(t, Of[uint16](), []uint16{0, 1, 0x8000, 0xffff}) })
	t.Run("s16", func(t *testing.T) { roundTrip(t, Of[int16](), []int16{0, -1, math.MinInt16, math.MaxInt16}) })
	t.Run("u32", func(t *testing.T) { roundTrip(t, Of[uint32](), []uint32{0, 1, 0xdeadbeef, math.MaxUint32}) })
	t.Run("s32", func(t *testing.T) { roundTrip(t, Of[int32](), []int32{0, -1, math.MinInt32, math.MaxInt32}) })
	t.Run("u64", func(t *testing.T) { roundTrip(t, Of[uint64](), []uint64{0, 1, math.MaxUint64}) })
	t.Run("s64", func(t *testing.T) { roundTrip(t, Of[int64](), []int64{0, -1, math.MinInt64, math.MaxInt64}) })
	t.Run("f16", func(t *testing.T) { roundTrip(t, Of[F16](), []F16{0, 0x8000, 0x3c00, F16Inf, F16Max}) })
	t.Run("f32", func(t *testing.T) {
		roundTrip(t, Of[float32](), []float32{0, float32(math.Copysign(0, -1)), 1.5, math.MaxFloat32, math.SmallestNonzeroFloat32})
	})
	t.Run("f64", func(t *testing.T) { roundTrip(t, Of[float64](), []float64{0, -2.25, math.MaxFloat64, math.Inf(-1)}) })
	t.Run("e4m3", func(t *testing.T) { roundTrip(t, Of[E4M3](), []E4M3{0, 0x80, E4M3Max, 0x01}) })
	t.Run("e5m2", func(t *testing.T) { roundTrip(t, Of[E5M2](), []E5M2{0, 0x80, E5M2Inf, E5M2Max}) })
	t.Run("pred", func(t *testing.T) { roundTrip(t, Bool(), []bool{true, false, true}) })
}

func TestSingleReadIsLittleEndian(t *testing.T) {
	cols := [][]byte{{0x00, 0x01, 0x02, 0x03, 0x04}}
	// Reads are unaligned: index 1 of a u16 column starts at byte 2.
	assert.Equal(t, uint16(0x0302), Of[uint16]().Read(cols, 1))
	assert.Equal(t, uint32(0x03020100), Of[uint32]().Read(cols, 0))
}

func TestFloatNaNRoundTripKeepsBits(t *testing.T) {
	l := Of[float32]()
	nan := math.Float32frombits(0x7fc00123)
	cols := NewColumns(l.Kinds(), 1)
	l.Write(nan, cols)
	assert.Equal(t, uint32(0x7fc00123), math.Float32bits(l.Read(cols, 0)))
}

func TestTupleRoundTrip(t *testing.T) {
	t.Run("pair", func(t *testing.T) {
		l := PairOf(Of[uint16](), Of[float32]())
		assert.Equal(t, []Kind{U16, F32}, l.Kinds())
		roundTrip(t, l, []Pair[uint16, float32]{P2[uint16, float32](1, 2.5), P2[uint16, float32](0xffff, -0.5)})
	})
	t.Run("triple", func(t *testing.T) {
		l := TripleOf(Of[int32](), Of[int32](), Of[uint64]())
		roundTrip(t, l, []Triple[int32, int32, uint64]{P3[int32, int32, uint64](-1, 2, 3), P3[int32, int32, uint64](4, -5, math.MaxUint64)})
	})
	t.Run("quad", func(t *testing.T) {
		l := QuadOf(Of[uint32](), Of[uint32](), Of[uint32](), Of[uint32]())
		assert.Equal(t, 16, l.Size())
		roundTrip(t, l, []Quad[uint32, uint32, uint32, uint32]{P4[uint32, uint32, uint32, uint32](1, 2, 3, 4)})
	})
	t.Run("nested", func(t *testing.T) {
		l := PairOf(PairOf(Of[uint8](), Of[int16]()), Bool())
		assert.Equal(t, []Kind{U8, S16, Pred}, l.Kinds())
		assert.Equal(t, 4, l.Size())
		v := P2(P2[uint8, int16](7, -300), true)
		roundTrip(t, l, []Pair[Pair[uint8, int16], bool]{v, v})
	})
}

func TestTupleColumnsAreIndependent(t *testing.T) {
	l := PairOf(Of[uint8](), Of[uint32]())
	cols := NewColumns(l.Kinds(), 2)
	l.Write(P2[uint8, uint32](0xaa, 0x11223344), cols)
	l.Write(P2[uint8, uint32](0xbb, 0x55667788), cols)
	assert.Equal(t, []byte{0xaa, 0xbb}, cols[0])
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11, 0x88, 0x77, 0x66, 0x55}, cols[1])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, U16, KindOf[uint16]())
	assert.Equal(t, F16K, KindOf[F16]())
	assert.True(t, KindOf[int32]().Signed())
	assert.False(t, KindOf[uint32]().Signed())
	assert.False(t, KindOf[float32]().Signed())
	assert.False(t, KindOf[float32]().Unsigned)
	assert.Equal(t, "s64", KindOf[int64]().Name)
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax(S16)
	assert.Equal(t, int64(math.MinInt16), lo)
	assert.Equal(t, uint64(math.MaxInt16), hi)
	lo, hi = MinMax(U64)
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, uint64(math.MaxUint64), hi)
	assert.Panics(t, func() { MinMax(F32) })
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "-1 [0xffffffff]", Format(int32(-1)))
	assert.Equal(t, "255 [0xff]", Format(uint8(255)))
	assert.Equal(t, "1.5 [0x3fc00000]", Format(float32(1.5)))
	assert.Equal(t, "-0 [0x8000]", Format(F16(0x8000)))
	assert.Equal(t, "448 [0x7e]", Format(E4M3Max))
}

func TestRawLayout(t *testing.T) {
	l := Raw(S16)
	require.Equal(t, []Kind{S16}, l.Kinds())
	cols := NewColumns(l.Kinds(), 2)
	l.Write(0xfffe, cols)
	l.Write(0x1234, cols)
	assert.Equal(t, []byte{0xfe, 0xff, 0x34, 0x12}, cols[0])
	assert.Equal(t, uint64(0xfffe), l.Read(cols, 0))
	assert.Equal(t, "-2 [0xfffe]", l.Format(0xfffe))
	assert.Equal(t, "0.1 [0x3dcccccd]", Raw(F32).Format(0x3dcccccd))
}
