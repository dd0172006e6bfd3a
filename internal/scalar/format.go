package scalar

import (
	"fmt"
	"math"
	"strconv"
)

type decoder interface {
	Float64() float64
}

// Format renders v as its value followed by its raw bits, which is what a
// reader needs to tell -0 from 0 or one NaN payload from another.
func Format[T Scalar](v T) string {
	return FormatBits(KindOf[T](), ToBits(v))
}

// FormatBits is Format for a payload whose kind is only known at run time.
func FormatBits(k Kind, bits uint64) string {
	if k.Size < 8 {
		bits &= 1<<k.Bits() - 1
	}
	hex := " [" + fmt.Sprintf("0x%0*x", k.Size*2, bits) + "]"
	switch {
	case k == F32:
		return strconv.FormatFloat(decodeFloat(k, bits), 'g', -1, 32) + hex
	case k.Float:
		return strconv.FormatFloat(decodeFloat(k, bits), 'g', -1, 64) + hex
	}
	if k.Unsigned {
		return strconv.FormatUint(bits, 10) + hex
	}
	return strconv.FormatInt(signExtend(bits, k.Bits()), 10) + hex
}

func decodeFloat(k Kind, bits uint64) float64 {
	var d decoder
	switch k {
	case F32:
		return float64(math.Float32frombits(uint32(bits)))
	case F64:
		return math.Float64frombits(bits)
	case F16K:
		d = F16(bits)
	case E4M3K:
		d = E4M3(bits)
	default:
		d = E5M2(bits)
	}
	return d.Float64()
}

func signExtend(bits uint64, width int) int64 {
	shift := 64 - width
	return int64(bits<<shift) >> shift
}
