// Package testcase defines the conformance tests. Each instruction family
// pairs a kernel template with an input domain and a host oracle that
// recomputes every element the device produced.
package testcase

import (
	"embed"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

//go:embed templates/*.ptx
var templates embed.FS

// Case is one named test.
type Case struct {
	Name string
	Run  engine.TestFunc
}

func template(name string) string {
	b, err := templates.ReadFile("templates/" + name + ".ptx")
	if err != nil {
		panic(fmt.Sprintf("testcase: template %s: %v", name, err))
	}
	return string(b)
}

func rangeCase[In, Out any](name string, t engine.RangeTest[In, Out]) Case {
	return Case{Name: name, Run: engine.Range(t)}
}

func randomCase[In, Out any](name string, t engine.RandomTest[In, Out]) Case {
	return Case{Name: name, Run: engine.Random(t)}
}

// opt returns s when on is set.
func opt(on bool, s string) string {
	if on {
		return s
	}
	return ""
}

func eq[T comparable](expected, got T) (T, bool) {
	return expected, expected == got
}

// sameF32 accepts identical bits, or any NaN for an expected NaN.
func sameF32(expected, got float32) (float32, bool) {
	if isNaN32(expected) && isNaN32(got) {
		return expected, true
	}
	return expected, math.Float32bits(expected) == math.Float32bits(got)
}

func sameF16(expected, got scalar.F16) (scalar.F16, bool) {
	if expected.IsNaN() && got.IsNaN() {
		return expected, true
	}
	return expected, expected == got
}

func isNaN32(x float32) bool {
	return x != x
}

func isInf32(x float32, sign int) bool {
	return math.IsInf(float64(x), sign)
}

func negZero32() float32 {
	return math.Float32frombits(0x80000000)
}

func isNegZero32(x float32) bool {
	return math.Float32bits(x) == 0x80000000
}

func f32(bits uint32) float32 {
	return math.Float32frombits(bits)
}

func nan32() float32 {
	return float32(math.NaN())
}

func inf32(sign int) float32 {
	return float32(math.Inf(sign))
}

func randInt[T scalar.Integer](r *rand.Rand) T {
	return T(r.Uint64())
}

func randF32(r *rand.Rand) float32 {
	return math.Float32frombits(r.Uint32())
}

func randBool(r *rand.Rand) bool {
	return r.IntN(2) == 1
}

// chance returns true with probability p.
func chance(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}

func kindName[T scalar.Scalar]() string {
	return scalar.KindOf[T]().Name
}

// bitsName is the untyped PTX spelling of T's width, e.g. "b32".
func bitsName[T scalar.Scalar]() string {
	return rawName(scalar.KindOf[T]())
}
