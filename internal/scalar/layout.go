package scalar

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Layout maps a host value onto one or more device columns. Each tuple slot
// owns its own column, so the device sees one flat array per kernel argument.
type Layout[T any] interface {
	// Kinds lists the element type of every column, in slot order.
	Kinds() []Kind
	// Size is the number of bytes one value occupies across all columns.
	Size() int
	// Write appends the little-endian encoding of v to its columns.
	Write(v T, cols [][]byte)
	// Read decodes the i-th value from the columns.
	Read(cols [][]byte, i int) T
	// Format renders v for mismatch reports.
	Format(v T) string
}

// NewColumns allocates one empty column per kind, each with room for n
// elements.
func NewColumns(kinds []Kind, n int) [][]byte {
	cols := make([][]byte, len(kinds))
	for i, k := range kinds {
		cols[i] = make([]byte, 0, n*k.Size)
	}
	return cols
}

type single[T Scalar] struct {
	kind Kind
}

// Of returns the single-column layout of T.
func Of[T Scalar]() Layout[T] {
	return single[T]{kind: KindOf[T]()}
}

func (s single[T]) Kinds() []Kind { return []Kind{s.kind} }

func (s single[T]) Size() int { return s.kind.Size }

func (s single[T]) Write(v T, cols [][]byte) {
	bits := ToBits(v)
	switch s.kind.Size {
	case 1:
		cols[0] = append(cols[0], byte(bits))
	case 2:
		cols[0] = binary.LittleEndian.AppendUint16(cols[0], uint16(bits))
	case 4:
		cols[0] = binary.LittleEndian.AppendUint32(cols[0], uint32(bits))
	default:
		cols[0] = binary.LittleEndian.AppendUint64(cols[0], bits)
	}
}

func (s single[T]) Read(cols [][]byte, i int) T {
	col := cols[0]
	switch s.kind.Size {
	case 1:
		return FromBits[T](uint64(col[i]))
	case 2:
		return FromBits[T](uint64(binary.LittleEndian.Uint16(col[i*2:])))
	case 4:
		return FromBits[T](uint64(binary.LittleEndian.Uint32(col[i*4:])))
	default:
		return FromBits[T](binary.LittleEndian.Uint64(col[i*8:]))
	}
}

func (s single[T]) Format(v T) string {
	return Format(v)
}

type boolLayout struct{}

// Bool returns the layout of a predicate argument, stored as one byte.
func Bool() Layout[bool] {
	return boolLayout{}
}

func (boolLayout) Kinds() []Kind { return []Kind{Pred} }

func (boolLayout) Size() int { return 1 }

func (boolLayout) Write(v bool, cols [][]byte) {
	var b byte
	if v {
		b = 1
	}
	cols[0] = append(cols[0], b)
}

func (boolLayout) Read(cols [][]byte, i int) bool {
	return cols[0][i] != 0
}

func (boolLayout) Format(v bool) string {
	return fmt.Sprint(v)
}

// Pair is a two-slot tuple.
type Pair[A, B any] struct {
	A A
	B B
}

// Triple is a three-slot tuple.
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}

// Quad is a four-slot tuple.
type Quad[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}

// P2 builds a Pair.
func P2[A, B any](a A, b B) Pair[A, B] { return Pair[A, B]{a, b} }

// P3 builds a Triple.
func P3[A, B, C any](a A, b B, c C) Triple[A, B, C] { return Triple[A, B, C]{a, b, c} }

// P4 builds a Quad.
func P4[A, B, C, D any](a A, b B, c C, d D) Quad[A, B, C, D] {
	return Quad[A, B, C, D]{a, b, c, d}
}

// slots splits cols into consecutive groups, one per child layout.
type slots struct {
	kinds  []Kind
	bounds []int
	size   int
}

func newSlots(children ...[]Kind) slots {
	s := slots{bounds: make([]int, 0, len(children)+1)}
	s.bounds = append(s.bounds, 0)
	for _, kinds := range children {
		s.kinds = append(s.kinds, kinds...)
		for _, k := range kinds {
			s.size += k.Size
		}
		s.bounds = append(s.bounds, len(s.kinds))
	}
	return s
}

func (s slots) part(cols [][]byte, i int) [][]byte {
	return cols[s.bounds[i]:s.bounds[i+1]]
}

type pairLayout[A, B any] struct {
	slots
	a Layout[A]
	b Layout[B]
}

// PairOf composes two layouts slot by slot.
func PairOf[A, B any](a Layout[A], b Layout[B]) Layout[Pair[A, B]] {
	return pairLayout[A, B]{slots: newSlots(a.Kinds(), b.Kinds()), a: a, b: b}
}

func (l pairLayout[A, B]) Kinds() []Kind { return l.kinds }

func (l pairLayout[A, B]) Size() int { return l.size }

func (l pairLayout[A, B]) Write(v Pair[A, B], cols [][]byte) {
	l.a.Write(v.A, l.part(cols, 0))
	l.b.Write(v.B, l.part(cols, 1))
}

func (l pairLayout[A, B]) Read(cols [][]byte, i int) Pair[A, B] {
	return Pair[A, B]{l.a.Read(l.part(cols, 0), i), l.b.Read(l.part(cols, 1), i)}
}

func (l pairLayout[A, B]) Format(v Pair[A, B]) string {
	return tuple(l.a.Format(v.A), l.b.Format(v.B))
}

type tripleLayout[A, B, C any] struct {
	slots
	a Layout[A]
	b Layout[B]
	c Layout[C]
}

// TripleOf composes three layouts slot by slot.
func TripleOf[A, B, C any](a Layout[A], b Layout[B], c Layout[C]) Layout[Triple[A, B, C]] {
	return tripleLayout[A, B, C]{slots: newSlots(a.Kinds(), b.Kinds(), c.Kinds()), a: a, b: b, c: c}
}

func (l tripleLayout[A, B, C]) Kinds() []Kind { return l.kinds }

func (l tripleLayout[A, B, C]) Size() int { return l.size }

func (l tripleLayout[A, B, C]) Write(v Triple[A, B, C], cols [][]byte) {
	l.a.Write(v.A, l.part(cols, 0))
	l.b.Write(v.B, l.part(cols, 1))
	l.c.Write(v.C, l.part(cols, 2))
}

func (l tripleLayout[A, B, C]) Read(cols [][]byte, i int) Triple[A, B, C] {
	return Triple[A, B, C]{
		l.a.Read(l.part(cols, 0), i),
		l.b.Read(l.part(cols, 1), i),
		l.c.Read(l.part(cols, 2), i),
	}
}

func (l tripleLayout[A, B, C]) Format(v Triple[A, B, C]) string {
	return tuple(l.a.Format(v.A), l.b.Format(v.B), l.c.Format(v.C))
}

type quadLayout[A, B, C, D any] struct {
	slots
	a Layout[A]
	b Layout[B]
	c Layout[C]
	d Layout[D]
}

// QuadOf composes four layouts slot by slot.
func QuadOf[A, B, C, D any](a Layout[A], b Layout[B], c Layout[C], d Layout[D]) Layout[Quad[A, B, C, D]] {
	return quadLayout[A, B, C, D]{
		slots: newSlots(a.Kinds(), b.Kinds(), c.Kinds(), d.Kinds()),
		a:     a,
		b:     b,
		c:     c,
		d:     d,
	}
}

func (l quadLayout[A, B, C, D]) Kinds() []Kind { return l.kinds }

func (l quadLayout[A, B, C, D]) Size() int { return l.size }

func (l quadLayout[A, B, C, D]) Write(v Quad[A, B, C, D], cols [][]byte) {
	l.a.Write(v.A, l.part(cols, 0))
	l.b.Write(v.B, l.part(cols, 1))
	l.c.Write(v.C, l.part(cols, 2))
	l.d.Write(v.D, l.part(cols, 3))
}

func (l quadLayout[A, B, C, D]) Read(cols [][]byte, i int) Quad[A, B, C, D] {
	return Quad[A, B, C, D]{
		l.a.Read(l.part(cols, 0), i),
		l.b.Read(l.part(cols, 1), i),
		l.c.Read(l.part(cols, 2), i),
		l.d.Read(l.part(cols, 3), i),
	}
}

func (l quadLayout[A, B, C, D]) Format(v Quad[A, B, C, D]) string {
	return tuple(l.a.Format(v.A), l.b.Format(v.B), l.c.Format(v.C), l.d.Format(v.D))
}

func tuple(parts ...string) string {
	return "(" + strings.Join(parts, ", ") + ")"
}

type rawLayout struct {
	kind Kind
}

// Raw returns a single-column layout of kind k carrying the raw payload in a
// uint64. Tests whose element types are chosen at run time use it.
func Raw(k Kind) Layout[uint64] {
	return rawLayout{kind: k}
}

func (r rawLayout) Kinds() []Kind { return []Kind{r.kind} }

func (r rawLayout) Size() int { return r.kind.Size }

func (r rawLayout) Write(v uint64, cols [][]byte) {
	single[uint64]{kind: r.kind}.Write(v, cols)
}

func (r rawLayout) Read(cols [][]byte, i int) uint64 {
	return single[uint64]{kind: r.kind}.Read(cols, i)
}

func (r rawLayout) Format(v uint64) string {
	return FormatBits(r.kind, v)
}
