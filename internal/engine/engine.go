// Package engine runs a test program over its whole input domain. The domain
// is cut into batches that fit the device memory budget; each batch is
// generated on the host, uploaded, launched, downloaded and checked element
// by element against the test's host oracle.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/driver"
)

const (
	// Seed starts the random stream of every randomized test.
	Seed uint64 = 0x761194f3027874ef
	// GroupSize is the number of threads per block. Every batch is a
	// multiple of it.
	GroupSize = 128
	// SafeMemoryLimit caps the device memory a single batch may use.
	SafeMemoryLimit uint64 = 1 << 29
	// DefaultRandomSamples is the number of inputs drawn by a random test.
	DefaultRandomSamples uint64 = 1 << 32
)

// TestFunc executes one test against env.
type TestFunc func(ctx context.Context, env *Env) error

// Options tune the engine. Zero values select the defaults.
type Options struct {
	MemoryLimit   uint64
	RandomSamples uint64
	Seed          uint64
	// FailFast stops a test at its first mismatching element instead of
	// counting the rest.
	FailFast bool
}

// Env is what a test runs against.
type Env struct {
	Device   driver.Device
	Compiler driver.Compiler
	Logger   *zap.Logger
	Options
}

// NewEnv creates an environment, filling unset options with defaults.
func NewEnv(device driver.Device, compiler driver.Compiler, logger *zap.Logger, opts Options) *Env {
	if opts.MemoryLimit == 0 {
		opts.MemoryLimit = SafeMemoryLimit
	}
	if opts.RandomSamples == 0 {
		opts.RandomSamples = DefaultRandomSamples
	}
	if opts.Seed == 0 {
		opts.Seed = Seed
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Env{
		Device:   device,
		Compiler: compiler,
		Logger:   logger,
		Options:  opts,
	}
}

// Batch is a contiguous slice [Start, Start+Len) of a test's domain.
type Batch struct {
	Start uint64
	Len   uint64
}

// Partition splits total elements of elemSize bytes into batches of about
// budget bytes. Every batch but the last is a multiple of GroupSize
// elements; the last takes the remainder. The batches cover [0, total)
// exactly once.
func Partition(total uint64, elemSize int, budget uint64) []Batch {
	if total == 0 {
		return nil
	}
	if budget == 0 {
		budget = 1
	}
	size := uint64(elemSize)
	required := total * size
	iterations := max(1, required/budget)
	batchBytes := nextMultiple(required/iterations, GroupSize*size)
	batchLen := batchBytes / size

	n := (total + batchLen - 1) / batchLen
	batches := make([]Batch, 0, n)
	for start := uint64(0); start < total; start += batchLen {
		batches = append(batches, Batch{Start: start, Len: min(batchLen, total-start)})
	}
	return batches
}

func nextMultiple(v, m uint64) uint64 {
	return (v + m - 1) / m * m
}

// budget is the number of bytes a batch may occupy on the device.
func (e *Env) budget() (uint64, error) {
	free, _, err := e.Device.MemInfo()
	if err != nil {
		return 0, err
	}
	return min(free/2, e.MemoryLimit), nil
}
