package engine

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/driver"
	"github.com/fxnlabs/ptx-conformance/internal/metrics"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// FullRange is the MaxValue of a range test that enumerates every uint32.
const FullRange = 1<<32 - 1

// Verify checks one device result. It returns the host's expected value and
// whether out is acceptable.
type Verify[In, Out any] func(in In, out Out) (expected Out, ok bool)

// Test is the program and data shape shared by range and random tests.
type Test[In, Out any] struct {
	// Body is the instruction sequence; see ptx.Program.
	Body string
	// Args names the kernel parameters: one per input column, then the
	// output columns.
	Args   []string
	Input  scalar.Layout[In]
	Output scalar.Layout[Out]
	Verify Verify[In, Out]
}

// Program returns the kernel for t.
func (t Test[In, Out]) Program() ptx.Program {
	kinds := append(append([]scalar.Kind(nil), t.Input.Kinds()...), t.Output.Kinds()...)
	return ptx.Program{Body: t.Body, Args: ptx.Args(kinds, t.Args...)}
}

// RangeTest enumerates the inputs Generate(0) through Generate(MaxValue).
type RangeTest[In, Out any] struct {
	Test[In, Out]
	MaxValue uint32
	Generate func(i uint32) In
}

// RandomTest draws Env.RandomSamples inputs from one seeded stream.
type RandomTest[In, Out any] struct {
	Test[In, Out]
	Generate func(r *rand.Rand) In
}

// Range builds the test function for t. It panics if the domain size is
// not a multiple of GroupSize.
func Range[In, Out any](t RangeTest[In, Out]) TestFunc {
	total := uint64(t.MaxValue) + 1
	if total%GroupSize != 0 {
		panic(fmt.Sprintf("engine: range of %d elements is not a multiple of %d", total, GroupSize))
	}
	prog := t.Program()
	return func(ctx context.Context, env *Env) error {
		fill := func(b Batch, cols [][]byte) {
			for i := b.Start; i < b.Start+b.Len; i++ {
				t.Input.Write(t.Generate(uint32(i)), cols)
			}
		}
		return execute(ctx, env, prog, t.Test, total, fill)
	}
}

// Random builds the test function for t. The stream is seeded from
// Env.Seed once per run and shared by all batches.
func Random[In, Out any](t RandomTest[In, Out]) TestFunc {
	prog := t.Program()
	return func(ctx context.Context, env *Env) error {
		total := env.RandomSamples
		if total%GroupSize != 0 {
			return fmt.Errorf("random sample count %d is not a multiple of %d", total, GroupSize)
		}
		rng := rand.New(rand.NewPCG(env.Seed, env.Seed))
		fill := func(b Batch, cols [][]byte) {
			for i := uint64(0); i < b.Len; i++ {
				t.Input.Write(t.Generate(rng), cols)
			}
		}
		return execute(ctx, env, prog, t.Test, total, fill)
	}
}

// InvalidForm is a program expected to be rejected by the compiler.
type InvalidForm struct {
	Name    string
	Program ptx.Program
}

// ExpectCompileFailure passes when every invalid form fails to compile.
func ExpectCompileFailure(forms []InvalidForm) TestFunc {
	return func(ctx context.Context, env *Env) error {
		for _, p := range forms {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := compiles(env, p.Program)
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
			if ok {
				return &UnexpectedCompilationSuccessError{Name: p.Name}
			}
		}
		return nil
	}
}

func compiles(env *Env, p ptx.Program) (bool, error) {
	image, err := env.Compiler.Compile(p)
	if _, rejected := driver.AsCompileError(err); rejected {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	mod, err := env.Device.LoadModule(image)
	if _, rejected := driver.AsCompileError(err); rejected {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, env.Device.UnloadModule(mod)
}

// load compiles p and resolves its entry point.
func load(env *Env, p ptx.Program) (driver.Module, driver.Function, error) {
	image, err := env.Compiler.Compile(p)
	if e, ok := driver.AsCompileError(err); ok {
		return 0, 0, &CompilationError{Log: compileLog(e)}
	}
	if err != nil {
		return 0, 0, err
	}
	mod, err := env.Device.LoadModule(image)
	if e, ok := driver.AsCompileError(err); ok {
		return 0, 0, &CompilationError{Log: compileLog(e)}
	}
	if err != nil {
		return 0, 0, err
	}
	fn, err := env.Device.Function(mod, ptx.EntryPoint)
	if err != nil {
		_ = env.Device.UnloadModule(mod)
		if driver.IsNotFound(err) {
			return 0, 0, ErrMissingEntryPoint
		}
		return 0, 0, err
	}
	return mod, fn, nil
}

func compileLog(e *driver.Error) string {
	if e.Log != "" {
		return e.Log
	}
	return e.Error()
}

// tally accumulates verification results across batches.
type tally struct {
	total  uint64
	passed uint64
	first  *MismatchError
}

func execute[In, Out any](ctx context.Context, env *Env, prog ptx.Program, t Test[In, Out], total uint64, fill func(Batch, [][]byte)) (err error) {
	mod, fn, err := load(env, prog)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := env.Device.UnloadModule(mod); uerr != nil && err == nil {
			err = uerr
		}
	}()

	budget, err := env.budget()
	if err != nil {
		return err
	}
	metrics.MemoryBudgetBytes.Set(float64(budget))

	elemSize := t.Input.Size() + t.Output.Size()
	batches := Partition(total, elemSize, budget)
	if len(batches) == 0 {
		return nil
	}
	env.Logger.Debug("partitioned test domain",
		zap.Uint64("elements", total),
		zap.Int("element_size", elemSize),
		zap.Uint64("budget", budget),
		zap.Int("batches", len(batches)))

	capacity := int(batches[0].Len)
	in := scalar.NewColumns(t.Input.Kinds(), capacity)
	out := scalar.NewColumns(t.Output.Kinds(), capacity)

	var tl tally
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		for c := range in {
			in[c] = in[c][:0]
		}
		fill(b, in)
		for c, k := range t.Output.Kinds() {
			out[c] = out[c][:int(b.Len)*k.Size]
		}

		if err := roundTrip(env, fn, b, in, out); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		metrics.Batches.Inc()

		if stop := check(env, t, b, in, out, &tl); stop {
			break
		}
	}

	if tl.first != nil {
		tl.first.Total = tl.total
		tl.first.Passed = tl.passed
		return tl.first
	}
	return nil
}

// roundTrip uploads the input columns, runs the kernel and downloads the
// output columns. Device memory is released before it returns.
func roundTrip(env *Env, fn driver.Function, b Batch, in, out [][]byte) (err error) {
	dev := env.Device
	ptrs := make([]driver.DevicePtr, 0, len(in)+len(out))
	defer func() {
		for _, p := range ptrs {
			if ferr := dev.Free(p); ferr != nil && err == nil {
				err = ferr
			}
		}
	}()

	for _, col := range in {
		p, err := dev.Alloc(uint64(len(col)))
		if err != nil {
			return err
		}
		ptrs = append(ptrs, p)
		if err := dev.CopyHtoD(p, col); err != nil {
			return err
		}
	}
	for _, col := range out {
		p, err := dev.Alloc(uint64(len(col)))
		if err != nil {
			return err
		}
		ptrs = append(ptrs, p)
	}

	if err := dev.Launch(fn, uint32(b.Len/GroupSize), GroupSize, ptrs); err != nil {
		return err
	}
	if err := dev.Synchronize(); err != nil {
		return err
	}
	for i, col := range out {
		if err := dev.CopyDtoH(col, ptrs[len(in)+i]); err != nil {
			return err
		}
	}
	return nil
}

// check verifies a downloaded batch and reports whether the test should
// stop.
func check[In, Out any](env *Env, t Test[In, Out], b Batch, in, out [][]byte, tl *tally) bool {
	var verified, mismatched uint64
	defer func() {
		metrics.ElementsVerified.Add(float64(verified))
		metrics.ElementsMismatched.Add(float64(mismatched))
	}()
	for i := 0; i < int(b.Len); i++ {
		input := t.Input.Read(in, i)
		got := t.Output.Read(out, i)
		tl.total++
		verified++
		expected, ok := t.Verify(input, got)
		if ok {
			tl.passed++
			continue
		}
		mismatched++
		if tl.first == nil {
			tl.first = &MismatchError{
				Input:    t.Input.Format(input),
				Output:   t.Output.Format(got),
				Expected: t.Output.Format(expected),
			}
			env.Logger.Debug("first mismatch", zap.Uint64("element", b.Start+uint64(i)))
		}
		if env.FailFast {
			return true
		}
	}
	return false
}
