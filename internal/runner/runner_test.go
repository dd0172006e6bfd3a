package runner

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/catalog"
	"github.com/fxnlabs/ptx-conformance/internal/driver"
	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/metrics"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/testcase"
)

func named(names ...string) []testcase.Case {
	var tests []testcase.Case
	for _, n := range names {
		tests = append(tests, testcase.Case{Name: n, Run: func(context.Context, *engine.Env) error { return nil }})
	}
	return tests
}

func names(tests []testcase.Case) []string {
	var out []string
	for _, t := range tests {
		out = append(out, t.Name)
	}
	return out
}

func result(err error) engine.TestFunc {
	return func(context.Context, *engine.Env) error { return err }
}

func TestSelect(t *testing.T) {
	tests := named("sin_approx", "brev_b32", "cvt_rn_f16_f32", "bfe_rng_u32", "cvt_rz_f16_f32")

	t.Run("sorts", func(t *testing.T) {
		got, err := Select(tests, nil, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"bfe_rng_u32", "brev_b32", "cvt_rn_f16_f32", "cvt_rz_f16_f32", "sin_approx"}, names(got))
	})

	t.Run("filters", func(t *testing.T) {
		got, err := Select(tests, regexp.MustCompile(`^cvt_`), 0, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"cvt_rn_f16_f32", "cvt_rz_f16_f32"}, names(got))
	})

	t.Run("shards cover every test once", func(t *testing.T) {
		var all []string
		for i := 0; i < 3; i++ {
			got, err := Select(tests, nil, i, 3)
			require.NoError(t, err)
			assert.Contains(t, []int{1, 2}, len(got))
			all = append(all, names(got)...)
		}
		assert.Equal(t, []string{"bfe_rng_u32", "brev_b32", "cvt_rn_f16_f32", "cvt_rz_f16_f32", "sin_approx"}, all)
	})

	t.Run("more shards than tests", func(t *testing.T) {
		got, err := Select(tests[:1], nil, 0, 4)
		require.NoError(t, err)
		assert.Empty(t, got)
		got, err = Select(tests[:1], nil, 3, 4)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("invalid shard", func(t *testing.T) {
		_, err := Select(tests, nil, 2, 2)
		assert.Error(t, err)
		_, err = Select(tests, nil, 0, 0)
		assert.Error(t, err)
	})

	t.Run("input untouched", func(t *testing.T) {
		assert.Equal(t, "sin_approx", tests[0].Name)
	})
}

func TestRun(t *testing.T) {
	env := engine.NewEnv(nil, nil, zap.NewNop(), engine.Options{})
	ok := testutil.ToFloat64(metrics.TestResults.WithLabelValues(metrics.ResultOK))
	fail := testutil.ToFloat64(metrics.TestResults.WithLabelValues(metrics.ResultFail))

	tests := []testcase.Case{
		{Name: "a", Run: result(nil)},
		{Name: "b", Run: result(&engine.MismatchError{Input: "1", Output: "2", Expected: "3", Total: 10, Passed: 9})},
		{Name: "c", Run: result(&engine.CompilationError{Log: "ptxas fatal"})},
		{Name: "d", Run: result(&engine.UnexpectedCompilationSuccessError{Name: "cvt_sat_s32_s16"})},
		{Name: "e", Run: result(engine.ErrMissingEntryPoint)},
	}
	var out bytes.Buffer
	failures, err := Run(context.Background(), tests, env, &out)
	require.NoError(t, err)
	assert.Equal(t, 4, failures)
	assert.Equal(t, "a: OK\n"+
		"b: FAIL: Input 1, computed on GPU 2, computed on CPU 3 (passed 9/10)\n"+
		"c: FAIL: compilation failed: ptxas fatal\n"+
		"d: FAIL: compilation unexpectedly succeeded for cvt_sat_s32_s16\n"+
		"e: FAIL: missing entry point\n", out.String())

	assert.Equal(t, ok+1, testutil.ToFloat64(metrics.TestResults.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, fail+4, testutil.ToFloat64(metrics.TestResults.WithLabelValues(metrics.ResultFail)))
}

func TestRun_EnvironmentErrorAborts(t *testing.T) {
	env := engine.NewEnv(nil, nil, zap.NewNop(), engine.Options{})
	oom := &driver.Error{Op: driver.OpMemAlloc, Code: driver.CodeOutOfMemory}
	ran := false
	tests := []testcase.Case{
		{Name: "a", Run: result(nil)},
		{Name: "b", Run: result(oom)},
		{Name: "c", Run: func(context.Context, *engine.Env) error { ran = true; return nil }},
	}
	var out bytes.Buffer
	failures, err := Run(context.Background(), tests, env, &out)
	require.ErrorIs(t, err, ErrAborted)
	var de *driver.Error
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, 1, failures)
	assert.False(t, ran)
	assert.Equal(t, "a: OK\nb: ERROR: "+oom.Error()+"\n", out.String())
}

func TestRun_Cancelled(t *testing.T) {
	env := engine.NewEnv(nil, nil, zap.NewNop(), engine.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	failures, err := Run(ctx, named("a"), env, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, failures)
	assert.Empty(t, out.String())
}

func TestList(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, List(named("x", "y"), &out))
	assert.Equal(t, "x\ny\n", out.String())
}

func TestRun_HostDeviceWithoutKernels(t *testing.T) {
	dev := driver.NewHostDevice(zap.NewNop(), 1<<24)
	require.NoError(t, dev.Initialize())
	defer dev.Cleanup()
	env := engine.NewEnv(dev, driver.NewDirectCompiler(ptx.DefaultHeader()), zap.NewNop(),
		engine.Options{RandomSamples: engine.GroupSize})

	tests, err := Select(catalog.All(), regexp.MustCompile(`^shf_l_clamp_b32$`), 0, 1)
	require.NoError(t, err)
	require.Len(t, tests, 1)

	var out bytes.Buffer
	failures, err := Run(context.Background(), tests, env, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.Regexp(t, `^shf_l_clamp_b32: FAIL: compilation failed: `, out.String())
	assert.Zero(t, dev.LiveBuffers())
}
