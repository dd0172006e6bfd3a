package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fxnlabs/ptx-conformance/internal/catalog"
	"github.com/fxnlabs/ptx-conformance/internal/config"
	"github.com/fxnlabs/ptx-conformance/internal/driver"
	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/runner"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	missing := filepath.Join(t.TempDir(), "ptxconform.yaml")
	err := app.Run(append([]string{"ptxconform", "--config", missing, "--verbosity", "error"}, args...))
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := runApp(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, len(catalog.All()))
	assert.Contains(t, lines, "bfe_rng_u32")
	assert.Contains(t, lines, "cvt_invalid")
	assert.IsIncreasing(t, lines)
}

func TestRun_Arguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing driver library", []string{"run"}, "driver library is required"},
		{"shard out of range", []string{"run", "--shard-index", "3", "--shard-count", "2", "libcuda.so"}, "runner.shardIndex"},
		{"zero memory limit", []string{"run", "--memory-limit", "0", "libcuda.so"}, "engine.memoryLimit"},
		{"bad filter", []string{"run", "--filter", "(", "libcuda.so"}, "invalid filter"},
		{"no device", []string{"run", "--filter", "^brev_b32$", filepath.Join("nonexistent", "libcuda.so")}, "no device"},
		{"unknown test name", []string{"run", "--test", "brev_b32", "--test", "brev_b16", "libcuda.so"}, "unknown test: brev_b16"},
		{"unknown device", []string{"run", "--device", "opencl"}, "driver.device"},
		{"known test names", []string{"run", "--test", "brev_b32", "-t", "cvt_invalid", filepath.Join("nonexistent", "libcuda.so")}, "no device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, out)
		})
	}
}

func TestRun_HostDevice(t *testing.T) {
	out, err := runApp(t, "run", "--device", "host", "--test", "shf_l_clamp_b32")
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode())
	assert.Regexp(t, `^shf_l_clamp_b32: FAIL: compilation failed: `, out)
}

func TestLookupTests(t *testing.T) {
	all := catalog.All()
	tests, err := lookupTests(all, []string{"sin_approx", "brev_b32", "sin_approx"})
	require.NoError(t, err)
	require.Len(t, tests, 2)
	assert.Equal(t, "sin_approx", tests[0].Name)
	assert.Equal(t, "brev_b32", tests[1].Name)

	_, err = lookupTests(all, []string{"sin_rn"})
	assert.EqualError(t, err, "unknown test: sin_rn")
}

func TestAppGraph(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.RandomSamples = 4 * engine.GroupSize
	cfg.Engine.FailFast = true

	host := driver.NewHostDevice(zap.NewNop(), 1<<24)
	host.Register(driver.HostKernel{
		Match: "shf.l.clamp.b32",
		Run: func(gid int, args [][]byte) {
			args[3][gid*4] = ^args[3][gid*4]
		},
	})

	var env *engine.Env
	var manager *driver.Manager
	core, logs := observer.New(zap.InfoLevel)
	app := fxtest.New(t,
		appOptions(cfg, zap.New(core)),
		fx.Supply(candidates{host}),
		fx.Populate(&env, &manager),
	)
	app.RequireStart()

	assert.Equal(t, "host", manager.DeviceType())
	ready := logs.FilterMessage("device manager ready").All()
	require.Len(t, ready, 1)
	assert.Equal(t, "host", ready[0].ContextMap()["type"])
	assert.Equal(t, cfg.Engine.RandomSamples, env.RandomSamples)
	assert.Equal(t, cfg.Engine.Seed, env.Seed)
	assert.True(t, env.FailFast)

	tests, err := runner.Select(catalog.All(), regexp.MustCompile(`^shf_l_clamp_b32$`), 0, 1)
	require.NoError(t, err)
	var out bytes.Buffer
	failures, err := runner.Run(context.Background(), tests, env, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.True(t, strings.HasPrefix(out.String(), "shf_l_clamp_b32: FAIL: Input "), out.String())

	app.RequireStop()
	_, _, err = host.MemInfo()
	assert.Error(t, err, "device is cleaned up on stop")
}
