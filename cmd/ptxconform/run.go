package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fxnlabs/ptx-conformance/internal/catalog"
	"github.com/fxnlabs/ptx-conformance/internal/config"
	"github.com/fxnlabs/ptx-conformance/internal/driver"
	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/metrics"
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
	"github.com/fxnlabs/ptx-conformance/internal/runner"
	"github.com/fxnlabs/ptx-conformance/internal/testcase"
)

// candidates are the devices offered to the manager, in order of preference.
type candidates []driver.Device

func runCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the selected tests; the exit code is the number of failures",
		ArgsUsage: "[driver-lib]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Only run tests whose name matches `REGEX`",
			},
			&cli.StringSliceFlag{
				Name:    "test",
				Aliases: []string{"t"},
				Usage:   "Run only the test named `NAME`; repeatable",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "Select the `KIND` of device: cuda or host",
			},
			&cli.StringFlag{
				Name:  "compiler",
				Usage: "Compile through the NVRTC library at `PATH` instead of loading PTX directly",
			},
			&cli.IntFlag{
				Name:  "shard-index",
				Usage: "Run shard `I` of --shard-count",
			},
			&cli.IntFlag{
				Name:  "shard-count",
				Usage: "Split the selected tests into `N` shards",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Stop each test at its first mismatching element",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics to `FILE` when the run ends",
			},
			&cli.Uint64Flag{
				Name:  "memory-limit",
				Usage: "Cap device memory per batch at `BYTES`",
			},
		},
		Action: func(c *cli.Context) error {
			cfg := st.cfg
			applyRunFlags(c, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Driver.Device == "cuda" && cfg.Driver.LibraryPath == "" {
				return errors.New("run: path to the driver library is required")
			}
			var filter *regexp.Regexp
			if cfg.Runner.Filter != "" {
				re, err := regexp.Compile(cfg.Runner.Filter)
				if err != nil {
					return fmt.Errorf("invalid filter: %w", err)
				}
				filter = re
			}
			all := catalog.All()
			if names := c.StringSlice("test"); len(names) > 0 {
				picked, err := lookupTests(all, names)
				if err != nil {
					return err
				}
				all = picked
			}
			tests, err := runner.Select(all, filter, cfg.Runner.ShardIndex, cfg.Runner.ShardCount)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.ErrWriter, figure.NewFigure("ptxconform", "", true).String())

			var env *engine.Env
			app := fx.New(
				appOptions(cfg, st.log),
				fx.Provide(newCandidates),
				fx.Populate(&env),
			)
			if err := app.Err(); err != nil {
				return err
			}
			if err := app.Start(c.Context); err != nil {
				return err
			}

			st.log.Info("running tests", zap.Int("count", len(tests)),
				zap.Int("shard_index", cfg.Runner.ShardIndex), zap.Int("shard_count", cfg.Runner.ShardCount))
			failures, runErr := runner.Run(c.Context, tests, env, c.App.Writer)

			if err := app.Stop(context.Background()); err != nil {
				st.log.Warn("device cleanup failed", zap.Error(err))
			}
			if cfg.Metrics.Textfile != "" {
				if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
					st.log.Error("failed to write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
				}
			}
			st.log.Info("run finished", zap.Int("tests", len(tests)), zap.Int("failures", failures))
			if runErr != nil {
				return cli.Exit(runErr.Error(), max(failures, 1))
			}
			if failures > 0 {
				return cli.Exit("", failures)
			}
			return nil
		},
	}
}

// applyRunFlags lets explicitly set flags override the configuration.
func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if lib := c.Args().First(); lib != "" {
		cfg.Driver.LibraryPath = lib
	}
	if c.IsSet("filter") {
		cfg.Runner.Filter = c.String("filter")
	}
	if c.IsSet("device") {
		cfg.Driver.Device = c.String("device")
	}
	if c.IsSet("compiler") {
		cfg.Driver.CompilerPath = c.String("compiler")
	}
	if c.IsSet("shard-index") {
		cfg.Runner.ShardIndex = c.Int("shard-index")
	}
	if c.IsSet("shard-count") {
		cfg.Runner.ShardCount = c.Int("shard-count")
	}
	if c.IsSet("fail-fast") {
		cfg.Engine.FailFast = c.Bool("fail-fast")
	}
	if c.IsSet("metrics-file") {
		cfg.Metrics.Textfile = c.String("metrics-file")
	}
	if c.IsSet("memory-limit") {
		cfg.Engine.MemoryLimit = c.Uint64("memory-limit")
	}
}

// appOptions wires configuration into a ready engine environment. The
// device candidates are supplied by the caller.
func appOptions(cfg *config.Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.Provide(
			newManager,
			newCompiler,
			newEnv,
		),
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
	)
}

// newCandidates builds the configured device. The host device has no
// kernels registered, so it checks the harness end to end without a GPU.
func newCandidates(cfg *config.Config, log *zap.Logger) (candidates, error) {
	if cfg.Driver.Device == "host" {
		return candidates{driver.NewHostDevice(log.Named("driver"), cfg.Engine.MemoryLimit)}, nil
	}
	dev, err := driver.NewCUDADevice(log.Named("driver"), cfg.Driver.LibraryPath)
	if err != nil {
		return nil, err
	}
	return candidates{dev}, nil
}

func newManager(lc fx.Lifecycle, log *zap.Logger, devices candidates) (*driver.Manager, error) {
	m, err := driver.NewManager(log.Named("driver"), devices...)
	if err != nil {
		return nil, err
	}
	log.Info("device manager ready",
		zap.String("type", m.DeviceType()),
		zap.String("name", m.Info().Name))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Cleanup()
		},
	})
	return m, nil
}

// lookupTests resolves exact test names. A name given twice runs once.
func lookupTests(all []testcase.Case, names []string) ([]testcase.Case, error) {
	var tests []testcase.Case
	seen := make(map[string]bool)
	for _, name := range names {
		t, err := catalog.Lookup(all, name)
		if err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			tests = append(tests, t)
		}
	}
	return tests, nil
}

func newCompiler(cfg *config.Config, log *zap.Logger) (driver.Compiler, error) {
	return driver.NewCompiler(log.Named("compiler"), cfg.Driver.CompilerPath, header(cfg))
}

func header(cfg *config.Config) ptx.Header {
	return ptx.Header{Version: cfg.PTX.Version, Target: cfg.PTX.Target}
}

func newEnv(cfg *config.Config, m *driver.Manager, compiler driver.Compiler, log *zap.Logger) *engine.Env {
	return engine.NewEnv(m.Device(), compiler, log.Named("engine"), engine.Options{
		MemoryLimit:   cfg.Engine.MemoryLimit,
		RandomSamples: cfg.Engine.RandomSamples,
		Seed:          cfg.Engine.Seed,
		FailFast:      cfg.Engine.FailFast,
	})
}
