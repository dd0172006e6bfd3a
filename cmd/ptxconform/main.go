package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/catalog"
	"github.com/fxnlabs/ptx-conformance/internal/config"
	"github.com/fxnlabs/ptx-conformance/internal/logger"
	"github.com/fxnlabs/ptx-conformance/internal/runner"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			if msg := exit.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// state is filled in by Before and shared by every command.
type state struct {
	cfg *config.Config
	log *zap.Logger
}

func newApp() *cli.App {
	st := &state{}
	return &cli.App{
		Name:  "ptxconform",
		Usage: "Check PTX instructions on a GPU against host reference models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "ptxconform.yaml",
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"PTXCONFORM_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log `LEVEL` (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-encoding",
				Usage: "Log encoding, json or console",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("verbosity") {
				cfg.Logger.Verbosity = c.String("verbosity")
			}
			if c.IsSet("log-encoding") {
				cfg.Logger.Encoding = c.String("log-encoding")
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity, cfg.Logger.Encoding)
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.log = zapLogger.Named("cli")
			return nil
		},
		After: func(c *cli.Context) error {
			if st.log != nil {
				_ = st.log.Sync()
			}
			return nil
		},
		// main maps exit codes; the default handler would call os.Exit itself
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			listCommand(st),
			runCommand(st),
		},
	}
}

func listCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print every test name without running anything",
		Action: func(c *cli.Context) error {
			tests, err := runner.Select(catalog.All(), nil, 0, 1)
			if err != nil {
				return err
			}
			return runner.List(tests, c.App.Writer)
		},
	}
}
