// Package runner selects tests and executes them one after another.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/engine"
	"github.com/fxnlabs/ptx-conformance/internal/metrics"
	"github.com/fxnlabs/ptx-conformance/internal/testcase"
)

// ErrAborted is returned by Run when a test hit an environment error.
var ErrAborted = errors.New("run aborted")

// Select sorts tests by name, keeps those whose name matches filter and
// returns shard shardIndex of shardCount. A nil filter keeps everything.
// Shards are contiguous and differ in size by at most one test.
func Select(tests []testcase.Case, filter *regexp.Regexp, shardIndex, shardCount int) ([]testcase.Case, error) {
	if shardCount < 1 || shardIndex < 0 || shardIndex >= shardCount {
		return nil, fmt.Errorf("invalid shard %d of %d", shardIndex, shardCount)
	}
	sorted := make([]testcase.Case, len(tests))
	copy(sorted, tests)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var selected []testcase.Case
	for _, t := range sorted {
		if filter == nil || filter.MatchString(t.Name) {
			selected = append(selected, t)
		}
	}
	n := len(selected)
	return selected[n*shardIndex/shardCount : n*(shardIndex+1)/shardCount], nil
}

// Run executes tests in order and writes one report line per test to out.
// It returns the number of tests that failed. An environment error stops
// the run: the offending test counts as a failure and the returned error
// wraps ErrAborted.
func Run(ctx context.Context, tests []testcase.Case, env *engine.Env, out io.Writer) (int, error) {
	log := env.Logger.Named("runner")
	failures := 0
	for _, t := range tests {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		start := time.Now()
		err := t.Run(ctx, env)
		elapsed := time.Since(start)
		metrics.TestDuration.Observe(elapsed.Seconds())

		switch {
		case err == nil:
			metrics.TestResults.WithLabelValues(metrics.ResultOK).Inc()
			fmt.Fprintf(out, "%s: OK\n", t.Name)
			log.Info("test passed", zap.String("test", t.Name), zap.Duration("duration", elapsed))
		case engine.IsTestFailure(err):
			failures++
			metrics.TestResults.WithLabelValues(metrics.ResultFail).Inc()
			fmt.Fprintf(out, "%s: FAIL: %v\n", t.Name, err)
			log.Info("test failed", zap.String("test", t.Name), zap.Duration("duration", elapsed))
		default:
			failures++
			metrics.TestResults.WithLabelValues(metrics.ResultError).Inc()
			fmt.Fprintf(out, "%s: ERROR: %v\n", t.Name, err)
			log.Error("test aborted", zap.String("test", t.Name), zap.Error(err))
			return failures, fmt.Errorf("%s: %w: %w", t.Name, ErrAborted, err)
		}
	}
	return failures, nil
}

// List writes every test name to out, one per line.
func List(tests []testcase.Case, out io.Writer) error {
	for _, t := range tests {
		if _, err := fmt.Fprintln(out, t.Name); err != nil {
			return err
		}
	}
	return nil
}
