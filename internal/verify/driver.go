package verify

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"kernelport/internal/directive"
	"kernelport/internal/logging"
	"kernelport/internal/manifest"
	"kernelport/internal/tactile"
)

// Options configures a Driver.
type Options struct {
	// Verifier is the verifier binary.
	Verifier string
	// ExtraFlag is appended to every invocation; empty means none.
	ExtraFlag string
	// RunOnPorted passes the ported artifact instead of the original source.
	RunOnPorted bool
	// Timeout bounds each invocation; zero waits forever.
	Timeout time.Duration
	// Env is passed to the verifier as extra "KEY=value" entries.
	Env []string
}

// Result is the outcome for one ported test.
type Result struct {
	Test           string
	Artifact       string
	Classification Classification
	Duration       time.Duration
}

// Report collects a whole verification run in manifest order.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Counts returns the number of results per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, res := range r.Results {
		counts[res.Classification.Outcome]++
	}
	return counts
}

// Unclassified returns the results that matched no rule.
func (r *Report) Unclassified() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Classification.Unclassified {
			out = append(out, res)
		}
	}
	return out
}

// Outcomes returns "<artifact> <OUTCOME>" records for the outcome manifest.
func (r *Report) Outcomes() []manifest.Pair {
	pairs := make([]manifest.Pair, 0, len(r.Results))
	for _, res := range r.Results {
		pairs = append(pairs, manifest.Pair{Key: res.Artifact, Value: res.Classification.Outcome.String()})
	}
	return pairs
}

// Driver runs the verifier over a port manifest, one test at a time.
type Driver struct {
	opts   Options
	exec   tactile.Executor
	logger *zap.Logger
}

// NewDriver creates a driver. A nil logger disables logging.
func NewDriver(opts Options, exec tactile.Executor, logger *zap.Logger) *Driver {
	return &Driver{
		opts:   opts,
		exec:   exec,
		logger: logging.For(logger, logging.CategoryVerify),
	}
}

// Command builds the verifier invocation for one test. params are the raw
// header tokens of the original test.
func (d *Driver) Command(target string, params []string) tactile.Command {
	args := make([]string, 0, len(params)+2)
	args = append(args, target)
	args = append(args, params...)
	if d.opts.ExtraFlag != "" {
		args = append(args, d.opts.ExtraFlag)
	}
	return tactile.Command{
		Binary:      d.opts.Verifier,
		Arguments:   args,
		Timeout:     d.opts.Timeout,
		Environment: d.opts.Env,
	}
}

// VerifyOne runs the verifier for a single (test, artifact) entry.
// The header tokens always come from the original test.
func (d *Driver) VerifyOne(ctx context.Context, entry manifest.Pair) (Result, error) {
	source, err := os.ReadFile(entry.Key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read test %s: %w", entry.Key, err)
	}
	params := directive.ParseSource(string(source)).Tokens

	target := entry.Key
	if d.opts.RunOnPorted {
		target = entry.Value
	}

	start := time.Now()
	res, err := d.exec.Execute(ctx, d.Command(target, params))
	if err != nil {
		return Result{}, fmt.Errorf("failed to run verifier on %s: %w", target, err)
	}
	// A cancelled run says nothing about the test.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	out := Result{Test: entry.Key, Artifact: entry.Value, Duration: time.Since(start)}

	switch {
	case res.IsError():
		// The verifier could not even start; nothing to classify.
		d.logger.Warn("Verifier did not run", zap.String("test", entry.Key), zap.String("error", res.Error))
		out.Classification = Classification{Outcome: Abort, Rule: "verifier-error"}
	case res.Killed:
		d.logger.Warn("Verifier killed", zap.String("test", entry.Key), zap.String("reason", res.KillReason))
		out.Classification = Classification{Outcome: Abort, Rule: "verifier-killed"}
	default:
		out.Classification = Classify(ToolResult{ExitCode: res.ExitCode, Output: res.Output()})
	}

	if out.Classification.Unclassified {
		d.logger.Warn("Unclassified verifier output",
			zap.String("test", entry.Key),
			zap.Int("exit_code", res.ExitCode),
			zap.String("output", res.Output()))
	}
	return out, nil
}

// Run verifies every entry of a port manifest in order.
func (d *Driver) Run(ctx context.Context, entries []manifest.Pair) (*Report, error) {
	report := &Report{StartedAt: time.Now()}
	total := len(entries)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.logger.Info("Verifying test",
			zap.Int("index", i+1),
			zap.Int("total", total),
			zap.String("test", entry.Key))

		res, err := d.VerifyOne(ctx, entry)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("Classified",
			zap.String("test", entry.Key),
			zap.String("outcome", res.Classification.Outcome.String()),
			zap.String("rule", res.Classification.Rule))
		report.Results = append(report.Results, res)
	}
	report.FinishedAt = time.Now()
	return report, nil
}
