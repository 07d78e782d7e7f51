// Package port turns a corpus of OpenCL tests into annotated SPIR-V
// disassembly the target verifier can consume.
//
// Each test is compiled, disassembled and given a directive block derived from
// its header and the disassembly. Tests are processed one at a time in corpus
// walk order; a failing test is dropped and the batch continues.
package port

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"kernelport/internal/corpus"
	"kernelport/internal/directive"
	"kernelport/internal/logging"
	"kernelport/internal/manifest"
	"kernelport/internal/spirv"
	"kernelport/internal/tactile"
)

const (
	// BinaryExt is the compiled module extension.
	BinaryExt = ".spv"
	// DisassemblyExt is the ported artifact extension.
	DisassemblyExt = ".spv.dis"
)

// Options configures a Porter.
type Options struct {
	CorpusRoot    string
	OutputRoot    string
	Compiler      string
	CompilerFlags []string
	Disassembler  string

	// GeneralOnly also rejects tests that use verifier-specific annotations.
	GeneralOnly bool

	// Timeout bounds each tool invocation; zero waits forever.
	Timeout time.Duration
	// Env is passed to every tool as extra "KEY=value" entries.
	Env []string

	// PortManifest and GeneralManifest are written at the end of Run when set.
	PortManifest    string
	GeneralManifest string
}

// Status is the terminal state of one test.
type Status string

const (
	StatusPorted            Status = "ported"
	StatusUnsupported       Status = "unsupported"
	StatusNotGeneral        Status = "not-general"
	StatusCompileFailed     Status = "compile-failed"
	StatusDisassembleFailed Status = "disassemble-failed"
	StatusPortingError      Status = "porting-error"
)

// Result is the outcome of porting one test.
type Result struct {
	Test     corpus.Test
	Status   Status
	General  bool
	Artifact string
	// Reason explains a rejection; empty when ported.
	Reason string
}

// Summary aggregates a port run.
type Summary struct {
	Total             int
	General           int
	Unsupported       int
	NotGeneral        int
	CompileFailed     int
	DisassembleFailed int
	PortingErrors     int

	// Stray lists sources that sit outside any test directory. They are not
	// counted in Total.
	Stray []string

	// Ported pairs original test paths with artifacts, in walk order.
	Ported []manifest.Pair
	// GeneralTests lists every general test path, ported or not.
	GeneralTests []string
}

func (s *Summary) add(r Result) {
	s.Total++
	if r.General {
		s.General++
		s.GeneralTests = append(s.GeneralTests, r.Test.Path)
	}
	switch r.Status {
	case StatusPorted:
		s.Ported = append(s.Ported, manifest.Pair{Key: r.Test.Path, Value: r.Artifact})
	case StatusUnsupported:
		s.Unsupported++
	case StatusNotGeneral:
		s.NotGeneral++
	case StatusCompileFailed:
		s.CompileFailed++
	case StatusDisassembleFailed:
		s.DisassembleFailed++
	case StatusPortingError:
		s.PortingErrors++
	}
}

// Porter drives the per-test port pipeline.
type Porter struct {
	opts   Options
	exec   tactile.Executor
	logger *zap.Logger
}

// New creates a Porter. A nil logger disables logging.
func New(opts Options, exec tactile.Executor, logger *zap.Logger) *Porter {
	return &Porter{
		opts:   opts,
		exec:   exec,
		logger: logging.For(logger, logging.CategoryPort),
	}
}

// ArtifactPath returns where the ported artifact of t is written.
func (p *Porter) ArtifactPath(t corpus.Test) string {
	return filepath.Join(p.opts.OutputRoot, filepath.FromSlash(t.ID), t.Name+DisassemblyExt)
}

// Run discovers the corpus and ports every test. Discovery errors, including
// duplicate test identities, abort the run before any tool is invoked.
func (p *Porter) Run(ctx context.Context) (*Summary, error) {
	timer := logging.StartTimer(p.logger, "port")
	defer timer.StopWithInfo()

	tests, stray, err := corpus.Discover(p.opts.CorpusRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to discover corpus: %w", err)
	}
	for _, path := range stray {
		p.logger.Warn("Skipping source outside a test directory", zap.String("path", path))
	}
	p.logger.Info("Discovered corpus", zap.String("root", p.opts.CorpusRoot), zap.Int("tests", len(tests)))

	summary := &Summary{Stray: stray}
	for i, t := range tests {
		res, err := p.PortOne(ctx, t)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("Ported test",
			zap.Int("index", i+1),
			zap.Int("total", len(tests)),
			zap.String("test", t.ID),
			zap.String("status", string(res.Status)),
			zap.String("reason", res.Reason))
		summary.add(res)
	}

	if err := p.writeManifests(summary); err != nil {
		return nil, err
	}
	p.logger.Info("Port complete",
		zap.Int("total", summary.Total),
		zap.Int("ported", len(summary.Ported)),
		zap.Int("general", summary.General))
	return summary, nil
}

// PortOne runs the pipeline for a single test. Per-test failures are reported
// through the Result; the error is reserved for conditions that should stop
// the whole batch.
func (p *Porter) PortOne(ctx context.Context, t corpus.Test) (Result, error) {
	res := Result{Test: t}

	source, err := os.ReadFile(t.Path)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", t.Path, err)
	}
	features := corpus.Scan(string(source))
	res.General = features.General

	if !features.Supported {
		return p.reject(res, StatusUnsupported, "uses floating point"), nil
	}
	if p.opts.GeneralOnly && !features.General {
		return p.reject(res, StatusNotGeneral, "uses verifier-specific annotations"), nil
	}

	artifact := p.ArtifactPath(t)
	if err := os.MkdirAll(filepath.Dir(artifact), 0755); err != nil {
		return res, fmt.Errorf("failed to create output directory for %s: %w", t.ID, err)
	}
	binary := filepath.Join(filepath.Dir(artifact), t.Name+BinaryExt)

	compile := tactile.Command{
		Binary:      p.opts.Compiler,
		Arguments:   append(append([]string{t.Path}, p.opts.CompilerFlags...), "-o", binary),
		Timeout:     p.opts.Timeout,
		Environment: p.opts.Env,
	}
	ok, reason, err := p.run(ctx, compile)
	if err != nil {
		return res, err
	}
	if !ok {
		return p.reject(res, StatusCompileFailed, reason), nil
	}

	disassemble := tactile.Command{
		Binary:      p.opts.Disassembler,
		Arguments:   []string{binary, "-o", artifact},
		Timeout:     p.opts.Timeout,
		Environment: p.opts.Env,
	}
	ok, reason, err = p.run(ctx, disassemble)
	if err != nil {
		return res, err
	}
	if rmErr := os.Remove(binary); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		p.logger.Warn("Failed to remove binary", zap.String("path", binary), zap.Error(rmErr))
	}
	if !ok {
		return p.reject(res, StatusDisassembleFailed, reason), nil
	}

	if err := annotate(artifact, directive.ParseSource(string(source))); err != nil {
		if errors.Is(err, directive.ErrPorting) {
			_ = os.Remove(artifact)
			return p.reject(res, StatusPortingError, err.Error()), nil
		}
		return res, err
	}

	res.Status = StatusPorted
	res.Artifact = artifact
	return res, nil
}

// annotate prepends the synthesized directive block to the disassembly.
func annotate(artifact string, header directive.Header) error {
	body, err := os.ReadFile(artifact)
	if err != nil {
		return fmt.Errorf("failed to read disassembly %s: %w", artifact, err)
	}
	set, err := directive.Synthesize(header, spirv.RuntimeArrayVariables(string(body)))
	if err != nil {
		return err
	}
	out := append([]byte(set.Render()), body...)
	if err := os.WriteFile(artifact, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", artifact, err)
	}
	return nil
}

// run executes a tool. ok is false when the tool could not run or exited
// non-zero; err is set only when the context is done.
func (p *Porter) run(ctx context.Context, cmd tactile.Command) (ok bool, reason string, err error) {
	res, err := p.exec.Execute(ctx, cmd)
	if err != nil {
		return false, "", fmt.Errorf("failed to run %s: %w", cmd.Binary, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, "", ctxErr
	}
	if res.IsError() {
		p.logger.Warn("Tool did not run", zap.String("command", cmd.CommandString()), zap.String("error", res.Error))
		return false, res.Error, nil
	}
	if !res.Succeeded() {
		if res.Killed {
			return false, res.KillReason, nil
		}
		return false, fmt.Sprintf("%s exited with status %d", filepath.Base(cmd.Binary), res.ExitCode), nil
	}
	return true, "", nil
}

func (p *Porter) reject(res Result, status Status, reason string) Result {
	res.Status = status
	res.Reason = reason
	return res
}

func (p *Porter) writeManifests(s *Summary) error {
	if p.opts.PortManifest != "" {
		err := manifest.WriteFile(p.opts.PortManifest, func(w io.Writer) error {
			return manifest.WritePairs(w, s.Ported)
		})
		if err != nil {
			return fmt.Errorf("failed to write port manifest: %w", err)
		}
	}
	if p.opts.GeneralManifest != "" {
		err := manifest.WriteFile(p.opts.GeneralManifest, func(w io.Writer) error {
			return manifest.WriteList(w, s.GeneralTests)
		})
		if err != nil {
			return fmt.Errorf("failed to write general manifest: %w", err)
		}
	}
	return nil
}
