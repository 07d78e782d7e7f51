package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kernelport/cmd/kport/ui"
	"kernelport/internal/logging"
	"kernelport/internal/port"
	"kernelport/internal/store"
	"kernelport/internal/tactile"
)

// portCmd ports the whole corpus
var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Compile, disassemble and annotate every corpus test",
	Long: `Walks the corpus root and, for every test, runs the compiler and the
disassembler, then prepends "; @Input:" and "; @Config:" directives derived
from the test header and the disassembly.

Writes the port manifest (test -> artifact) and the general manifest (tests
without verifier-specific annotations).

With --watch, keeps running and ports the corpus again whenever a .cl file
under the corpus root changes.`,
	Args: cobra.NoArgs,
	RunE: runPort,
}

func runPort(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("general-only") {
		cfg.Port.GeneralOnly, _ = cmd.Flags().GetBool("general-only")
	}
	if err := cfg.ValidatePort(); err != nil {
		return err
	}

	exec := tactile.NewDirectExecutor(logger)
	p := port.New(port.Options{
		CorpusRoot:      cfg.Paths.CorpusRoot,
		OutputRoot:      cfg.Paths.OutputRoot,
		Compiler:        cfg.Tools.Compiler,
		CompilerFlags:   cfg.Tools.CompilerFlags,
		Disassembler:    cfg.Tools.Disassembler,
		GeneralOnly:     cfg.Port.GeneralOnly,
		Timeout:         cfg.GetToolTimeout(),
		Env:             cfg.Tools.Environment(),
		PortManifest:    cfg.Paths.PortManifest,
		GeneralManifest: cfg.Paths.GeneralManifest,
	}, exec, logger)

	if err := portOnce(cmd.Context(), cmd.OutOrStdout(), p); err != nil {
		return err
	}
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		w := port.NewWatcher(cfg.Paths.CorpusRoot, 0, func(ctx context.Context) error {
			return portOnce(ctx, cmd.OutOrStdout(), p)
		}, logger)
		return w.Watch(cmd.Context())
	}
	return nil
}

// portOnce runs the porter, prints its summary and records the run.
func portOnce(ctx context.Context, out io.Writer, p *port.Porter) error {
	started := time.Now()
	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprint(out, ui.PortSummary(summary, styles))

	recordRun(store.Run{
		Stage:      store.StagePort,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Counts: map[string]int{
			"total":              summary.Total,
			"general":            summary.General,
			"unsupported":        summary.Unsupported,
			"not_general":        summary.NotGeneral,
			"compile_failed":     summary.CompileFailed,
			"disassemble_failed": summary.DisassembleFailed,
			"porting_errors":     summary.PortingErrors,
			"ported":             len(summary.Ported),
		},
	}, portOutcomes(summary))
	return nil
}

func portOutcomes(s *port.Summary) []store.Outcome {
	out := make([]store.Outcome, 0, len(s.Ported))
	for _, p := range s.Ported {
		out = append(out, store.Outcome{Test: p.Key, Artifact: p.Value, Outcome: string(port.StatusPorted)})
	}
	return out
}

// recordRun appends a run to the history store when one is configured.
// History is best effort: a failure is logged and the stage still succeeds.
func recordRun(run store.Run, outcomes []store.Outcome) {
	if !cfg.HistoryEnabled() {
		return
	}
	log := logging.For(logger, logging.CategoryStore)

	hs, err := store.NewHistoryStore(cfg.Paths.HistoryDB, logger)
	if err != nil {
		log.Warn("History unavailable", zap.String("path", cfg.Paths.HistoryDB), zap.Error(err))
		return
	}
	defer hs.Close()

	id, err := hs.RecordRun(run, outcomes)
	if err != nil {
		log.Warn("Failed to record run", zap.Error(err))
		return
	}
	log.Info("Recorded run", zap.String("id", id), zap.String("stage", run.Stage))
}
