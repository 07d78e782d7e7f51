package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kernelport/cmd/kport/ui"
	"kernelport/internal/logging"
	"kernelport/internal/manifest"
	"kernelport/internal/regression"
)

// reconcileCmd compares outcomes with the baseline
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare verifier outcomes with the expectation baseline",
	Long: `Reads the outcome manifest and the expectation baseline and reports
tests whose outcome changed and tests the baseline does not track.

RACE is compared as FAIL; ABORT outcomes are not compared.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

// exportCmd prints outcomes as expectation entries
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write verifier outcomes as expectation entries",
	Long: `Writes one {"<path>", 1, <OUTCOME>}, line per PASS or RACE outcome.
RACE is written as FAIL. Artifacts containing tokens the consumer cannot parse
yet are written commented out.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateReconcile(); err != nil {
		return err
	}
	current, err := manifest.ReadPairsFile(cfg.Paths.OutcomeManifest)
	if err != nil {
		return fmt.Errorf("failed to read outcome manifest: %w", err)
	}
	baseline, err := manifest.ReadBaselineFile(cfg.Paths.Baseline)
	if err != nil {
		return fmt.Errorf("failed to read baseline: %w", err)
	}

	report, err := regression.Reconcile(current, baseline, cfg.Paths.OutputRoot)
	if err != nil {
		return err
	}
	logging.For(logger, logging.CategoryReconcile).Info("Reconciled",
		zap.Int("compared", report.Compared),
		zap.Int("regressions", len(report.Regressions)),
		zap.Int("untracked", len(report.Untracked)),
		zap.Int("skipped", report.Skipped))

	fmt.Fprint(cmd.OutOrStdout(), ui.Reconciliation(report, styles))

	if fail, _ := cmd.Flags().GetBool("fail-on-regression"); fail && len(report.Regressions) > 0 {
		return fmt.Errorf("%d regression(s) against %s", len(report.Regressions), cfg.Paths.Baseline)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	outcomes, err := manifest.ReadPairsFile(cfg.Paths.OutcomeManifest)
	if err != nil {
		return fmt.Errorf("failed to read outcome manifest: %w", err)
	}
	safety, _ := cmd.Flags().GetBool("safety")
	opts := regression.ExportOptions{Prefix: cfg.Paths.OutputRoot, SafetyOnly: safety}

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		path = cfg.Paths.ExportOutput
	}

	var stats regression.ExportStats
	write := func(w io.Writer) error {
		stats, err = regression.Export(w, outcomes, opts)
		return err
	}
	if path == "-" {
		err = write(cmd.OutOrStdout())
	} else {
		err = manifest.WriteFile(path, write)
	}
	if err != nil {
		return err
	}

	logging.For(logger, logging.CategoryReconcile).Info("Exported expectations",
		zap.String("output", path),
		zap.Int("written", stats.Written),
		zap.Int("commented", stats.Commented),
		zap.Int("omitted", stats.Omitted))
	if path != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d expectation(s) to %s (%d commented out)\n", stats.Written, path, stats.Commented)
	}
	return nil
}
