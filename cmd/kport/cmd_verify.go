package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kernelport/cmd/kport/ui"
	"kernelport/internal/config"
	"kernelport/internal/manifest"
	"kernelport/internal/store"
	"kernelport/internal/tactile"
	"kernelport/internal/verify"
)

// verifyCmd runs the verifier over the port manifest
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the verifier over ported tests and classify outcomes",
	Long: `Reads the port manifest, runs the verifier once per test with the test's
header options, and classifies each run as PASS, RACE or ABORT.

Writes the outcome manifest (artifact -> outcome). Diagnostics that match no
known rule are logged as warnings and counted as ABORT.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	if t, _ := cmd.Flags().GetString("target"); t != "" {
		cfg.Verify.Target = t
	}
	if err := cfg.ValidateVerify(); err != nil {
		return err
	}

	entries, err := manifest.ReadPairsFile(cfg.Paths.PortManifest)
	if err != nil {
		return fmt.Errorf("failed to read port manifest: %w", err)
	}

	exec := tactile.NewDirectExecutor(logger)
	d := verify.NewDriver(verify.Options{
		Verifier:    cfg.Tools.Verifier,
		ExtraFlag:   cfg.Tools.VerifierExtraFlag,
		RunOnPorted: cfg.Verify.Target == config.TargetPorted,
		Timeout:     cfg.GetToolTimeout(),
		Env:         cfg.Tools.Environment(),
	}, exec, logger)

	report, err := d.Run(cmd.Context(), entries)
	if err != nil {
		return err
	}

	err = manifest.WriteFile(cfg.Paths.OutcomeManifest, func(w io.Writer) error {
		return manifest.WritePairs(w, report.Outcomes())
	})
	if err != nil {
		return fmt.Errorf("failed to write outcome manifest: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, ui.OutcomeCounts(report.Counts(), styles))
	fmt.Fprint(out, ui.Unclassified(report.Unclassified(), styles))

	counts := make(map[string]int, len(verify.Outcomes))
	for o, n := range report.Counts() {
		counts[o.String()] = n
	}
	outcomes := make([]store.Outcome, 0, len(report.Results))
	for _, r := range report.Results {
		outcomes = append(outcomes, store.Outcome{
			Test:     r.Test,
			Artifact: r.Artifact,
			Outcome:  r.Classification.Outcome.String(),
			Rule:     r.Classification.Rule,
		})
	}
	recordRun(store.Run{
		Stage:      store.StageVerify,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Counts:     counts,
	}, outcomes)
	return nil
}
