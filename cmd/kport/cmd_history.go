package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kernelport/cmd/kport/ui"
	"kernelport/internal/store"
)

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show the outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.HistoryEnabled() {
		return fmt.Errorf("run history is disabled (set paths.history_db)")
	}
	if !fileExists(cfg.Paths.HistoryDB) {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("No runs recorded"))
		return nil
	}

	hs, err := store.NewHistoryStore(cfg.Paths.HistoryDB, logger)
	if err != nil {
		return err
	}
	defer hs.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := hs.GetRun(args[0])
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		outcomes, err := hs.Outcomes(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, ui.Runs([]store.Run{run}, styles))
		fmt.Fprint(out, ui.RunOutcomes(outcomes, styles))
		return nil
	}

	stage, _ := cmd.Flags().GetString("stage")
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := hs.ListRuns(stage, limit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, ui.Runs(runs, styles))
	return nil
}
