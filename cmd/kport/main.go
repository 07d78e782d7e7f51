package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kernelport/cmd/kport/ui"
	"kernelport/internal/config"
	"kernelport/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	styles ui.Styles
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kport",
	Short: "kport - port OpenCL verifier tests to SPIR-V and track outcomes",
	Long: `kport moves a corpus of GPUVerify OpenCL kernel tests onto a SPIR-V based
verifier and keeps track of how the verifier does on them.

Stages:
  port       compile, disassemble and annotate every test
  verify     run the verifier over ported tests and classify the outcomes
  reconcile  compare outcomes with the stored expectation baseline
  export     print outcomes as expectation entries`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		styles = ui.DefaultStyles()
		logging.For(logger, logging.CategoryBoot).Debug("Configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	portCmd.Flags().Bool("general-only", false, "Reject tests that use verifier-specific annotations")
	portCmd.Flags().Bool("watch", false, "Port again whenever a corpus source changes")

	verifyCmd.Flags().String("target", "", "Verify the original \"source\" or the \"ported\" artifact")

	reconcileCmd.Flags().Bool("fail-on-regression", false, "Exit non-zero when a regression is found")

	exportCmd.Flags().Bool("safety", false, "Only export PASS expectations")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default from config, \"-\" for stdout)")

	historyCmd.Flags().String("stage", "", "Only list runs of this stage (port, verify)")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list")

	initConfigCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")

	rootCmd.AddCommand(portCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
