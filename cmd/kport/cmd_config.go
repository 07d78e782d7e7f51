package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kernelport/internal/config"
)

// initConfigCmd writes the default configuration
var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default configuration file",
	Long: `Writes the default configuration to the --config path. Tool paths are
filled from CLSPV_PATH, SPIRV_DIS_PATH and GPUVERIFY_PATH when set.`,
	Args: cobra.NoArgs,
	RunE: runInitConfig,
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if fileExists(configPath) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	// cfg already holds defaults plus env overrides when no file existed.
	out := cfg
	if force {
		out = config.DefaultConfig()
		out.Tools = cfg.Tools
	}
	if err := out.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
