package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for configuration.
const DefaultConfigPath = "kport.yaml"

// Config holds all kernelport configuration.
// A Config is passed explicitly to each component; nothing reads it globally.
type Config struct {
	// External tools
	Tools ToolsConfig `yaml:"tools"`

	// Corpus, artifacts and manifests
	Paths PathsConfig `yaml:"paths"`

	// Porting behaviour
	Port PortConfig `yaml:"port"`

	// Verification behaviour
	Verify VerifyConfig `yaml:"verify"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates the corpus and every file the pipeline reads or writes.
type PathsConfig struct {
	CorpusRoot      string `yaml:"corpus_root"`
	OutputRoot      string `yaml:"output_root"`
	PortManifest    string `yaml:"port_manifest"`
	GeneralManifest string `yaml:"general_manifest"`
	OutcomeManifest string `yaml:"outcome_manifest"`
	Baseline        string `yaml:"baseline"`
	ExportOutput    string `yaml:"export_output"`

	// HistoryDB is the SQLite run ledger. Empty disables history.
	HistoryDB string `yaml:"history_db"`
}

// PortConfig configures the corpus porter.
type PortConfig struct {
	// GeneralOnly rejects tests that use verifier-specific annotations.
	GeneralOnly bool `yaml:"general_only"`
}

// Verification targets.
const (
	TargetSource = "source"
	TargetPorted = "ported"
)

// VerifyConfig configures the verifier driver.
type VerifyConfig struct {
	// Target selects what the verifier is run on: "source" or "ported".
	Target string `yaml:"target"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			CompilerFlags: []string{
				"--cl-std=CL2.0",
				"--inline-entry-points",
				"--spv-version=1.6",
			},
			VerifierExtraFlag: "--no-benign-tolerance",
			Timeout:           "0s",
		},

		Paths: PathsConfig{
			CorpusRoot:      "../latest_benchmarks/OpenCL/",
			OutputRoot:      "../latest_benchmarks/spv-dis/",
			PortManifest:    "port-result.txt",
			GeneralManifest: "no_gpuverify_specific_feature.txt",
			OutcomeManifest: "verify-result.txt",
			Baseline:        "expectation.txt",
			ExportOutput:    "output.txt",
			HistoryDB:       ".kport/history.db",
		},

		Verify: VerifyConfig{
			Target: TargetSource,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// The tool variables match the ones the benchmark scripts always used.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("CLSPV_PATH"); p != "" {
		c.Tools.Compiler = p
	}
	if p := os.Getenv("SPIRV_DIS_PATH"); p != "" {
		c.Tools.Disassembler = p
	}
	if p := os.Getenv("GPUVERIFY_PATH"); p != "" {
		c.Tools.Verifier = p
	}
	if p := os.Getenv("KPORT_CORPUS_ROOT"); p != "" {
		c.Paths.CorpusRoot = p
	}
	if p := os.Getenv("KPORT_OUTPUT_ROOT"); p != "" {
		c.Paths.OutputRoot = p
	}
}

// GetToolTimeout returns the per-invocation tool timeout. Zero means none.
func (c *Config) GetToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ValidatePort checks the fields the port stage needs.
func (c *Config) ValidatePort() error {
	if c.Tools.Compiler == "" {
		return fmt.Errorf("compiler path not configured (set tools.compiler or CLSPV_PATH)")
	}
	if c.Tools.Disassembler == "" {
		return fmt.Errorf("disassembler path not configured (set tools.disassembler or SPIRV_DIS_PATH)")
	}
	if c.Paths.CorpusRoot == "" || c.Paths.OutputRoot == "" {
		return fmt.Errorf("corpus_root and output_root are required")
	}
	if c.Paths.PortManifest == "" || c.Paths.GeneralManifest == "" {
		return fmt.Errorf("port_manifest and general_manifest are required")
	}
	return nil
}

// ValidateVerify checks the fields the verify stage needs.
func (c *Config) ValidateVerify() error {
	if c.Tools.Verifier == "" {
		return fmt.Errorf("verifier path not configured (set tools.verifier or GPUVERIFY_PATH)")
	}
	if c.Paths.PortManifest == "" || c.Paths.OutcomeManifest == "" {
		return fmt.Errorf("port_manifest and outcome_manifest are required")
	}
	switch c.Verify.Target {
	case TargetSource, TargetPorted:
	default:
		return fmt.Errorf("invalid verify target: %q (valid: %s, %s)", c.Verify.Target, TargetSource, TargetPorted)
	}
	return nil
}

// ValidateReconcile checks the fields the reconcile stage needs.
func (c *Config) ValidateReconcile() error {
	if c.Paths.OutcomeManifest == "" || c.Paths.Baseline == "" {
		return fmt.Errorf("outcome_manifest and baseline are required")
	}
	return nil
}

// HistoryEnabled reports whether runs are recorded in the history database.
func (c *Config) HistoryEnabled() bool {
	return c.Paths.HistoryDB != ""
}
