package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearToolEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CLSPV_PATH", "SPIRV_DIS_PATH", "GPUVERIFY_PATH", "KPORT_CORPUS_ROOT", "KPORT_OUTPUT_ROOT"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Verify.Target != TargetSource {
		t.Errorf("expected Target=%s, got %s", TargetSource, cfg.Verify.Target)
	}
	if cfg.Tools.VerifierExtraFlag != "--no-benign-tolerance" {
		t.Errorf("unexpected extra flag %q", cfg.Tools.VerifierExtraFlag)
	}
	if len(cfg.Tools.CompilerFlags) != 3 {
		t.Errorf("expected 3 compiler flags, got %v", cfg.Tools.CompilerFlags)
	}
	if cfg.Port.GeneralOnly {
		t.Error("expected GeneralOnly=false by default")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearToolEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "kport.yaml")

	cfg := DefaultConfig()
	cfg.Tools.Compiler = "/opt/clspv/bin/clspv"
	cfg.Port.GeneralOnly = true
	cfg.Verify.Target = TargetPorted

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Tools.Compiler != "/opt/clspv/bin/clspv" {
		t.Errorf("expected Compiler round trip, got %s", loaded.Tools.Compiler)
	}
	if !loaded.Port.GeneralOnly {
		t.Error("expected GeneralOnly=true")
	}
	if loaded.Verify.Target != TargetPorted {
		t.Errorf("expected Target=ported, got %s", loaded.Verify.Target)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearToolEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.PortManifest != "port-result.txt" {
		t.Errorf("expected default port manifest, got %s", cfg.Paths.PortManifest)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearToolEnv(t)

	path := filepath.Join(t.TempDir(), "kport.yaml")
	content := "tools:\n  verifier: /usr/local/bin/gpuverify\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tools.Verifier != "/usr/local/bin/gpuverify" {
		t.Errorf("unexpected verifier %s", cfg.Tools.Verifier)
	}
	if cfg.Tools.VerifierExtraFlag != "--no-benign-tolerance" {
		t.Errorf("default extra flag lost: %q", cfg.Tools.VerifierExtraFlag)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kport.yaml")
	if err := os.WriteFile(path, []byte("tools: [unterminated"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetToolTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetToolTimeout(); got != 0 {
		t.Errorf("expected no timeout by default, got %s", got)
	}
	cfg.Tools.Timeout = "90s"
	if got := cfg.GetToolTimeout(); got != 90*time.Second {
		t.Errorf("expected 90s, got %s", got)
	}
	cfg.Tools.Timeout = "soon"
	if got := cfg.GetToolTimeout(); got != 0 {
		t.Errorf("expected fallback to 0, got %s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidatePort(); err == nil {
		t.Error("expected port validation error for missing compiler")
	}
	if err := cfg.ValidateVerify(); err == nil {
		t.Error("expected verify validation error for missing verifier")
	}
	if err := cfg.ValidateReconcile(); err != nil {
		t.Errorf("unexpected reconcile validation error: %v", err)
	}

	cfg.Tools.Compiler = "clspv"
	cfg.Tools.Disassembler = "spirv-dis"
	cfg.Tools.Verifier = "gpuverify"
	if err := cfg.ValidatePort(); err != nil {
		t.Errorf("unexpected port validation error: %v", err)
	}
	if err := cfg.ValidateVerify(); err != nil {
		t.Errorf("unexpected verify validation error: %v", err)
	}

	cfg.Verify.Target = "binary"
	if err := cfg.ValidateVerify(); err == nil {
		t.Error("expected error for invalid target")
	}
}

func TestToolsConfig_Environment(t *testing.T) {
	if env := DefaultConfig().Tools.Environment(); env != nil {
		t.Errorf("expected no tool environment by default, got %v", env)
	}

	tools := ToolsConfig{Env: map[string]string{"Z3_PATH": "/opt/z3", "BOOGIE": "/opt/boogie"}}
	got := tools.Environment()
	want := []string{"BOOGIE=/opt/boogie", "Z3_PATH=/opt/z3"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Environment() = %v, want %v", got, want)
	}
}
