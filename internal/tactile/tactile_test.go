package tactile

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestDirectExecutor_Execute(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor(nil)

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"hello"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Succeeded() {
		t.Errorf("Expected success, got exit=%d error=%s", result.ExitCode, result.Error)
	}
	if !strings.Contains(result.Output(), "hello") {
		t.Errorf("Expected output to contain 'hello', got: %s", result.Output())
	}
}

func TestDirectExecutor_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, "echo 'error: possible write-write race on A' >&2\nexit 1")

	result, err := NewDirectExecutor(nil).Execute(context.Background(), Command{Binary: script})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.IsError() || result.Succeeded() {
		t.Fatalf("Expected non-zero exit, got %+v", result)
	}
	if result.ExitCode != 1 {
		t.Errorf("Expected exit code 1, got %d", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "race on") {
		t.Errorf("Expected stderr captured, got %q", result.Stderr)
	}
	if !strings.Contains(result.Combined, "race on") {
		t.Errorf("Expected combined output to include stderr, got %q", result.Combined)
	}
}

func TestDirectExecutor_CombinedHasBothStreams(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, "echo first\necho second >&2\necho third")

	result, err := NewDirectExecutor(nil).Execute(context.Background(), Command{Binary: script})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{"first", "second", "third"} {
		if !strings.Contains(result.Combined, want) {
			t.Errorf("combined output %q missing %q", result.Combined, want)
		}
	}
	if result.Stdout != "first\nthird\n" || result.Stderr != "second\n" {
		t.Errorf("unexpected split: stdout=%q stderr=%q", result.Stdout, result.Stderr)
	}
}

func TestDirectExecutor_MissingBinary(t *testing.T) {
	result, err := NewDirectExecutor(nil).Execute(context.Background(), Command{
		Binary: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if err != nil {
		t.Fatalf("Execute returned error instead of result: %v", err)
	}
	if !result.IsError() {
		t.Fatalf("expected infrastructure error, got %+v", result)
	}
	if result.Succeeded() {
		t.Error("missing binary must not succeed")
	}
}

func TestDirectExecutor_Validate(t *testing.T) {
	if _, err := NewDirectExecutor(nil).Execute(context.Background(), Command{}); err == nil {
		t.Fatal("expected validation error for empty binary")
	}
}

func TestDirectExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor(nil)

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"10"},
		Timeout:   200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Killed {
		t.Fatalf("expected command to be killed, got %+v", result)
	}
	if result.Succeeded() {
		t.Error("killed command must not count as success")
	}
}

func TestDirectExecutor_TimeoutKillsChildren(t *testing.T) {
	skipOnWindows(t)
	// The child keeps stdout open; without a group kill Execute would block
	// until it exits.
	script := writeScript(t, "sleep 30 &\nwait")

	start := time.Now()
	result, err := NewDirectExecutor(nil).Execute(context.Background(), Command{
		Binary:  script,
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Killed {
		t.Fatalf("expected command to be killed, got %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Execute took %s; children were not killed", elapsed)
	}
}

func TestDirectExecutor_Environment(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, `echo "$KPORT_TEST_VAR"`)

	result, err := NewDirectExecutor(nil).Execute(context.Background(), Command{
		Binary:      script,
		Environment: []string{"KPORT_TEST_VAR=from-config"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "from-config" {
		t.Errorf("expected variable in tool environment, got %q", result.Stdout)
	}
}

func TestDirectExecutor_OutputLimit(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutorWithConfig(ExecutorConfig{MaxOutputBytes: 4}, nil)

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"abcdefgh"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Truncated {
		t.Error("expected truncation")
	}
	if result.Stdout != "abcd" {
		t.Errorf("expected truncated stdout, got %q", result.Stdout)
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Binary: "clspv", Arguments: []string{"a.cl", "-o", "a.spv"}}
	if got := cmd.CommandString(); got != "clspv a.cl -o a.spv" {
		t.Errorf("unexpected command string %q", got)
	}
	if got := (Command{Binary: "spirv-dis"}).CommandString(); got != "spirv-dis" {
		t.Errorf("unexpected command string %q", got)
	}
}

func TestExecutorFunc(t *testing.T) {
	var seen Command
	exec := ExecutorFunc(func(ctx context.Context, cmd Command) (*ExecutionResult, error) {
		seen = cmd
		return &ExecutionResult{Success: true}, nil
	})
	if _, err := exec.Execute(context.Background(), Command{Binary: "x"}); err != nil {
		t.Fatal(err)
	}
	if seen.Binary != "x" {
		t.Errorf("ExecutorFunc did not forward command")
	}
}
