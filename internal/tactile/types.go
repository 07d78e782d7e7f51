// Package tactile runs the external tools of the porting pipeline (compiler,
// disassembler, verifier) as synchronous subprocesses.
//
// A tool that runs and exits non-zero is not an error here: the exit status
// and captured output come back in an ExecutionResult and the caller decides
// what they mean. Only infrastructure failures (binary missing, output could
// not be captured) are reported as errors.
package tactile

import (
	"strings"
	"time"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run.
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, the current directory is used.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Timeout bounds the run. Zero means use the executor default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Environment holds extra "KEY=value" entries layered over the
	// current process environment.
	Environment []string `json:"environment,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ExecutionResult is the output of one tool run.
type ExecutionResult struct {
	// Success indicates whether the command could be run at all.
	// A command that runs but returns non-zero exit code has Success=true.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`

	// Combined is stdout and stderr interleaved in write order.
	Combined string `json:"combined"`

	// Duration is how long the command ran.
	Duration time.Duration `json:"duration"`

	// Killed indicates the command was terminated by a timeout.
	Killed bool `json:"killed"`

	// KillReason explains why the command was killed.
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was truncated due to size limits.
	Truncated bool `json:"truncated"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`
}

// IsError returns true if the execution failed (infrastructure error).
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// Succeeded returns true if the command ran and exited zero.
func (r *ExecutionResult) Succeeded() bool {
	return r.Success && r.ExitCode == 0 && !r.Killed
}

// Output returns Combined if available, otherwise Stdout+Stderr.
func (r *ExecutionResult) Output() string {
	if r.Combined != "" {
		return r.Combined
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultTimeout is used when Command.Timeout is zero.
	// Zero means commands run until they exit.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// MaxOutputBytes caps each captured stream (default 10MB).
	MaxOutputBytes int64 `json:"max_output_bytes"`
}

// DefaultExecutorConfig returns the defaults: no timeout, 10MB per stream.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxOutputBytes: 10 * 1024 * 1024,
	}
}
