package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"kernelport/internal/logging"
)

// waitDelay bounds how long Execute waits for output after the process
// is killed.
const waitDelay = 5 * time.Second

// DirectExecutor executes commands directly on the host using os/exec.
type DirectExecutor struct {
	config ExecutorConfig
	logger *zap.Logger
}

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor(logger *zap.Logger) *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig(), logger)
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig, logger *zap.Logger) *DirectExecutor {
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = DefaultExecutorConfig().MaxOutputBytes
	}
	return &DirectExecutor{
		config: config,
		logger: logging.For(logger, logging.CategoryTools),
	}
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host and blocks until it exits.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if err := e.Validate(cmd); err != nil {
		return nil, err
	}

	timer := logging.StartTimer(e.logger, cmd.Binary)
	defer timer.Stop()

	e.logger.Debug("Executing command", zap.String("cmd", cmd.CommandString()))

	result := &ExecutionResult{ExitCode: -1}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = e.config.DefaultTimeout
	}
	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	if len(cmd.Environment) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Environment...)
	}
	setupProcessGroup(execCmd)
	execCmd.Cancel = func() error { return killProcessGroup(execCmd) }
	// Orphaned grandchildren may hold the output pipes open after a kill.
	execCmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf, combinedBuf bytes.Buffer
	combined := &lockedWriter{w: &limitedWriter{w: &combinedBuf, max: 2 * e.config.MaxOutputBytes}}
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	execCmd.Stdout = io.MultiWriter(stdoutLimited, combined)
	execCmd.Stderr = io.MultiWriter(stderrLimited, combined)

	start := time.Now()
	err := execCmd.Run()
	result.Duration = time.Since(start)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = combinedBuf.String()
	result.Truncated = stdoutLimited.truncated || stderrLimited.truncated

	if err == nil {
		result.Success = true
		result.ExitCode = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Success = true
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		e.logger.Warn("Command killed", zap.String("binary", cmd.Binary), zap.Duration("timeout", timeout))
	case errors.Is(execCtx.Err(), context.Canceled):
		result.Success = true
		result.Killed = true
		result.KillReason = "context canceled"
	case errors.As(err, &exitErr):
		result.Success = true
		result.ExitCode = exitErr.ExitCode()
		e.logger.Debug("Command exited non-zero",
			zap.String("binary", cmd.Binary), zap.Int("exit_code", result.ExitCode))
	default:
		result.Success = false
		result.Error = err.Error()
		e.logger.Warn("Command failed to run", zap.String("binary", cmd.Binary), zap.Error(err))
	}

	return result, nil
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}

// lockedWriter serializes writes from the stdout and stderr copy goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
