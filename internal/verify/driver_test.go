package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"kernelport/internal/manifest"
	"kernelport/internal/tactile"
)

// recordingExecutor answers every command from a table keyed by target path.
type recordingExecutor struct {
	mu       sync.Mutex
	commands []tactile.Command
	answers  map[string]*tactile.ExecutionResult
}

func (r *recordingExecutor) Execute(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	if res, ok := r.answers[cmd.Arguments[0]]; ok {
		return res, nil
	}
	return &tactile.ExecutionResult{Success: true}, nil
}

func writeTest(t *testing.T, dir, name, header string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	src := "//pass\n" + header + "\n\n__kernel void foo() {}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestDriver_Command(t *testing.T) {
	d := NewDriver(Options{Verifier: "gpuverify", ExtraFlag: "--no-benign-tolerance", Timeout: time.Minute}, nil, nil)
	cmd := d.Command("a/kernel.cl", []string{"--local_size=64", "--num_groups=1"})

	want := tactile.Command{
		Binary:    "gpuverify",
		Arguments: []string{"a/kernel.cl", "--local_size=64", "--num_groups=1", "--no-benign-tolerance"},
		Timeout:   time.Minute,
	}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("Command() mismatch (-want +got):\n%s", diff)
	}

	d = NewDriver(Options{Verifier: "gpuverify"}, nil, nil)
	assert.Equal(t, []string{"x.cl"}, d.Command("x.cl", nil).Arguments)
}

func TestDriver_Run(t *testing.T) {
	dir := t.TempDir()
	passTest := writeTest(t, dir, "ok/kernel.cl", "//--local_size=64 --num_groups=1")
	raceTest := writeTest(t, dir, "racy/kernel.cl", "//--local_size=8 --global_size=16")
	weird := writeTest(t, dir, "weird/kernel.cl", "//--local_size=1 --num_groups=4")
	missing := writeTest(t, dir, "missing/kernel.cl", "//--local_size=1 --num_groups=4")

	exec := &recordingExecutor{answers: map[string]*tactile.ExecutionResult{
		raceTest: {Success: true, ExitCode: 1, Combined: "error: possible write-write race on A"},
		weird:    {Success: true, ExitCode: 3, Combined: "something new"},
		missing:  {Success: false, ExitCode: -1, Error: "executable file not found"},
	}}

	core, logs := observer.New(zap.DebugLevel)
	d := NewDriver(Options{Verifier: "gpuverify", ExtraFlag: "--no-benign-tolerance"}, exec, zap.New(core))

	entries := []manifest.Pair{
		{Key: passTest, Value: "out/ok/ok.spv.dis"},
		{Key: raceTest, Value: "out/racy/racy.spv.dis"},
		{Key: weird, Value: "out/weird/weird.spv.dis"},
		{Key: missing, Value: "out/missing/missing.spv.dis"},
	}
	report, err := d.Run(context.Background(), entries)
	require.NoError(t, err)

	want := []manifest.Pair{
		{Key: "out/ok/ok.spv.dis", Value: "PASS"},
		{Key: "out/racy/racy.spv.dis", Value: "RACE"},
		{Key: "out/weird/weird.spv.dis", Value: "ABORT"},
		{Key: "out/missing/missing.spv.dis", Value: "ABORT"},
	}
	if diff := cmp.Diff(want, report.Outcomes()); diff != "" {
		t.Errorf("Outcomes() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[Outcome]int{Pass: 1, Race: 1, Abort: 2}, report.Counts())

	unclassified := report.Unclassified()
	require.Len(t, unclassified, 1)
	assert.Equal(t, weird, unclassified[0].Test)

	// Header tokens of the original test are forwarded verbatim.
	require.Len(t, exec.commands, 4)
	assert.Equal(t,
		[]string{raceTest, "--local_size=8", "--global_size=16", "--no-benign-tolerance"},
		exec.commands[1].Arguments)

	assert.Equal(t, 1, logs.FilterMessage("Unclassified verifier output").Len())
	assert.Equal(t, 4, logs.FilterMessage("Verifying test").Len())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestDriver_RunOnPorted(t *testing.T) {
	dir := t.TempDir()
	src := writeTest(t, dir, "a/kernel.cl", "//--local_size=4 --num_groups=2")

	exec := &recordingExecutor{}
	d := NewDriver(Options{Verifier: "gpuverify", RunOnPorted: true}, exec, nil)
	_, err := d.Run(context.Background(), []manifest.Pair{{Key: src, Value: "out/a/a.spv.dis"}})
	require.NoError(t, err)

	require.Len(t, exec.commands, 1)
	assert.Equal(t, []string{"out/a/a.spv.dis", "--local_size=4", "--num_groups=2"}, exec.commands[0].Arguments)
}

func TestDriver_KilledIsAbort(t *testing.T) {
	dir := t.TempDir()
	src := writeTest(t, dir, "slow/kernel.cl", "//--local_size=1 --num_groups=1")

	exec := &recordingExecutor{answers: map[string]*tactile.ExecutionResult{
		src: {Success: true, ExitCode: -1, Killed: true, KillReason: "timeout after 1s"},
	}}
	d := NewDriver(Options{Verifier: "gpuverify"}, exec, nil)
	res, err := d.VerifyOne(context.Background(), manifest.Pair{Key: src, Value: "out.spv.dis"})
	require.NoError(t, err)
	assert.Equal(t, Abort, res.Classification.Outcome)
	assert.Equal(t, "verifier-killed", res.Classification.Rule)
}

func TestDriver_MissingSourceIsFatal(t *testing.T) {
	d := NewDriver(Options{Verifier: "gpuverify"}, &recordingExecutor{}, nil)
	_, err := d.Run(context.Background(), []manifest.Pair{{Key: filepath.Join(t.TempDir(), "nope.cl"), Value: "x"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read test"))
}

func TestDriver_ExecutorErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	src := writeTest(t, dir, "a/kernel.cl", "//--local_size=1 --num_groups=1")

	boom := errors.New("boom")
	exec := tactile.ExecutorFunc(func(context.Context, tactile.Command) (*tactile.ExecutionResult, error) {
		return nil, boom
	})
	d := NewDriver(Options{Verifier: "gpuverify"}, exec, nil)
	_, err := d.Run(context.Background(), []manifest.Pair{{Key: src, Value: "x"}})
	assert.ErrorIs(t, err, boom)
}

func TestDriver_CancelledRunReturnsError(t *testing.T) {
	dir := t.TempDir()
	first := writeTest(t, dir, "a/kernel.cl", "//--local_size=1 --num_groups=1")
	second := writeTest(t, dir, "b/kernel.cl", "//--local_size=1 --num_groups=1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	exec := tactile.ExecutorFunc(func(context.Context, tactile.Command) (*tactile.ExecutionResult, error) {
		calls++
		// Interrupted while the verifier runs.
		cancel()
		return &tactile.ExecutionResult{Success: true, ExitCode: -1, Killed: true, KillReason: "context canceled"}, nil
	})
	d := NewDriver(Options{Verifier: "gpuverify"}, exec, nil)
	report, err := d.Run(ctx, []manifest.Pair{
		{Key: first, Value: "a.spv.dis"},
		{Key: second, Value: "b.spv.dis"},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Equal(t, 1, calls)
}

func TestDriver_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	src := writeTest(t, dir, "a/kernel.cl", "//--local_size=1 --num_groups=1")
	verifier := filepath.Join(dir, "verifier.sh")
	require.NoError(t, os.WriteFile(verifier, []byte("#!/bin/sh\nexit 0\n"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver(Options{Verifier: verifier}, tactile.NewDirectExecutor(nil), nil)
	_, err := d.VerifyOne(ctx, manifest.Pair{Key: src, Value: "a.spv.dis"})
	assert.ErrorIs(t, err, context.Canceled)

	report, err := d.Run(ctx, []manifest.Pair{{Key: src, Value: "a.spv.dis"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}
