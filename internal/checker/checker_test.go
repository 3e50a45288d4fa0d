package checker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewParsesCommand(t *testing.T) {
	t.Parallel()

	c, err := New("lake env lean", "/tmp")
	require.NoError(t, err)
	require.Equal(t, []string{"lake", "env", "lean"}, c.argv)
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := New("   ", "/tmp")
	require.Error(t, err)
}

func TestInvokeSuccess(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/true")
	}

	c, err := New("true", t.TempDir())
	require.NoError(t, err)
	inv, err := c.Invoke(context.Background(), "ignored.lean", Limits{Timeout: 10 * time.Second})
	require.NoError(t, err)
	require.True(t, inv.ExitOK)
	require.False(t, inv.TimedOut)
	require.Greater(t, inv.Duration, time.Duration(0))
}

func TestInvokeCapturesDiagnosticsOnFailure(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "failing_checker.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"error: unknown identifier\" >&2\nexit 1\n"), 0o755))

	c, err := New(script, dir)
	require.NoError(t, err)
	inv, err := c.Invoke(context.Background(), "file.lean", Limits{Timeout: 10 * time.Second})
	require.NoError(t, err)
	require.False(t, inv.ExitOK)
	require.Contains(t, inv.Diagnostics, "unknown identifier")
}

func TestInvokeTimesOut(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep")
	}

	c, err := New("sleep", t.TempDir())
	require.NoError(t, err)
	inv, err := c.Invoke(context.Background(), "30", Limits{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	require.False(t, inv.ExitOK)
	require.True(t, inv.TimedOut)
}

func TestInvokeSurvivesParentCancellation(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep")
	}

	c, err := New("sleep", t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	inv, err := c.Invoke(ctx, "1", Limits{Timeout: 10 * time.Second})
	require.NoError(t, err)

	// The child runs to its own completion, not the caller's cancellation.
	require.GreaterOrEqual(t, time.Since(started), time.Second)
	require.True(t, inv.ExitOK)
	require.False(t, inv.TimedOut)
}

func TestCheckEnvMissingDir(t *testing.T) {
	t.Parallel()

	c, err := New("lake env lean", filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	_, err = c.CheckEnv(context.Background(), t.TempDir())
	require.ErrorContains(t, err, "checker directory not found")
}

func TestCheckEnvMissingLakefile(t *testing.T) {
	t.Parallel()

	c, err := New("lake env lean", t.TempDir())
	require.NoError(t, err)
	_, err = c.CheckEnv(context.Background(), t.TempDir())
	require.ErrorContains(t, err, "no lakefile")
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Lean (version 4.9.0)", firstLine("Lean (version 4.9.0)\nextra"))
	require.Equal(t, "one", firstLine("one"))
}
