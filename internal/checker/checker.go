// Package checker wraps the external Lean toolchain invocation. Each check
// runs the configured command as an isolated child process under explicit
// wall-clock and memory limits.
package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// Header is prepended to every assembled unit before invocation.
const Header = "import Mathlib\nopen Classical\n\n"

type Checker struct {
	argv []string
	dir  string
}

// New parses the configured checker command (e.g. "lake env lean") and
// binds it to the checker project directory.
func New(command, dir string) (*Checker, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse checker command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("checker command is empty")
	}
	return &Checker{argv: argv, dir: dir}, nil
}

type Limits struct {
	Timeout  time.Duration
	MemoryMB int
}

// Invocation is the raw outcome of one child-process run, prior to status
// classification.
type Invocation struct {
	ExitOK      bool
	Diagnostics string
	Duration    time.Duration
	MaxRSSMB    float64
	TimedOut    bool
}

// Invoke compiles file under the given limits. The child is started in its
// own process group so a terminal interrupt reaches only the parent, and
// its address space and CPU time are capped at the OS level. Once started,
// a run is bounded only by its own deadline; cancelling ctx stops new
// submissions upstream, never a check already in flight. The returned
// error covers only failures to run the child at all; a rejecting checker
// is reported through Invocation.
func (c *Checker) Invoke(ctx context.Context, file string, limits Limits) (Invocation, error) {
	runCtx := ctx
	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), limits.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.argv[1:]...), file)
	cmd := exec.CommandContext(runCtx, c.argv[0], args...)
	cmd.Dir = c.dir
	cmd.WaitDelay = 5 * time.Second
	setProcessGroup(cmd)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Invocation{}, fmt.Errorf("start checker: %w", err)
	}
	applyResourceLimits(cmd, limits)

	waitErr := cmd.Wait()
	inv := Invocation{
		ExitOK:      waitErr == nil,
		Diagnostics: combined.String(),
		Duration:    time.Since(started),
		MaxRSSMB:    maxRSSMB(cmd),
		TimedOut:    errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && !inv.TimedOut {
			return inv, fmt.Errorf("run checker: %w", waitErr)
		}
	}
	return inv, nil
}

// Version reports the toolchain version string, e.g. for the stats file.
func (c *Checker) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	args := append(append([]string{}, c.argv[1:]...), "--version")
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("checker version: %s", firstLine(trimmed))
		}
		return "", fmt.Errorf("checker version: %w", err)
	}
	if trimmed == "" {
		return "", errors.New("checker version produced no output")
	}
	return firstLine(trimmed), nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

const (
	envBuildTimeout = 2 * time.Minute
	envProbeTimeout = 10 * time.Minute
	probeTheorem    = "import Mathlib\ntheorem env_probe : 1 + 1 = 2 := by norm_num\n"
)

// CheckEnv verifies the checker project is usable: a lakefile exists, the
// project builds, and a trivial proof compiles. Build failures and probe
// timeouts are returned as warnings so a slow or partially built
// environment does not block a run the user has already vetted.
func (c *Checker) CheckEnv(ctx context.Context, scratchDir string) ([]string, error) {
	if _, err := os.Stat(c.dir); err != nil {
		return nil, fmt.Errorf("checker directory not found: %s", c.dir)
	}
	hasLakefile := false
	for _, name := range []string{"lakefile.lean", "lakefile.toml"} {
		if _, err := os.Stat(filepath.Join(c.dir, name)); err == nil {
			hasLakefile = true
			break
		}
	}
	if !hasLakefile {
		return nil, fmt.Errorf("no lakefile found in %s", c.dir)
	}

	var warnings []string
	buildCtx, cancel := context.WithTimeout(ctx, envBuildTimeout)
	defer cancel()
	build := exec.CommandContext(buildCtx, "lake", "build")
	build.Dir = c.dir
	if out, err := build.CombinedOutput(); err != nil {
		warnings = append(warnings, fmt.Sprintf("lake build had issues: %s", truncate(string(out), 200)))
	}

	probeFile := filepath.Join(scratchDir, "env_probe.lean")
	if err := os.WriteFile(probeFile, []byte(probeTheorem), 0o644); err != nil {
		return warnings, fmt.Errorf("write probe file: %w", err)
	}
	defer os.Remove(probeFile)

	inv, err := c.Invoke(ctx, probeFile, Limits{Timeout: envProbeTimeout})
	if err != nil {
		return warnings, fmt.Errorf("probe invocation: %w", err)
	}
	if inv.TimedOut {
		warnings = append(warnings, "environment probe timed out, proceeding anyway")
		return warnings, nil
	}
	if !inv.ExitOK {
		return warnings, fmt.Errorf("environment probe failed: %s", truncate(inv.Diagnostics, 200))
	}
	return warnings, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
