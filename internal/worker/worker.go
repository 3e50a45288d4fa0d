// Package worker turns one verification task into exactly one terminal
// VerificationResult. All failures are captured into the result; a task
// can never abort the batch.
package worker

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/checker"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/monitor"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/normalize"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/scratch"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

// forbiddenMarkers matches tokens that mean "proof admitted without
// justification".
var forbiddenMarkers = regexp.MustCompile(`(?i)(sorry|admit|axiom|undefined)`)

var warningLine = regexp.MustCompile(`(?i)warning`)

const (
	// longCodeThreshold is the assembled-unit size above which the
	// timeout is extended.
	longCodeThreshold = 1000
	extendedTimeout   = 5 * time.Minute
	maxErrorLen       = 500
)

// Invoker runs one assembled file through the external checker.
type Invoker interface {
	Invoke(ctx context.Context, file string, limits checker.Limits) (checker.Invocation, error)
}

type Verifier struct {
	Invoker     Invoker
	ScratchDir  string
	MemoryMB    int
	LeanVersion string
	Monitor     *monitor.Monitor
}

// Verify processes a single task to its terminal result. Panics anywhere in
// the pipeline are converted to a SYSTEM_ERROR result; fields populated
// before the panic (hash, assembled solution, length) are kept.
func (v *Verifier) Verify(ctx context.Context, task types.Task) (result types.VerificationResult) {
	start := time.Now()
	result = v.base(task)
	defer func() {
		result.VerificationTime = time.Since(start).Seconds()
		if r := recover(); r != nil {
			result.Status = types.StatusSystemError
			result.ErrorMessage = truncate(fmt.Sprintf("system error: %v", r))
		}
	}()
	v.verify(ctx, task, &result)
	return result
}

func (v *Verifier) base(task types.Task) types.VerificationResult {
	return types.VerificationResult{
		TaskID:              task.TaskID,
		OriginalDeclaration: task.OriginalDeclaration,
		Solution:            task.CandidateText,
		LeanVersion:         v.LeanVersion,
	}
}

// verify mutates res in place so the caller's recover handler sees every
// field set before a panic.
func (v *Verifier) verify(ctx context.Context, task types.Task, res *types.VerificationResult) {
	clean := normalize.ExtractCode(normalize.Clean(task.CandidateText))
	res.ProofOnly = clean

	if len(strings.TrimSpace(clean)) < normalize.MinCodeLength {
		res.Status = types.StatusInvalidFormat
		res.ErrorMessage = "empty or too short proof"
		return
	}
	res.Length = len(clean)

	if ok, reason := normalize.ValidateShape(clean); !ok {
		res.Status = types.StatusInvalidFormat
		res.ErrorMessage = reason
		return
	}

	if !task.AllowPartialProof && forbiddenMarkers.MatchString(clean) {
		res.NormalizedHash = normalize.HashCode(clean)
		res.Status = types.StatusContainsSorry
		res.ErrorMessage = "proof contains sorry/admit"
		return
	}

	full := assemble(task.OriginalDeclaration, clean)
	res.Length = len(full)
	if !strings.Contains(full, ":=") {
		res.Status = types.StatusInvalidFormat
		res.ErrorMessage = "invalid proof structure"
		return
	}

	res.Solution = full
	res.NormalizedHash = normalize.HashCode(full)

	path, err := scratch.FilePath(v.ScratchDir, full)
	if err != nil {
		res.Status = types.StatusSystemError
		res.ErrorMessage = truncate(fmt.Sprintf("scratch path: %v", err))
		return
	}
	if err := os.WriteFile(path, []byte(checker.Header+full), 0o644); err != nil {
		res.Status = types.StatusSystemError
		res.ErrorMessage = truncate(fmt.Sprintf("write scratch file: %v", err))
		return
	}
	// Scratch files never outlive the attempt, whatever path we exit on.
	defer os.Remove(path)

	timeout := time.Duration(task.TimeoutSeconds * float64(time.Second))
	if len(full) > longCodeThreshold {
		timeout = min(2*timeout, extendedTimeout)
	}

	inv, err := v.Invoker.Invoke(ctx, path, checker.Limits{Timeout: timeout, MemoryMB: v.MemoryMB})
	res.MemoryUsedMB = inv.MaxRSSMB
	if res.MemoryUsedMB == 0 && v.Monitor != nil {
		res.MemoryUsedMB = v.Monitor.CurrentUsage().MemoryMB
	}
	if err != nil {
		res.Status = types.StatusSystemError
		res.ErrorMessage = truncate(fmt.Sprintf("system error: %v", err))
		return
	}

	res.Warnings = extractWarnings(inv.Diagnostics)

	if inv.ExitOK {
		// Belt and suspenders: a checker can accept a file that still
		// admits goals via a marker.
		hasSorry := forbiddenMarkers.MatchString(full)
		if hasSorry && !task.AllowPartialProof {
			res.Status = types.StatusContainsSorry
			res.ErrorMessage = "proof contains sorry/admit"
			return
		}
		res.Status = types.StatusSuccess
		res.IsCompleteProof = !hasSorry
		return
	}

	msg := strings.TrimSpace(inv.Diagnostics)
	if msg == "" {
		msg = "unknown compilation error"
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "out of memory"):
		res.Status = types.StatusMemoryLimit
	case inv.TimedOut || strings.Contains(lower, "timeout") || inv.Duration >= timeout:
		res.Status = types.StatusTimeout
	default:
		res.Status = types.StatusCompileError
	}
	res.ErrorMessage = truncate(msg)
}

// assemble builds a complete compilable unit. A candidate that already
// carries a full declaration is used verbatim; a bare proof body is wrapped
// in the task's original declaration, with a tactic-block wrapper inferred
// from statement separators.
func assemble(declaration, clean string) string {
	if strings.Contains(clean, "theorem") && strings.Contains(clean, ":=") {
		return clean
	}
	body := strings.TrimSpace(clean)
	if !hasProofPrefix(body) {
		if strings.Contains(body, ";") || strings.Contains(body, "\n") {
			body = "begin\n  " + body + "\nend"
		} else {
			body = "by " + body
		}
	}
	return declaration + " := " + body
}

func hasProofPrefix(body string) bool {
	for _, prefix := range []string{"by", "begin", "exact", "apply", "refine"} {
		if strings.HasPrefix(body, prefix) {
			return true
		}
	}
	return false
}

func extractWarnings(diagnostics string) []string {
	if diagnostics == "" {
		return nil
	}
	var warnings []string
	for _, line := range strings.Split(diagnostics, "\n") {
		if warningLine.MatchString(line) {
			warnings = append(warnings, strings.TrimSpace(line))
		}
	}
	return warnings
}

func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen]
}
