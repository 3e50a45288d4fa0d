// Package scratch manages the shared scratch directory where assembled
// proof files are written before checker invocation. The directory is
// shared across workers but collision-free: every attempt gets a unique
// file name.
package scratch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/fsutil"
)

// Resolve picks a writable scratch directory. The preferred path, when
// non-empty, is tried first; otherwise a list of conventional locations is
// probed and the first one that accepts a write wins. A relative fallback
// in the working directory is created as a last resort.
func Resolve(preferred string) (string, error) {
	var candidates []string
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".lean_verify_tmp"))
	}
	candidates = append(candidates,
		"/tmp/lean_verify",
		filepath.Join(os.TempDir(), "lean_verify"),
	)

	for _, dir := range candidates {
		if writable(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				continue
			}
			return abs, nil
		}
	}

	fallback := "lean_verify_tmp"
	if !writable(fallback) {
		return "", fmt.Errorf("no writable scratch directory found")
	}
	return filepath.Abs(fallback)
}

func writable(dir string) bool {
	if err := fsutil.EnsureDir(dir); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("test"), 0o644); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

// FileName returns a scratch file name unique to one verification attempt.
// The code-hash prefix keeps names debuggable; the pid and uuid suffix keep
// them collision-free across concurrent workers and retries.
func FileName(code string) string {
	sum := sha256.Sum256([]byte(code))
	short := hex.EncodeToString(sum[:4])
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("verify_%s_%d_%s.lean", short, os.Getpid(), nonce)
}

// FilePath joins dir and a fresh FileName for code, refusing paths that
// escape the scratch directory.
func FilePath(dir, code string) (string, error) {
	return fsutil.SafeJoin(dir, FileName(code))
}
