//go:build !linux

package checker

import "os/exec"

// Hard resource limits need prlimit; elsewhere the wall-clock timeout is
// the only enforcement.

func setProcessGroup(cmd *exec.Cmd) {}

func applyResourceLimits(cmd *exec.Cmd, limits Limits) {}

func maxRSSMB(cmd *exec.Cmd) float64 { return 0 }
