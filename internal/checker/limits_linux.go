//go:build linux

package checker

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so a Ctrl-C
// delivered to the parent's group never reaches it directly.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// applyResourceLimits caps the running child's address space and CPU time.
// Failures are ignored; the wall-clock timeout still bounds a
// child the kernel refused to limit.
func applyResourceLimits(cmd *exec.Cmd, limits Limits) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if limits.MemoryMB > 0 {
		bytes := uint64(limits.MemoryMB) * 1024 * 1024
		_ = unix.Prlimit(pid, unix.RLIMIT_AS, &unix.Rlimit{Cur: bytes, Max: bytes}, nil)
	}
	if limits.Timeout > 0 {
		secs := uint64(limits.Timeout.Seconds())
		if secs > 0 {
			_ = unix.Prlimit(pid, unix.RLIMIT_CPU, &unix.Rlimit{Cur: secs, Max: secs + 10}, nil)
		}
	}
}

func maxRSSMB(cmd *exec.Cmd) float64 {
	if cmd.ProcessState == nil {
		return 0
	}
	rusage, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0
	}
	// Maxrss is in kilobytes on Linux.
	return float64(rusage.Maxrss) / 1024
}
