// Package monitor samples host resources before and during a run. A failed
// limit check is a warning to the caller, never a hard stop.
package monitor

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

const minFreeDiskBytes = 1 << 30 // 1 GiB at the scratch directory

type Monitor struct {
	start time.Time
}

func New() *Monitor {
	return &Monitor{start: time.Now()}
}

// CheckSystemLimits compares available memory and free disk at scratchDir
// against the configured minimums. The boolean is advisory: the run
// proceeds either way, logging the reason on failure.
func (m *Monitor) CheckSystemLimits(scratchDir string, maxTotalMemoryMB int) (bool, string) {
	availBytes, err := availableMemoryBytes()
	if err != nil {
		return false, fmt.Sprintf("resource check failed: %v", err)
	}
	if availBytes > 0 && availBytes < uint64(maxTotalMemoryMB)*1024*1024 {
		return false, fmt.Sprintf("insufficient system memory: %.1fMB available", float64(availBytes)/1024/1024)
	}

	freeBytes, err := freeDiskBytes(scratchDir)
	if err != nil {
		return false, fmt.Sprintf("resource check failed: %v", err)
	}
	if freeBytes > 0 && freeBytes < minFreeDiskBytes {
		return false, fmt.Sprintf("insufficient disk space: %.1fMB free", float64(freeBytes)/1024/1024)
	}
	return true, "OK"
}

// CurrentUsage reports this process's resident memory and elapsed time.
func (m *Monitor) CurrentUsage() types.ResourceUsage {
	rss, _ := residentMemoryBytes()
	return types.ResourceUsage{
		MemoryMB:       float64(rss) / 1024 / 1024,
		ElapsedSeconds: time.Since(m.start).Seconds(),
	}
}

// SystemInfo describes the host for the statistics file. leanVersion comes
// from the checker and may be empty.
func SystemInfo(leanVersion string) types.SystemInfo {
	total, _ := totalMemoryBytes()
	return types.SystemInfo{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUCount:      runtime.NumCPU(),
		TotalMemoryGB: float64(total) / 1024 / 1024 / 1024,
		GoVersion:     runtime.Version(),
		LeanVersion:   leanVersion,
	}
}
