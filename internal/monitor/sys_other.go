//go:build !linux

package monitor

// Non-Linux hosts get zero readings; CheckSystemLimits treats zero as
// "unknown" and passes.

func availableMemoryBytes() (uint64, error) { return 0, nil }

func totalMemoryBytes() (uint64, error) { return 0, nil }

func freeDiskBytes(dir string) (uint64, error) { return 0, nil }

func residentMemoryBytes() (uint64, error) { return 0, nil }
