package scheduler

import (
	"sync"
	"time"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

// Stats holds the run counters. The scheduler's collection loop is the
// only writer; the mutex exists so progress reporting can snapshot
// concurrently.
type Stats struct {
	mu sync.Mutex

	totalTasks        int
	processedTasks    int
	successfulTasks   int
	failedTasks       int
	totalMemoryMB     float64
	totalVerification float64
	start             time.Time
}

func NewStats(totalTasks int) *Stats {
	return &Stats{totalTasks: totalTasks, start: time.Now()}
}

// Update folds one completed result into the counters.
func (s *Stats) Update(res types.VerificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedTasks++
	if res.Status == types.StatusSuccess {
		s.successfulTasks++
		s.totalVerification += res.VerificationTime
	} else {
		s.failedTasks++
	}
	s.totalMemoryMB += res.MemoryUsedMB
}

// AddCachedSuccesses accounts for successes resolved from the cache
// without occupying a worker slot.
func (s *Stats) AddCachedSuccesses(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successfulTasks += n
}

// Summary snapshots the counters.
func (s *Stats) Summary() types.StatsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.start).Seconds()
	return types.StatsSummary{
		TotalTasks:       s.totalTasks,
		ProcessedTasks:   s.processedTasks,
		SuccessfulTasks:  s.successfulTasks,
		FailedTasks:      s.failedTasks,
		SuccessRate:      float64(s.successfulTasks) / maxF(1, float64(s.processedTasks)),
		AvgMemoryMB:      s.totalMemoryMB / maxF(1, float64(s.processedTasks)),
		AvgTimePerTask:   s.totalVerification / maxF(1, float64(s.successfulTasks)),
		TotalTimeSeconds: elapsed,
		TasksPerSecond:   float64(s.processedTasks) / maxF(1, elapsed),
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
