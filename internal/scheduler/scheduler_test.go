package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/logging"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

type stubWorker struct {
	mu          sync.Mutex
	inFlight    int
	maxObserved int
	delay       time.Duration
	verify      func(task types.Task) types.VerificationResult
}

func (w *stubWorker) Verify(ctx context.Context, task types.Task) types.VerificationResult {
	w.mu.Lock()
	w.inFlight++
	if w.inFlight > w.maxObserved {
		w.maxObserved = w.inFlight
	}
	w.mu.Unlock()
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.mu.Lock()
	w.inFlight--
	w.mu.Unlock()
	if w.verify != nil {
		return w.verify(task)
	}
	return types.VerificationResult{TaskID: task.TaskID, Status: types.StatusSuccess, NormalizedHash: "h-" + task.TaskID, VerificationTime: 0.01}
}

type recordingCache struct {
	mu      sync.Mutex
	puts    map[string]types.VerificationResult
	flushes int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{puts: make(map[string]types.VerificationResult)}
}

func (c *recordingCache) Put(key string, result types.VerificationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts[key] = result
	return nil
}

func (c *recordingCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

func makeQueue(n int) []types.Task {
	queue := make([]types.Task, n)
	for i := range queue {
		queue[i] = types.Task{
			TaskID:              fmt.Sprintf("t%d", i),
			OriginalDeclaration: fmt.Sprintf("theorem t%d : 1 = 1", i),
			CandidateText:       "by rfl",
		}
	}
	return queue
}

func TestRunProcessesAllTasks(t *testing.T) {
	t.Parallel()

	queue := makeQueue(20)
	stats := NewStats(len(queue))
	results := Run(context.Background(), &stubWorker{}, queue, stats, Options{
		Workers: 4,
		Logger:  logging.Discard(),
	})
	require.Len(t, results, 20)

	summary := stats.Summary()
	require.Equal(t, 20, summary.ProcessedTasks)
	require.Equal(t, 20, summary.SuccessfulTasks)
	require.Equal(t, 0, summary.FailedTasks)
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	w := &stubWorker{delay: 20 * time.Millisecond}
	queue := makeQueue(12)
	Run(context.Background(), w, queue, NewStats(len(queue)), Options{
		Workers: 3,
		Logger:  logging.Discard(),
	})
	require.LessOrEqual(t, w.maxObserved, 3)
	require.Greater(t, w.maxObserved, 1)
}

func TestRunWritesSuccessesToCache(t *testing.T) {
	t.Parallel()

	rc := newRecordingCache()
	w := &stubWorker{verify: func(task types.Task) types.VerificationResult {
		status := types.StatusSuccess
		hash := "h-" + task.TaskID
		if task.TaskID == "t0" {
			status = types.StatusCompileError
		}
		return types.VerificationResult{
			TaskID:              task.TaskID,
			OriginalDeclaration: task.OriginalDeclaration,
			ProofOnly:           "by rfl",
			NormalizedHash:      hash,
			Status:              status,
		}
	}}
	queue := makeQueue(5)
	Run(context.Background(), w, queue, NewStats(len(queue)), Options{
		Workers: 2,
		Cache:   rc,
		Logger:  logging.Discard(),
	})
	// Only the four successes are cached, and the cache was flushed.
	require.Len(t, rc.puts, 4)
	require.Equal(t, 1, rc.flushes)
}

func TestRunInterruptKeepsCollectedWork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var processed atomic.Int32
	w := &stubWorker{
		delay: 10 * time.Millisecond,
		verify: func(task types.Task) types.VerificationResult {
			if processed.Add(1) == 5 {
				cancel()
			}
			return types.VerificationResult{TaskID: task.TaskID, Status: types.StatusSuccess, NormalizedHash: "h"}
		},
	}
	rc := newRecordingCache()
	queue := makeQueue(100)
	stats := NewStats(len(queue))
	results := Run(ctx, w, queue, stats, Options{
		Workers: 2,
		Cache:   rc,
		Logger:  logging.Discard(),
	})

	// Everything that finished was collected, nothing more was started
	// after the interrupt drained the submission loop.
	require.GreaterOrEqual(t, len(results), 5)
	require.Less(t, len(results), 100)
	require.Equal(t, len(results), stats.Summary().ProcessedTasks)
	require.Equal(t, 1, rc.flushes)
}

func TestStatsSummaryRates(t *testing.T) {
	t.Parallel()

	stats := NewStats(4)
	stats.Update(types.VerificationResult{Status: types.StatusSuccess, VerificationTime: 2, MemoryUsedMB: 100})
	stats.Update(types.VerificationResult{Status: types.StatusSuccess, VerificationTime: 4, MemoryUsedMB: 300})
	stats.Update(types.VerificationResult{Status: types.StatusCompileError})

	s := stats.Summary()
	require.Equal(t, 4, s.TotalTasks)
	require.Equal(t, 3, s.ProcessedTasks)
	require.Equal(t, 2, s.SuccessfulTasks)
	require.Equal(t, 1, s.FailedTasks)
	require.InDelta(t, 2.0/3.0, s.SuccessRate, 1e-9)
	require.InDelta(t, 400.0/3.0, s.AvgMemoryMB, 1e-9)
	require.InDelta(t, 3.0, s.AvgTimePerTask, 1e-9)
}

func TestStatsAddCachedSuccesses(t *testing.T) {
	t.Parallel()

	stats := NewStats(10)
	stats.AddCachedSuccesses(3)
	require.Equal(t, 3, stats.Summary().SuccessfulTasks)
}
