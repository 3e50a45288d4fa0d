// Package scheduler drives the verification workers over the task queue
// with bounded concurrency. Results are consumed in completion order; the
// collection loop is the single writer for statistics and the cache, and
// an interrupt never discards work already collected.
package scheduler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/cache"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

// Worker verifies one task. Implementations must capture every failure
// into the result, never returning control-flow errors.
type Worker interface {
	Verify(ctx context.Context, task types.Task) types.VerificationResult
}

// ResultCache is the subset of the cache store the scheduler writes to.
type ResultCache interface {
	Put(key string, result types.VerificationResult) error
	Flush() error
}

type Options struct {
	Workers int
	Cache   ResultCache
	Logger  *slog.Logger

	// ProgressEvery logs a progress line after this many completions.
	// Zero disables progress logging.
	ProgressEvery int
}

// Run dispatches every task and collects results until the queue drains or
// ctx is canceled. On cancellation no new tasks are submitted, in-flight
// tasks run to their own termination, and everything collected so far is
// returned along with the cache flushed.
func Run(ctx context.Context, w Worker, queue []types.Task, stats *Stats, opts Options) []types.VerificationResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make(chan types.VerificationResult)
	pool := new(errgroup.Group)
	pool.SetLimit(workers)

	go func() {
		defer close(results)
		for _, task := range queue {
			if ctx.Err() != nil {
				logger.Warn("interrupt received, no new tasks will be submitted")
				break
			}
			task := task
			pool.Go(func() error {
				results <- w.Verify(ctx, task)
				return nil
			})
		}
		pool.Wait()
	}()

	collected := make([]types.VerificationResult, 0, len(queue))
	for res := range results {
		stats.Update(res)
		if res.Status == types.StatusSuccess && opts.Cache != nil && res.NormalizedHash != "" {
			key := cache.Key(res.OriginalDeclaration, res.ProofOnly)
			if err := opts.Cache.Put(key, res); err != nil {
				logger.Warn("cache write failed", "task_id", res.TaskID, "error", err)
			}
		}
		collected = append(collected, res)
		if opts.ProgressEvery > 0 && len(collected)%opts.ProgressEvery == 0 {
			summary := stats.Summary()
			logger.Info("verification progress",
				"processed", summary.ProcessedTasks,
				"total", summary.TotalTasks,
				"succeeded", summary.SuccessfulTasks,
				"success_rate", summary.SuccessRate)
		}
	}

	if opts.Cache != nil {
		if err := opts.Cache.Flush(); err != nil {
			logger.Warn("cache flush failed", "error", err)
		}
	}
	return collected
}
