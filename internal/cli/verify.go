package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/cache"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/checker"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/config"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/logging"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/monitor"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/scheduler"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/scratch"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/selection"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/store"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/tasks"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/worker"
)

const progressEvery = 10

func newVerifyCmd(global *globalFlags) *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "verify",
		Short: "Verify candidate proofs and write the selected dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, global)
			if err != nil {
				return err
			}
			logger, closeLog, err := setupLogging(global)
			if err != nil {
				return err
			}
			defer closeLog()
			return runVerify(cmd.Context(), cfg, logger)
		},
	})
	defaults := config.Default()
	cmd.Flags().String("input", defaults.InputFile, "input JSONL file of candidate proofs")
	cmd.Flags().String("output", defaults.OutputFile, "output JSONL dataset file")
	cmd.Flags().Int("workers", defaults.Workers, "number of concurrent checker processes")
	cmd.Flags().Float64("timeout", defaults.TimeoutSeconds, "per-proof timeout in seconds")
	cmd.Flags().Int("max-memory-per-worker-mb", defaults.MaxMemoryPerWorkerMB, "address space limit per checker process")
	cmd.Flags().Int("max-total-memory-mb", defaults.MaxTotalMemoryMB, "advisory total memory budget")
	cmd.Flags().Bool("allow-sorry", defaults.AllowSorry, "accept proof skeletons when no complete proof exists")
	cmd.Flags().Bool("cache", defaults.CacheEnabled, "use the persistent verification cache")
	cmd.Flags().String("cache-dir", defaults.CacheDir, "verification cache directory")
	cmd.Flags().Bool("incremental", defaults.Incremental, "skip theorems already present in the output file")
	cmd.Flags().String("checker-command", defaults.CheckerCommand, "command used to check a proof file")
	cmd.Flags().String("checker-dir", defaults.CheckerDir, "directory the checker runs in")
	cmd.Flags().String("scratch-dir", defaults.ScratchDir, "scratch directory for proof files")
	cmd.Flags().Bool("skip-env-check", defaults.SkipEnvCheck, "skip the checker environment check")
	return cmd
}

// resolveConfig merges the three configuration layers: defaults, then the
// config file, then any flag the user set explicitly.
func resolveConfig(cmd *cobra.Command, global *globalFlags) (config.Config, error) {
	cfg, err := config.Load(global.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	overrides := map[string]func(){
		"input":                    func() { cfg.InputFile, _ = flags.GetString("input") },
		"output":                   func() { cfg.OutputFile, _ = flags.GetString("output") },
		"workers":                  func() { cfg.Workers, _ = flags.GetInt("workers") },
		"timeout":                  func() { cfg.TimeoutSeconds, _ = flags.GetFloat64("timeout") },
		"max-memory-per-worker-mb": func() { cfg.MaxMemoryPerWorkerMB, _ = flags.GetInt("max-memory-per-worker-mb") },
		"max-total-memory-mb":      func() { cfg.MaxTotalMemoryMB, _ = flags.GetInt("max-total-memory-mb") },
		"allow-sorry":              func() { cfg.AllowSorry, _ = flags.GetBool("allow-sorry") },
		"cache":                    func() { cfg.CacheEnabled, _ = flags.GetBool("cache") },
		"cache-dir":                func() { cfg.CacheDir, _ = flags.GetString("cache-dir") },
		"incremental":              func() { cfg.Incremental, _ = flags.GetBool("incremental") },
		"checker-command":          func() { cfg.CheckerCommand, _ = flags.GetString("checker-command") },
		"checker-dir":              func() { cfg.CheckerDir, _ = flags.GetString("checker-dir") },
		"scratch-dir":              func() { cfg.ScratchDir, _ = flags.GetString("scratch-dir") },
		"skip-env-check":           func() { cfg.SkipEnvCheck, _ = flags.GetBool("skip-env-check") },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setupLogging(global *globalFlags) (*slog.Logger, func() error, error) {
	level, err := logging.ParseLevel(global.logLevel)
	if err != nil {
		return nil, nil, err
	}
	return logging.Setup(logging.Config{Level: level, LogFile: global.logFile})
}

func runVerify(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	scratchDir, err := scratch.Resolve(cfg.ScratchDir)
	if err != nil {
		return err
	}
	logger.Info("scratch directory resolved", "dir", scratchDir)

	chk, err := checker.New(cfg.CheckerCommand, cfg.CheckerDir)
	if err != nil {
		return err
	}
	if cfg.SkipEnvCheck {
		logger.Warn("environment check skipped")
	} else {
		warnings, err := chk.CheckEnv(ctx, scratchDir)
		for _, w := range warnings {
			logger.Warn("environment check", "warning", w)
		}
		if err != nil {
			return fmt.Errorf("environment check failed: %w", err)
		}
		logger.Info("environment check passed")
	}
	version, err := chk.Version(ctx)
	if err != nil {
		logger.Warn("could not determine checker version", "error", err)
		version = "unknown"
	} else {
		logger.Info("checker version", "version", version)
	}

	mon := monitor.New()
	if ok, msg := mon.CheckSystemLimits(scratchDir, cfg.MaxTotalMemoryMB); !ok {
		logger.Warn("system limits", "warning", msg)
	}

	var cstore *cache.Store
	if cfg.CacheEnabled {
		cstore, err = cache.Open(cache.Options{
			Dir:        cfg.CacheDir,
			MaxEntries: cfg.CacheMaxEntries,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer cstore.Close()
	}

	var existingIDs map[string]struct{}
	if cfg.Incremental {
		existingIDs, err = tasks.LoadExistingIDs(cfg.OutputFile)
		if err != nil {
			return err
		}
		if len(existingIDs) > 0 {
			logger.Info("incremental mode", "existing_theorems", len(existingIDs))
		}
	}

	loadOpts := tasks.Options{
		Path:           cfg.InputFile,
		AllowSorry:     cfg.AllowSorry,
		TimeoutSeconds: cfg.TimeoutSeconds,
		Incremental:    cfg.Incremental,
		Existing:       existingIDs,
	}
	if cstore != nil {
		loadOpts.Cache = cstore
	}
	loaded, err := tasks.Load(loadOpts, logger)
	if err != nil {
		return err
	}
	logger.Info("task queue built",
		"tasks", len(loaded.Tasks),
		"cached_successes", len(loaded.CachedSuccesses),
		"lines", loaded.Lines,
		"skipped_lines", loaded.SkippedLines,
		"duplicates", loaded.DuplicateTasks)

	stats := scheduler.NewStats(len(loaded.Tasks) + len(loaded.CachedSuccesses))
	stats.AddCachedSuccesses(len(loaded.CachedSuccesses))

	verifier := &worker.Verifier{
		Invoker:     chk,
		ScratchDir:  scratchDir,
		MemoryMB:    cfg.MaxMemoryPerWorkerMB,
		LeanVersion: version,
		Monitor:     mon,
	}
	schedOpts := scheduler.Options{
		Workers:       cfg.Workers,
		Logger:        logger,
		ProgressEvery: progressEvery,
	}
	if cstore != nil {
		schedOpts.Cache = cstore
	}
	results := scheduler.Run(ctx, verifier, loaded.Tasks, stats, schedOpts)
	if ctx.Err() != nil {
		logger.Warn("run interrupted, writing partial results", "collected", len(results))
	}
	all := append(results, loaded.CachedSuccesses...)

	selected := selection.Select(all, selection.Options{AllowSkeletons: cfg.AllowSorry})

	var existingDataset map[string]types.SelectedResult
	if cfg.Incremental {
		existingDataset, err = store.LoadExisting(cfg.OutputFile)
		if err != nil {
			return err
		}
	}
	dataset, err := store.WriteDataset(cfg.OutputFile, selected, existingDataset)
	if err != nil {
		return err
	}

	summary := stats.Summary()
	report := store.BuildReport(cfg.InputFile, cfg.OutputFile, dataset, summary, monitor.SystemInfo(version), cfg.Echo())
	store.WriteReport(cfg.OutputFile, report, logger)
	store.WriteErrorAnalysis(cfg.OutputFile, store.BuildErrorAnalysis(all), logger)

	logger.Info("run complete",
		"processed", summary.ProcessedTasks,
		"succeeded", summary.SuccessfulTasks,
		"failed", summary.FailedTasks,
		"success_rate", summary.SuccessRate,
		"tasks_per_second", summary.TasksPerSecond,
		"solutions_kept", len(dataset),
		"output", cfg.OutputFile,
		"stats", store.StatsPath(cfg.OutputFile),
		"errors", store.ErrorsPath(cfg.OutputFile))
	return nil
}
