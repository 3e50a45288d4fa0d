// Package config holds the run configuration for the verification pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of a verification run.
// Precedence: flag over file over default.
type Config struct {
	InputFile  string `yaml:"input-file"`
	OutputFile string `yaml:"output-file"`

	Workers              int     `yaml:"workers"`
	TimeoutSeconds       float64 `yaml:"timeout-seconds"`
	MaxMemoryPerWorkerMB int     `yaml:"max-memory-per-worker-mb"`
	MaxTotalMemoryMB     int     `yaml:"max-total-memory-mb"`

	AllowSorry bool `yaml:"allow-sorry"`

	CacheEnabled    bool   `yaml:"cache-enabled"`
	CacheDir        string `yaml:"cache-dir"`
	CacheMaxEntries int    `yaml:"cache-max-entries"`

	Incremental bool `yaml:"incremental"`

	CheckerCommand string `yaml:"checker-command"`
	CheckerDir     string `yaml:"checker-dir"`
	ScratchDir     string `yaml:"scratch-dir"`
	SkipEnvCheck   bool   `yaml:"skip-env-check"`
}

// Default returns the built-in configuration.
func Default() Config {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return Config{
		InputFile:            "data/processed/solutions_shard_0.jsonl",
		OutputFile:           "data/processed/verified_gold_data.jsonl",
		Workers:              workers,
		TimeoutSeconds:       45,
		MaxMemoryPerWorkerMB: 4096,
		MaxTotalMemoryMB:     32768,
		CacheEnabled:         true,
		CacheDir:             ".verification_cache",
		CacheMaxEntries:      10000,
		Incremental:          true,
		CheckerCommand:       "lake env lean",
		CheckerDir:           "lean_gym",
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if c.InputFile == "" {
		return errors.New("input file is required")
	}
	if c.OutputFile == "" {
		return errors.New("output file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.TimeoutSeconds)
	}
	if c.MaxMemoryPerWorkerMB < 1 {
		return fmt.Errorf("per-worker memory limit must be >= 1 MB, got %d", c.MaxMemoryPerWorkerMB)
	}
	if c.CacheEnabled && c.CacheMaxEntries < 1 {
		return fmt.Errorf("cache max entries must be >= 1, got %d", c.CacheMaxEntries)
	}
	if c.CheckerCommand == "" {
		return errors.New("checker command is required")
	}
	return nil
}

// Echo returns the config fields recorded in the statistics file.
func (c Config) Echo() map[string]any {
	return map[string]any{
		"allow_sorry":        c.AllowSorry,
		"num_workers":        c.Workers,
		"timeout":            c.TimeoutSeconds,
		"max_memory_mb":      c.MaxMemoryPerWorkerMB,
		"enable_cache":       c.CacheEnabled,
		"enable_incremental": c.Incremental,
	}
}
