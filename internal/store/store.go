// Package store persists the final dataset with safe incremental merging,
// plus the statistics summary and error-analysis files. Only a dataset
// write failure is fatal; the auxiliary files are best effort.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/fsutil"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

// StatsPath derives the statistics file path from the dataset path.
func StatsPath(outputFile string) string {
	return strings.TrimSuffix(outputFile, ".jsonl") + "_stats.json"
}

// ErrorsPath derives the error-analysis file path from the dataset path.
func ErrorsPath(outputFile string) string {
	return strings.TrimSuffix(outputFile, ".jsonl") + "_errors.json"
}

// LoadExisting reads a prior dataset keyed by theorem identifier. A
// missing file yields an empty map; malformed lines are skipped.
func LoadExisting(path string) (map[string]types.SelectedResult, error) {
	existing := make(map[string]types.SelectedResult)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return existing, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec types.SelectedResult
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.TaskID == "" {
			continue
		}
		existing[rec.TaskID] = rec
	}
	return existing, scanner.Err()
}

// WriteDataset merges selected over existing (new wins on conflict) and
// writes one record per theorem, atomically and in task-id order. It
// returns the merged dataset. Failure here is fatal for the run.
func WriteDataset(outputFile string, selected []types.SelectedResult, existing map[string]types.SelectedResult) ([]types.SelectedResult, error) {
	merged := make(map[string]types.SelectedResult, len(existing)+len(selected))
	for id, rec := range existing {
		merged[id] = rec
	}
	for _, rec := range selected {
		merged[rec.TaskID] = rec
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ordered := make([]types.SelectedResult, 0, len(merged))
	var buf bytes.Buffer
	for _, id := range ids {
		rec := merged[id]
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode result %q: %w", id, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
		ordered = append(ordered, rec)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := fsutil.WriteFileAtomic(outputFile, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	return ordered, nil
}

// BuildReport assembles the statistics summary for what was just written.
func BuildReport(inputFile, outputFile string, dataset []types.SelectedResult, perf types.StatsSummary, system types.SystemInfo, configEcho map[string]any) types.RunReport {
	completeCount := 0
	statusCounts := make(map[types.Status]int)
	lengths := make([]int, 0, len(dataset))
	for _, rec := range dataset {
		if rec.IsCompleteProof {
			completeCount++
		}
		statusCounts[rec.Status]++
		lengths = append(lengths, rec.Length)
	}

	return types.RunReport{
		Timestamp:          time.Now(),
		InputFile:          inputFile,
		OutputFile:         outputFile,
		TotalProblems:      perf.TotalTasks,
		SolutionsKept:      len(dataset),
		CompleteProofs:     completeCount,
		SkeletonProofs:     len(dataset) - completeCount,
		StatusDistribution: statusCounts,
		LengthStatistics:   lengthStats(lengths),
		Performance:        perf,
		System:             system,
		Config:             configEcho,
	}
}

func lengthStats(lengths []int) types.LengthStatistics {
	if len(lengths) == 0 {
		return types.LengthStatistics{}
	}
	sorted := append([]int(nil), lengths...)
	sort.Ints(sorted)
	sum := 0
	for _, l := range sorted {
		sum += l
	}
	return types.LengthStatistics{
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Average: float64(sum) / float64(len(sorted)),
		Median:  sorted[len(sorted)/2],
	}
}

// WriteReport persists the statistics file. Failures are logged, never
// fatal: a completed batch must not be lost over a stats file.
func WriteReport(outputFile string, report types.RunReport, logger *slog.Logger) {
	writeAux(StatsPath(outputFile), report, "statistics", logger)
}

// BuildErrorAnalysis tallies failure statuses across all raw results.
func BuildErrorAnalysis(results []types.VerificationResult) types.ErrorAnalysis {
	counts := make(map[types.Status]int)
	for _, res := range results {
		if res.Status != types.StatusSuccess {
			counts[res.Status]++
		}
	}
	return types.ErrorAnalysis{ErrorDistribution: counts, Timestamp: time.Now()}
}

// WriteErrorAnalysis persists the failure histogram; best effort.
func WriteErrorAnalysis(outputFile string, analysis types.ErrorAnalysis, logger *slog.Logger) {
	writeAux(ErrorsPath(outputFile), analysis, "error analysis", logger)
}

func writeAux(path string, payload any, what string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Warn("encode "+what+" failed", "error", err)
		return
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		logger.Warn("write "+what+" failed", "path", path, "error", err)
	}
}
