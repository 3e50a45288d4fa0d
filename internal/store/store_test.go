package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/logging"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

func selected(taskID string, length int) types.SelectedResult {
	return types.SelectedResult{
		VerificationResult: types.VerificationResult{
			TaskID:          taskID,
			Solution:        "theorem " + taskID + " := by rfl",
			Length:          length,
			Status:          types.StatusSuccess,
			IsCompleteProof: true,
		},
		SelectionMetrics: types.SelectionMetrics{TotalCandidates: 1, Rank: 1},
	}
}

func TestWriteDatasetRoundTrip(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "gold.jsonl")
	merged, err := WriteDataset(out, []types.SelectedResult{selected("b", 10), selected("a", 20)}, nil)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	// task-id order
	require.Equal(t, "a", merged[0].TaskID)

	loaded, err := LoadExisting(out)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, 10, loaded["b"].Length)
}

func TestWriteDatasetIncrementalMergeNewWins(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "gold.jsonl")
	_, err := WriteDataset(out, []types.SelectedResult{selected("a", 20), selected("b", 10)}, nil)
	require.NoError(t, err)

	existing, err := LoadExisting(out)
	require.NoError(t, err)

	updated := selected("a", 5)
	merged, err := WriteDataset(out, []types.SelectedResult{updated}, existing)
	require.NoError(t, err)
	require.Len(t, merged, 2)

	loaded, err := LoadExisting(out)
	require.NoError(t, err)
	require.Equal(t, 5, loaded["a"].Length)
	require.Equal(t, 10, loaded["b"].Length)
}

func TestWriteDatasetCreatesOutputDir(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "nested", "dir", "gold.jsonl")
	_, err := WriteDataset(out, []types.SelectedResult{selected("a", 1)}, nil)
	require.NoError(t, err)
	_, err = os.Stat(out)
	require.NoError(t, err)
}

func TestLoadExistingSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gold.jsonl")
	content := `{"task_id":"a","status":"success"}` + "\ngarbage\n" + `{"no_id":true}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := LoadExisting(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	sk := selected("c", 30)
	sk.IsCompleteProof = false
	dataset := []types.SelectedResult{selected("a", 10), selected("b", 20), sk}

	report := BuildReport("in.jsonl", "out.jsonl", dataset, types.StatsSummary{TotalTasks: 5}, types.SystemInfo{}, map[string]any{"num_workers": 4})
	require.Equal(t, 3, report.SolutionsKept)
	require.Equal(t, 2, report.CompleteProofs)
	require.Equal(t, 1, report.SkeletonProofs)
	require.Equal(t, 3, report.StatusDistribution[types.StatusSuccess])
	require.Equal(t, 10, report.LengthStatistics.Min)
	require.Equal(t, 30, report.LengthStatistics.Max)
	require.Equal(t, 20.0, report.LengthStatistics.Average)
	require.Equal(t, 20, report.LengthStatistics.Median)
}

func TestWriteReportAndErrorAnalysis(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "gold.jsonl")
	WriteReport(out, types.RunReport{SolutionsKept: 1}, logging.Discard())

	statsData, err := os.ReadFile(StatsPath(out))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(statsData), "total_solutions_kept"))

	analysis := BuildErrorAnalysis([]types.VerificationResult{
		{Status: types.StatusSuccess},
		{Status: types.StatusCompileError},
		{Status: types.StatusCompileError},
		{Status: types.StatusTimeout},
	})
	require.Equal(t, 2, analysis.ErrorDistribution[types.StatusCompileError])
	require.Equal(t, 1, analysis.ErrorDistribution[types.StatusTimeout])
	require.NotContains(t, analysis.ErrorDistribution, types.StatusSuccess)

	WriteErrorAnalysis(out, analysis, logging.Discard())
	errData, err := os.ReadFile(ErrorsPath(out))
	require.NoError(t, err)

	var decoded types.ErrorAnalysis
	require.NoError(t, json.Unmarshal(errData, &decoded))
	require.Equal(t, 2, decoded.ErrorDistribution[types.StatusCompileError])
}

func TestPathDerivation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "out_stats.json", StatsPath("out.jsonl"))
	require.Equal(t, "out_errors.json", ErrorsPath("out.jsonl"))
}
