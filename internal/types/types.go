package types

import "time"

// Status is the terminal outcome of verifying one candidate proof.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusCompileError  Status = "compile_error"
	StatusTimeout       Status = "timeout"
	StatusMemoryLimit   Status = "memory_limit"
	StatusInvalidFormat Status = "invalid_format"
	StatusContainsSorry Status = "contains_sorry"
	StatusSystemError   Status = "system_error"
)

// AllStatuses lists every terminal status, for validation and histograms.
var AllStatuses = []Status{
	StatusSuccess,
	StatusCompileError,
	StatusTimeout,
	StatusMemoryLimit,
	StatusInvalidFormat,
	StatusContainsSorry,
	StatusSystemError,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Task is one unit of verification work. Immutable once enqueued.
type Task struct {
	TaskID              string  `json:"task_id"`
	OriginalDeclaration string  `json:"original_decl"`
	CandidateText       string  `json:"candidate_text"`
	AllowPartialProof   bool    `json:"allow_partial_proof"`
	TimeoutSeconds      float64 `json:"timeout_seconds"`
}

// VerificationResult is the terminal record produced for one Task.
type VerificationResult struct {
	TaskID              string  `json:"task_id"`
	OriginalDeclaration string  `json:"original_decl"`
	Solution            string  `json:"solution"`
	ProofOnly           string  `json:"proof_only"`
	NormalizedHash      string  `json:"normalized_hash"`
	Length              int     `json:"length"`
	IsCompleteProof     bool    `json:"is_complete_proof"`
	VerificationTime    float64 `json:"verification_time"`
	Status              Status  `json:"status"`
	LeanVersion         string  `json:"lean_version,omitempty"`
	MemoryUsedMB        float64 `json:"memory_used_mb,omitempty"`
	ErrorMessage        string  `json:"error_message,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// SelectionMetrics describes how the canonical result for a theorem was chosen.
type SelectionMetrics struct {
	TotalCandidates   int      `json:"total_candidates"`
	Rank              int      `json:"rank"`
	SelectionCriteria []string `json:"selection_criteria"`
}

// SelectedResult is the one canonical verified proof kept per theorem.
type SelectedResult struct {
	VerificationResult
	SelectionMetrics SelectionMetrics `json:"selection_metrics"`
}

type ResourceUsage struct {
	MemoryMB       float64 `json:"memory_mb"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// SystemInfo captures the host environment for the statistics file.
type SystemInfo struct {
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	CPUCount      int     `json:"cpu_count"`
	TotalMemoryGB float64 `json:"total_memory_gb"`
	GoVersion     string  `json:"go_version"`
	LeanVersion   string  `json:"lean_version,omitempty"`
}

// StatsSummary is a point-in-time snapshot of the scheduler's counters.
type StatsSummary struct {
	TotalTasks       int     `json:"total_tasks"`
	ProcessedTasks   int     `json:"processed_tasks"`
	SuccessfulTasks  int     `json:"successful_tasks"`
	FailedTasks      int     `json:"failed_tasks"`
	SuccessRate      float64 `json:"success_rate"`
	AvgMemoryMB      float64 `json:"avg_memory_mb"`
	AvgTimePerTask   float64 `json:"avg_time_per_task"`
	TotalTimeSeconds float64 `json:"total_time_seconds"`
	TasksPerSecond   float64 `json:"tasks_per_second"`
}

// LengthStatistics summarizes proof sizes in the final dataset.
type LengthStatistics struct {
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	Average float64 `json:"average"`
	Median  int     `json:"median"`
}

// RunReport is the statistics summary written alongside the dataset.
type RunReport struct {
	Timestamp          time.Time        `json:"timestamp"`
	InputFile          string           `json:"input_file"`
	OutputFile         string           `json:"output_file"`
	TotalProblems      int              `json:"total_problems_processed"`
	SolutionsKept      int              `json:"total_solutions_kept"`
	CompleteProofs     int              `json:"complete_proofs"`
	SkeletonProofs     int              `json:"skeleton_proofs"`
	StatusDistribution map[Status]int   `json:"status_distribution"`
	LengthStatistics   LengthStatistics `json:"length_statistics"`
	Performance        StatsSummary     `json:"performance"`
	System             SystemInfo       `json:"system_info"`
	Config             map[string]any   `json:"config"`
}

// ErrorAnalysis is the failure histogram written at the end of a run.
type ErrorAnalysis struct {
	ErrorDistribution map[Status]int `json:"error_distribution"`
	Timestamp         time.Time      `json:"timestamp"`
}
