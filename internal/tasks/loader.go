// Package tasks reads candidate records and produces the verification
// queue: multi-candidate entries are expanded into individual tasks,
// duplicates and already-processed theorems are skipped, and cached
// successes bypass the pool entirely.
package tasks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/cache"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/normalize"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

// record is one input line. Generators disagree about the field carrying
// candidate texts, so every known spelling is accepted.
type record struct {
	TaskID       string   `json:"task_id"`
	OriginalDecl string   `json:"original_decl"`
	Solutions    []string `json:"solutions"`
	Response     string   `json:"response"`
	Solution     string   `json:"solution"`
	Completion   string   `json:"completion"`
}

func (r record) candidates() []string {
	if len(r.Solutions) > 0 {
		return r.Solutions
	}
	for _, single := range []string{r.Response, r.Solution, r.Completion} {
		if single != "" {
			return []string{single}
		}
	}
	return nil
}

// Cache is the subset of the cache store the loader needs.
type Cache interface {
	Get(key string) (types.VerificationResult, bool)
}

type Options struct {
	Path           string
	AllowSorry     bool
	TimeoutSeconds float64

	// Incremental skips records whose task id already exists in prior
	// output.
	Incremental bool
	Existing    map[string]struct{}

	// Cache, when non-nil, resolves previously verified candidates up
	// front. Only cached successes skip the queue; stale or failed
	// entries are re-verified.
	Cache Cache
}

type Result struct {
	Tasks           []types.Task
	CachedSuccesses []types.VerificationResult
	Lines           int
	SkippedLines    int
	DuplicateTasks  int
}

// Load builds the task queue. Inability to read the input file is the one
// fatal condition; malformed lines are counted and skipped.
func Load(opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	res := &Result{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		res.Lines++
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			res.SkippedLines++
			continue
		}
		if rec.TaskID == "" {
			rec.TaskID = fmt.Sprintf("line_%d", res.Lines)
		}
		if opts.Incremental {
			if _, done := opts.Existing[rec.TaskID]; done {
				res.DuplicateTasks++
				continue
			}
		}

		decl := strings.TrimSpace(rec.OriginalDecl)
		seen := make(map[string]struct{})
		for _, raw := range rec.candidates() {
			candidate := strings.TrimSpace(raw)
			if len(candidate) < normalize.MinCodeLength {
				continue
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}

			if opts.Cache != nil {
				key := cache.Key(decl, candidate)
				if cached, ok := opts.Cache.Get(key); ok && cached.Status == types.StatusSuccess {
					res.CachedSuccesses = append(res.CachedSuccesses, cached)
					continue
				}
			}

			res.Tasks = append(res.Tasks, types.Task{
				TaskID:              rec.TaskID,
				OriginalDeclaration: decl,
				CandidateText:       candidate,
				AllowPartialProof:   opts.AllowSorry,
				TimeoutSeconds:      opts.TimeoutSeconds,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}

	logger.Info("loaded tasks",
		"tasks", len(res.Tasks),
		"lines", res.Lines,
		"skipped_lines", res.SkippedLines,
		"duplicate_tasks", res.DuplicateTasks,
		"cache_hits", len(res.CachedSuccesses))
	return res, nil
}

// LoadExistingIDs reads the task ids present in a prior output file, for
// incremental runs. A missing file is fine; a malformed one is skipped
// line by line.
func LoadExistingIDs(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	defer f.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.TaskID == "" {
			continue
		}
		ids[rec.TaskID] = struct{}{}
	}
	return ids, scanner.Err()
}
