package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/normalize"
)

// candidateRecord mirrors the input line shape accepted by the loader.
type candidateRecord struct {
	TaskID       string   `json:"task_id"`
	OriginalDecl string   `json:"original_decl"`
	Solutions    []string `json:"solutions"`
	Response     string   `json:"response"`
	Solution     string   `json:"solution"`
	Completion   string   `json:"completion"`
}

func (r candidateRecord) candidates() []string {
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

type validationSummary struct {
	File              string   `json:"file"`
	Lines             int      `json:"lines"`
	MalformedLines    int      `json:"malformed_lines"`
	Candidates        int      `json:"candidates"`
	WellFormed        int      `json:"well_formed"`
	Malformed         int      `json:"malformed"`
	MalformedExamples []string `json:"malformed_examples,omitempty"`
}

const maxMalformedExamples = 10

func newValidateCmd(global *globalFlags) *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a candidate file's shape without invoking the checker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := validateFile(args[0])
			if err != nil {
				return err
			}
			formatted, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("format summary: %w", err)
			}
			fmt.Println(string(formatted))
			if summary.Malformed > 0 || summary.MalformedLines > 0 {
				return fmt.Errorf("%d malformed candidates, %d malformed lines", summary.Malformed, summary.MalformedLines)
			}
			fmt.Println("valid")
			return nil
		},
	})
	return cmd
}

func validateFile(path string) (validationSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return validationSummary{}, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	summary := validationSummary{File: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		summary.Lines++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec candidateRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			summary.MalformedLines++
			continue
		}
		id := rec.TaskID
		if id == "" {
			id = fmt.Sprintf("line_%d", summary.Lines)
		}
		for i, candidate := range rec.candidates() {
			summary.Candidates++
			clean := normalize.ExtractCode(normalize.Clean(candidate))
			if len(clean) < normalize.MinCodeLength {
				summary.Malformed++
				summary.addExample(fmt.Sprintf("%s[%d]: too short after cleanup", id, i))
				continue
			}
			if ok, reason := normalize.ValidateShape(clean); !ok {
				summary.Malformed++
				summary.addExample(fmt.Sprintf("%s[%d]: %s", id, i, reason))
				continue
			}
			summary.WellFormed++
		}
	}
	if err := scanner.Err(); err != nil {
		return validationSummary{}, fmt.Errorf("read input file: %w", err)
	}
	return summary, nil
}

func (s *validationSummary) addExample(example string) {
	if len(s.MalformedExamples) < maxMalformedExamples {
		s.MalformedExamples = append(s.MalformedExamples, example)
	}
}
