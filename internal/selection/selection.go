// Package selection turns the multiset of per-task results into one
// canonical verified proof per theorem. The ordering is total and
// deterministic so repeated runs over the same results select identically.
package selection

import (
	"sort"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

var criteria = []string{"length", "verification_time", "warnings"}

type Options struct {
	// AllowSkeletons makes placeholder-containing proofs eligible when a
	// theorem has no complete proof at all.
	AllowSkeletons bool
}

// Select picks the canonical result for every theorem that has at least
// one eligible candidate. Theorems without one are silently dropped.
func Select(results []types.VerificationResult, opts Options) []types.SelectedResult {
	grouped := groupByTheorem(results)

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var selected []types.SelectedResult
	for _, id := range ids {
		if best, ok := selectOne(grouped[id], opts); ok {
			selected = append(selected, best)
		}
	}
	return selected
}

// groupByTheorem keeps only SUCCESS results, keyed by theorem identifier.
func groupByTheorem(results []types.VerificationResult) map[string][]types.VerificationResult {
	grouped := make(map[string][]types.VerificationResult)
	for _, res := range results {
		if res.Status != types.StatusSuccess {
			continue
		}
		grouped[res.TaskID] = append(grouped[res.TaskID], res)
	}
	return grouped
}

func selectOne(group []types.VerificationResult, opts Options) (types.SelectedResult, bool) {
	var complete, skeleton []types.VerificationResult
	for _, res := range group {
		if res.IsCompleteProof {
			complete = append(complete, res)
		} else {
			skeleton = append(skeleton, res)
		}
	}

	candidates := complete
	if len(candidates) == 0 && opts.AllowSkeletons {
		candidates = skeleton
	}
	if len(candidates) == 0 {
		return types.SelectedResult{}, false
	}

	unique := deduplicate(candidates)
	sort.SliceStable(unique, func(i, j int) bool { return less(unique[i], unique[j]) })

	return types.SelectedResult{
		VerificationResult: unique[0],
		SelectionMetrics: types.SelectionMetrics{
			TotalCandidates:   len(unique),
			Rank:              1,
			SelectionCriteria: criteria,
		},
	}, true
}

// deduplicate collapses candidates sharing a normalized hash, keeping the
// shorter one, tie-broken by faster verification.
func deduplicate(candidates []types.VerificationResult) []types.VerificationResult {
	byHash := make(map[string]types.VerificationResult)
	var order []string
	for _, candidate := range candidates {
		existing, seen := byHash[candidate.NormalizedHash]
		if !seen {
			byHash[candidate.NormalizedHash] = candidate
			order = append(order, candidate.NormalizedHash)
			continue
		}
		if candidate.Length < existing.Length ||
			(candidate.Length == existing.Length && candidate.VerificationTime < existing.VerificationTime) {
			byHash[candidate.NormalizedHash] = candidate
		}
	}
	unique := make([]types.VerificationResult, 0, len(byHash))
	for _, hash := range order {
		unique = append(unique, byHash[hash])
	}
	return unique
}

// less is the total candidate order: shortest, then fastest, then fewest
// warnings, with the normalized hash as a final stable key.
func less(a, b types.VerificationResult) bool {
	if a.Length != b.Length {
		return a.Length < b.Length
	}
	if a.VerificationTime != b.VerificationTime {
		return a.VerificationTime < b.VerificationTime
	}
	if len(a.Warnings) != len(b.Warnings) {
		return len(a.Warnings) < len(b.Warnings)
	}
	return a.NormalizedHash < b.NormalizedHash
}
