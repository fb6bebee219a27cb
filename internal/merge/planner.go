package merge

import (
	"fmt"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// Similarity bands are a fixed contract: an explicit service
// recommendation always wins; otherwise the combined score is banded at
// these thresholds.
const (
	compatibleThreshold = 0.6
	reviewThreshold     = 0.4
)

// ValidationError signals that a merge plan cannot be built because the
// wizard's state is missing or inconsistent (no primary name, or a
// primary name that no longer corresponds to any candidate after the
// selection changed). A correct UI disables "proceed" instead of ever
// reaching this; it guards against stale state, not user input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "merge: " + e.Reason
}

// Build derives the merge plan from the current selection. It is a pure
// function: identical inputs always produce a structurally identical
// plan, so callers may rebuild the preview on every selection change.
//
// The primary entity is the one owning the chosen primary name as a
// candidate (canonical or alias); when several entities own the same
// string, the collector's ordering makes the canonical owner win. The
// alias list is every candidate value except the canonical name,
// deduplicated in the collector's first-seen order. An empty conflicts
// slice degrades to zero counts: it means the preview analysis has not
// arrived, not that the selection is conflict-free.
func Build(selection types.MergeSelection, entities []types.Entity, candidates []types.CandidateName, conflicts []types.AttributeConflict) (types.MergePlan, error) {
	name := selection.PrimaryName
	if name == "" {
		return types.MergePlan{}, &ValidationError{Reason: "no primary name chosen"}
	}

	primaryID := int64(0)
	found := false
	for _, c := range candidates {
		if c.Value == name {
			primaryID = c.SourceEntityID
			found = true
			break
		}
	}
	if !found {
		return types.MergePlan{}, &ValidationError{
			Reason: fmt.Sprintf("primary name %q does not match any candidate in the current selection", name),
		}
	}

	absorbed := make([]int64, 0, len(selection.SelectedEntityIDs))
	for _, id := range selection.SelectedEntityIDs {
		if id != primaryID {
			absorbed = append(absorbed, id)
		}
	}

	seen := map[string]struct{}{name: {}}
	aliases := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Value]; dup {
			continue
		}
		seen[c.Value] = struct{}{}
		aliases = append(aliases, c.Value)
	}

	selected := make(map[int64]struct{}, len(selection.SelectedEntityIDs))
	for _, id := range selection.SelectedEntityIDs {
		selected[id] = struct{}{}
	}
	total := 0
	for _, e := range entities {
		if _, ok := selected[e.ID]; ok {
			total += e.MentionCount
		}
	}

	critical := false
	for _, c := range conflicts {
		if c.Severity == types.SeverityHigh {
			critical = true
			break
		}
	}

	return types.MergePlan{
		PrimaryEntityID:      primaryID,
		AbsorbedEntityIDs:    absorbed,
		CanonicalName:        name, // verbatim, punctuation and diacritics preserved
		Aliases:              aliases,
		TotalMentionCount:    total,
		ConflictCount:        len(conflicts),
		HasCriticalConflicts: critical,
	}, nil
}

// Classify bands a similarity pair for display. The service's
// recommendation label takes precedence over the numeric score; the two
// are allowed to disagree.
func Classify(pair types.SimilarityPair) types.SimilarityBand {
	switch pair.Recommendation {
	case types.RecommendMerge:
		return types.BandCompatible
	case types.RecommendReview:
		return types.BandReview
	case types.RecommendKeepSeparate:
		return types.BandDifferent
	}

	switch {
	case pair.CombinedScore >= compatibleThreshold:
		return types.BandCompatible
	case pair.CombinedScore >= reviewThreshold:
		return types.BandReview
	default:
		return types.BandDifferent
	}
}

// Summary aggregates the backend's analysis for the review step.
type Summary struct {
	AverageScore         float64
	Recommendation       types.Recommendation
	Reason               string
	ConflictCount        int
	HasCriticalConflicts bool

	// AnalysisPending reports that neither similarity pairs nor
	// conflicts have arrived yet. The review UI must render this as
	// "not yet analyzed", visually distinct from confirmed-clean.
	AnalysisPending bool
}

// Summarize computes the overall merge recommendation from the pairwise
// scores and detected conflicts: high average similarity without
// critical conflicts recommends merging, medium similarity asks for
// review, low similarity recommends keeping the entities separate.
func Summarize(pairs []types.SimilarityPair, conflicts []types.AttributeConflict) Summary {
	s := Summary{ConflictCount: len(conflicts)}

	for _, c := range conflicts {
		if c.Severity == types.SeverityHigh {
			s.HasCriticalConflicts = true
			break
		}
	}

	if len(pairs) == 0 && len(conflicts) == 0 {
		s.AnalysisPending = true
		s.Recommendation = types.RecommendReview
		s.Reason = "analysis pending, no similarity data yet"
		return s
	}

	if len(pairs) > 0 {
		sum := 0.0
		for _, p := range pairs {
			sum += p.CombinedScore
		}
		s.AverageScore = sum / float64(len(pairs))
	}

	switch {
	case s.AverageScore >= compatibleThreshold && !s.HasCriticalConflicts:
		s.Recommendation = types.RecommendMerge
		s.Reason = "high similarity without significant conflicts"
	case s.AverageScore >= reviewThreshold:
		s.Recommendation = types.RecommendReview
		if s.HasCriticalConflicts {
			s.Reason = "acceptable similarity but attribute conflicts need review"
		} else {
			s.Reason = "medium similarity, review before merging"
		}
	default:
		s.Recommendation = types.RecommendKeepSeparate
		s.Reason = "low similarity, the entities may be different"
	}

	return s
}
