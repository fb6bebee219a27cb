// Package merge implements the entity-merge reconciliation core: it
// turns a multi-entity selection into a validated, deterministic merge
// plan. Every exported function here is pure; the Wizard owns all
// mutable state and re-invokes the core whenever its inputs change.
package merge

import (
	"sort"
	"unicode/utf8"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// Collect flattens the selected entities into a source-tagged candidate
// name pool: one canonical candidate per entity plus one candidate per
// alias. The output is ordered canonical-before-alias and, within each
// group, longer names (by code-point count) before shorter ones. That
// ordering biases the default suggestion toward substantial canonical
// names and fixes the first-seen order used when aliases are
// deduplicated later.
//
// Collecting from zero or one entity is not an error; gating the
// wizard on having at least two selected entities is the caller's job.
func Collect(entities []types.Entity) []types.CandidateName {
	var candidates []types.CandidateName
	for _, e := range entities {
		candidates = append(candidates, types.CandidateName{
			Value:            e.Name,
			SourceEntityID:   e.ID,
			SourceEntityType: e.Type,
			SourceEntityName: e.Name,
			IsCanonical:      true,
		})
		for _, alias := range e.Aliases {
			candidates = append(candidates, types.CandidateName{
				Value:            alias,
				SourceEntityID:   e.ID,
				SourceEntityType: e.Type,
				SourceEntityName: e.Name,
				IsCanonical:      false,
			})
		}
	}

	// Stable sort so that equal-length names keep entity order.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].IsCanonical != candidates[j].IsCanonical {
			return candidates[i].IsCanonical
		}
		return utf8.RuneCountInString(candidates[i].Value) > utf8.RuneCountInString(candidates[j].Value)
	})

	return candidates
}
