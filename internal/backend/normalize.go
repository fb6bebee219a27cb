package backend

import (
	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// The API server's response shapes drifted across versions: pair ids
// were renamed, the combined score travelled as "similarity" before
// "combined_score", conflict fields were re-keyed, and older builds
// omitted the recommendation label entirely. All of that variability is
// absorbed here, at the client boundary, so the rest of the module only
// ever sees the canonical records in pkg/types.

// wireEntity decodes both the current and the legacy entity shape.
type wireEntity struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases"`
	Type          string   `json:"type"`
	EntityType    string   `json:"entity_type"`
	MentionCount  *int     `json:"mention_count"`
	Mentions      *int     `json:"mentions"`
}

func (w wireEntity) normalize() types.Entity {
	name := w.Name
	if name == "" {
		name = w.CanonicalName
	}
	typ := w.Type
	if typ == "" {
		typ = w.EntityType
	}
	return types.Entity{
		ID:           w.ID,
		Name:         name,
		Aliases:      w.Aliases,
		Type:         types.EntityType(typ),
		MentionCount: firstInt(w.MentionCount, w.Mentions),
	}
}

// wireNameSimilarity matches both the nested metric object and older
// flat responses carrying a single "combined" value.
type wireNameSimilarity struct {
	Levenshtein float64 `json:"levenshtein"`
	JaroWinkler float64 `json:"jaro_winkler"`
	Containment float64 `json:"containment"`
}

// wirePair decodes every historical similarity-pair shape.
type wirePair struct {
	EntityAID *int64 `json:"entity_a_id"`
	Entity1ID *int64 `json:"entity1_id"`
	EntityBID *int64 `json:"entity_b_id"`
	Entity2ID *int64 `json:"entity2_id"`

	NameSimilarity wireNameSimilarity `json:"name_similarity"`

	SemanticSimilarity *float64 `json:"semantic_similarity"`
	Semantic           *float64 `json:"semantic"`

	CombinedScore *float64 `json:"combined_score"`
	Similarity    *float64 `json:"similarity"`

	Recommendation string `json:"recommendation"`
}

func (w wirePair) normalize() types.SimilarityPair {
	return types.SimilarityPair{
		EntityAID: firstInt64(w.EntityAID, w.Entity1ID),
		EntityBID: firstInt64(w.EntityBID, w.Entity2ID),
		NameSimilarity: types.NameSimilarity{
			Levenshtein: w.NameSimilarity.Levenshtein,
			JaroWinkler: w.NameSimilarity.JaroWinkler,
			Containment: w.NameSimilarity.Containment,
		},
		SemanticSimilarity: firstFloat(w.SemanticSimilarity, w.Semantic),
		CombinedScore:      firstFloat(w.CombinedScore, w.Similarity),
		Recommendation:     types.Recommendation(w.Recommendation),
	}
}

func normalizePairs(wire []wirePair) []types.SimilarityPair {
	if len(wire) == 0 {
		return nil
	}
	pairs := make([]types.SimilarityPair, len(wire))
	for i, w := range wire {
		pairs[i] = w.normalize()
	}
	return pairs
}

// wireConflictValue decodes one contradictory attribute value.
type wireConflictValue struct {
	Value            string   `json:"value"`
	EntityID         *int64   `json:"entity_id"`
	SourceEntityID   *int64   `json:"source_entity_id"`
	EntityName       string   `json:"entity_name"`
	SourceEntityName string   `json:"source_entity_name"`
	Confidence       *float64 `json:"confidence"`
}

// wireConflict decodes the current and legacy attribute-conflict shapes.
type wireConflict struct {
	Category          string              `json:"category"`
	AttributeType     string              `json:"attribute_type"`
	AttributeName     string              `json:"attribute_name"`
	AttributeKey      string              `json:"attribute_key"`
	Severity          string              `json:"severity"`
	ConflictingValues []wireConflictValue `json:"conflicting_values"`
}

func (w wireConflict) normalize() types.AttributeConflict {
	category := w.Category
	if category == "" {
		category = w.AttributeType
	}
	attrName := w.AttributeName
	if attrName == "" {
		attrName = w.AttributeKey
	}

	severity := types.ConflictSeverity(w.Severity)
	if w.Severity == "" {
		// Older servers classified by category instead of sending a
		// severity; physical and identity conflicts are the critical
		// ones.
		switch category {
		case "physical", "identity":
			severity = types.SeverityHigh
		default:
			severity = types.SeverityMedium
		}
	}

	values := make([]types.ConflictingValue, len(w.ConflictingValues))
	for i, v := range w.ConflictingValues {
		confidence := 1.0
		if v.Confidence != nil {
			confidence = *v.Confidence
		}
		name := v.SourceEntityName
		if name == "" {
			name = v.EntityName
		}
		values[i] = types.ConflictingValue{
			Value:            v.Value,
			SourceEntityID:   firstInt64(v.SourceEntityID, v.EntityID),
			SourceEntityName: name,
			Confidence:       confidence,
		}
	}

	return types.AttributeConflict{
		Category:          category,
		AttributeName:     attrName,
		Severity:          severity,
		ConflictingValues: values,
	}
}

func normalizeConflicts(wire []wireConflict) []types.AttributeConflict {
	if len(wire) == 0 {
		return nil
	}
	conflicts := make([]types.AttributeConflict, len(wire))
	for i, w := range wire {
		conflicts[i] = w.normalize()
	}
	return conflicts
}

func firstInt(candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

func firstInt64(candidates ...*int64) int64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

func firstFloat(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}
