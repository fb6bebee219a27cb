package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

func TestNormalizeEntityShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want types.Entity
	}{
		{
			name: "current shape",
			body: `{"id": 3, "name": "Juan Pérez", "aliases": ["Juanito"], "type": "character", "mention_count": 12}`,
			want: types.Entity{ID: 3, Name: "Juan Pérez", Aliases: []string{"Juanito"}, Type: types.EntityCharacter, MentionCount: 12},
		},
		{
			name: "legacy shape",
			body: `{"id": 3, "canonical_name": "Juan Pérez", "entity_type": "character", "mentions": 12}`,
			want: types.Entity{ID: 3, Name: "Juan Pérez", Type: types.EntityCharacter, MentionCount: 12},
		},
		{
			name: "current keys win over legacy keys",
			body: `{"id": 3, "name": "Juan", "canonical_name": "stale", "type": "character", "entity_type": "location", "mention_count": 5, "mentions": 99}`,
			want: types.Entity{ID: 3, Name: "Juan", Type: types.EntityCharacter, MentionCount: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w wireEntity
			require.NoError(t, json.Unmarshal([]byte(tt.body), &w))
			assert.Equal(t, tt.want, w.normalize())
		})
	}
}

func TestNormalizePairShapes(t *testing.T) {
	current := `{
		"entity_a_id": 1, "entity_b_id": 2,
		"name_similarity": {"levenshtein": 0.8, "jaro_winkler": 0.9, "containment": 1.0},
		"semantic_similarity": 0.75, "combined_score": 0.82,
		"recommendation": "merge"
	}`
	legacy := `{
		"entity1_id": 1, "entity2_id": 2,
		"semantic": 0.75, "similarity": 0.82
	}`

	var w wirePair
	require.NoError(t, json.Unmarshal([]byte(current), &w))
	got := w.normalize()
	assert.Equal(t, int64(1), got.EntityAID)
	assert.Equal(t, int64(2), got.EntityBID)
	assert.Equal(t, 0.9, got.NameSimilarity.JaroWinkler)
	assert.Equal(t, 0.75, got.SemanticSimilarity)
	assert.Equal(t, 0.82, got.CombinedScore)
	assert.Equal(t, types.RecommendMerge, got.Recommendation)

	w = wirePair{}
	require.NoError(t, json.Unmarshal([]byte(legacy), &w))
	got = w.normalize()
	assert.Equal(t, int64(1), got.EntityAID)
	assert.Equal(t, int64(2), got.EntityBID)
	assert.Equal(t, 0.75, got.SemanticSimilarity)
	assert.Equal(t, 0.82, got.CombinedScore)
	// Older servers sent no label; banding falls to the thresholds.
	assert.Empty(t, got.Recommendation)
}

func TestNormalizeConflictShapes(t *testing.T) {
	t.Run("current shape", func(t *testing.T) {
		body := `{
			"category": "physical", "attribute_name": "eye_color", "severity": "low",
			"conflicting_values": [
				{"value": "verdes", "source_entity_id": 1, "source_entity_name": "Juan", "confidence": 0.8}
			]
		}`
		var w wireConflict
		require.NoError(t, json.Unmarshal([]byte(body), &w))
		got := w.normalize()
		assert.Equal(t, "physical", got.Category)
		assert.Equal(t, "eye_color", got.AttributeName)
		// An explicit severity is never overridden by the category.
		assert.Equal(t, types.SeverityLow, got.Severity)
		require.Len(t, got.ConflictingValues, 1)
		assert.Equal(t, int64(1), got.ConflictingValues[0].SourceEntityID)
		assert.Equal(t, "Juan", got.ConflictingValues[0].SourceEntityName)
		assert.Equal(t, 0.8, got.ConflictingValues[0].Confidence)
	})

	t.Run("severity derived from category", func(t *testing.T) {
		tests := []struct {
			category string
			want     types.ConflictSeverity
		}{
			{"physical", types.SeverityHigh},
			{"identity", types.SeverityHigh},
			{"personality", types.SeverityMedium},
			{"background", types.SeverityMedium},
		}
		for _, tt := range tests {
			w := wireConflict{AttributeType: tt.category}
			assert.Equal(t, tt.want, w.normalize().Severity, tt.category)
		}
	})

	t.Run("legacy value keys and confidence default", func(t *testing.T) {
		body := `{
			"attribute_type": "identity", "attribute_key": "nombre",
			"conflicting_values": [{"value": "Juan", "entity_id": 2, "entity_name": "el joven"}]
		}`
		var w wireConflict
		require.NoError(t, json.Unmarshal([]byte(body), &w))
		got := w.normalize()
		assert.Equal(t, "identity", got.Category)
		assert.Equal(t, "nombre", got.AttributeName)
		assert.Equal(t, types.SeverityHigh, got.Severity)
		require.Len(t, got.ConflictingValues, 1)
		assert.Equal(t, int64(2), got.ConflictingValues[0].SourceEntityID)
		assert.Equal(t, "el joven", got.ConflictingValues[0].SourceEntityName)
		assert.Equal(t, 1.0, got.ConflictingValues[0].Confidence)
	})
}

func TestNormalizeSlicesNilOnEmpty(t *testing.T) {
	assert.Nil(t, normalizePairs(nil))
	assert.Nil(t, normalizeConflicts(nil))
	assert.Len(t, normalizePairs([]wirePair{{}}), 1)
}
