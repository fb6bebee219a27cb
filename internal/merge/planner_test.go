package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// scenarioEntities is the two-entity fixture used across planner tests:
// a clean proper name and a descriptive duplicate that carries the
// proper name as an alias.
func scenarioEntities() []types.Entity {
	return []types.Entity{
		{ID: 1, Name: "Juan", Aliases: []string{"Juanito"}, Type: types.EntityCharacter, MentionCount: 10},
		{ID: 2, Name: "el joven moreno", Aliases: []string{"Juan"}, Type: types.EntityCharacter, MentionCount: 5},
	}
}

func TestBuildScenario(t *testing.T) {
	entities := scenarioEntities()
	candidates := Collect(entities)
	require.Len(t, candidates, 4)

	selection := types.MergeSelection{
		SelectedEntityIDs: []int64{1, 2},
		PrimaryName:       "Juan",
	}

	plan, err := Build(selection, entities, candidates, nil)
	require.NoError(t, err)

	// "Juan" is owned by entity 1 as canonical and entity 2 as alias;
	// the collector's canonical-first ordering makes entity 1 win.
	assert.Equal(t, int64(1), plan.PrimaryEntityID)
	assert.Equal(t, []int64{2}, plan.AbsorbedEntityIDs)
	assert.Equal(t, "Juan", plan.CanonicalName)
	// Both occurrences of "Juan" collapse into the canonical name and
	// are excluded from the alias list.
	assert.Equal(t, []string{"el joven moreno", "Juanito"}, plan.Aliases)
	assert.Equal(t, 15, plan.TotalMentionCount)
	assert.Equal(t, 0, plan.ConflictCount)
	assert.False(t, plan.HasCriticalConflicts)
}

func TestBuildIsIdempotent(t *testing.T) {
	entities := scenarioEntities()
	candidates := Collect(entities)
	selection := types.MergeSelection{SelectedEntityIDs: []int64{1, 2}, PrimaryName: "Juan"}
	conflicts := []types.AttributeConflict{
		{Category: "physical", AttributeName: "hair_color", Severity: types.SeverityHigh},
	}

	first, err := Build(selection, entities, candidates, conflicts)
	require.NoError(t, err)
	second, err := Build(selection, entities, candidates, conflicts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildAliasCompleteness(t *testing.T) {
	entities := []types.Entity{
		{ID: 1, Name: "María", Aliases: []string{"la doctora", "Mari"}, MentionCount: 3},
		{ID: 2, Name: "María Sánchez", Aliases: []string{"Mari"}, MentionCount: 8},
	}
	candidates := Collect(entities)
	selection := types.MergeSelection{SelectedEntityIDs: []int64{1, 2}, PrimaryName: "María Sánchez"}

	plan, err := Build(selection, entities, candidates, nil)
	require.NoError(t, err)

	// Every alias originates from some selected entity's names.
	valid := map[string]bool{}
	for _, e := range entities {
		valid[e.Name] = true
		for _, a := range e.Aliases {
			valid[a] = true
		}
	}
	for _, alias := range plan.Aliases {
		assert.True(t, valid[alias], "alias %q has no source entity", alias)
	}

	// The canonical name never appears among the aliases.
	assert.NotContains(t, plan.Aliases, plan.CanonicalName)
}

func TestBuildDeduplicatesSharedAliases(t *testing.T) {
	entities := []types.Entity{
		{ID: 1, Name: "Juan", Aliases: []string{"el Capitán"}},
		{ID: 2, Name: "Pedro", Aliases: []string{"el Capitán"}},
	}
	candidates := Collect(entities)
	selection := types.MergeSelection{SelectedEntityIDs: []int64{1, 2}, PrimaryName: "Juan"}

	plan, err := Build(selection, entities, candidates, nil)
	require.NoError(t, err)

	occurrences := 0
	for _, a := range plan.Aliases {
		if a == "el Capitán" {
			occurrences++
		}
	}
	assert.Equal(t, 1, occurrences)
}

func TestBuildSumsMentionCounts(t *testing.T) {
	entities := []types.Entity{
		{ID: 1, Name: "A", MentionCount: 12},
		{ID: 2, Name: "B", MentionCount: 7},
		{ID: 3, Name: "C", MentionCount: 3},
	}
	candidates := Collect(entities)
	selection := types.MergeSelection{SelectedEntityIDs: []int64{1, 2, 3}, PrimaryName: "A"}

	plan, err := Build(selection, entities, candidates, nil)
	require.NoError(t, err)
	assert.Equal(t, 22, plan.TotalMentionCount)
}

func TestBuildConflictGating(t *testing.T) {
	entities := scenarioEntities()
	candidates := Collect(entities)
	selection := types.MergeSelection{SelectedEntityIDs: []int64{1, 2}, PrimaryName: "Juan"}

	tests := []struct {
		name         string
		conflicts    []types.AttributeConflict
		wantCount    int
		wantCritical bool
	}{
		{
			name:         "high severity present",
			conflicts:    []types.AttributeConflict{{Severity: types.SeverityHigh}, {Severity: types.SeverityLow}},
			wantCount:    2,
			wantCritical: true,
		},
		{
			name:         "low severity only",
			conflicts:    []types.AttributeConflict{{Severity: types.SeverityLow}},
			wantCount:    1,
			wantCritical: false,
		},
		{
			// Empty means "no conflicts known yet", not "clean".
			name:         "analysis pending",
			conflicts:    nil,
			wantCount:    0,
			wantCritical: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Build(selection, entities, candidates, tt.conflicts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, plan.ConflictCount)
			assert.Equal(t, tt.wantCritical, plan.HasCriticalConflicts)
		})
	}
}

func TestBuildValidatesPrimaryName(t *testing.T) {
	entities := scenarioEntities()
	candidates := Collect(entities)

	var verr *ValidationError

	// No primary name chosen.
	_, err := Build(types.MergeSelection{SelectedEntityIDs: []int64{1, 2}}, entities, candidates, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	// A name orphaned by a selection change.
	sel := types.MergeSelection{SelectedEntityIDs: []int64{1, 2}, PrimaryName: "Rodrigo"}
	_, err = Build(sel, entities, candidates, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "Rodrigo")
}

func TestBuildAcceptsAliasAsPrimaryName(t *testing.T) {
	entities := scenarioEntities()
	candidates := Collect(entities)
	selection := types.MergeSelection{SelectedEntityIDs: []int64{1, 2}, PrimaryName: "Juanito"}

	plan, err := Build(selection, entities, candidates, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), plan.PrimaryEntityID)
	assert.Equal(t, "Juanito", plan.CanonicalName)
	assert.NotContains(t, plan.Aliases, "Juanito")
	assert.Contains(t, plan.Aliases, "Juan")
}

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  types.SimilarityBand
	}{
		{0.95, types.BandCompatible},
		{0.6, types.BandCompatible},
		{0.59, types.BandReview},
		{0.4, types.BandReview},
		{0.39, types.BandDifferent},
		{0.0, types.BandDifferent},
	}

	for _, tt := range tests {
		pair := types.SimilarityPair{CombinedScore: tt.score}
		assert.Equal(t, tt.want, Classify(pair), "score %.2f", tt.score)
	}
}

func TestClassifyRecommendationWins(t *testing.T) {
	// The label and the score are allowed to disagree; the label wins.
	pair := types.SimilarityPair{
		CombinedScore:  0.9,
		Recommendation: types.RecommendKeepSeparate,
	}
	assert.Equal(t, types.BandDifferent, Classify(pair))

	pair = types.SimilarityPair{
		CombinedScore:  0.1,
		Recommendation: types.RecommendMerge,
	}
	assert.Equal(t, types.BandCompatible, Classify(pair))
}

func TestSummarize(t *testing.T) {
	high := types.AttributeConflict{Severity: types.SeverityHigh}

	t.Run("pending when nothing arrived", func(t *testing.T) {
		s := Summarize(nil, nil)
		assert.True(t, s.AnalysisPending)
	})

	t.Run("merge on high similarity without critical conflicts", func(t *testing.T) {
		pairs := []types.SimilarityPair{{CombinedScore: 0.8}, {CombinedScore: 0.7}}
		s := Summarize(pairs, nil)
		assert.False(t, s.AnalysisPending)
		assert.InDelta(t, 0.75, s.AverageScore, 1e-9)
		assert.Equal(t, types.RecommendMerge, s.Recommendation)
	})

	t.Run("critical conflicts downgrade to review", func(t *testing.T) {
		pairs := []types.SimilarityPair{{CombinedScore: 0.8}}
		s := Summarize(pairs, []types.AttributeConflict{high})
		assert.Equal(t, types.RecommendReview, s.Recommendation)
		assert.True(t, s.HasCriticalConflicts)
	})

	t.Run("low similarity keeps entities separate", func(t *testing.T) {
		pairs := []types.SimilarityPair{{CombinedScore: 0.2}}
		s := Summarize(pairs, nil)
		assert.Equal(t, types.RecommendKeepSeparate, s.Recommendation)
	})
}
