package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:           srv.URL,
		ProjectID:         7,
		RequestsPerSecond: 1000,
		Burst:             100,
	})
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func TestListEntities(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/projects/7/entities", r.URL.Path)
		writeEnvelope(w, map[string]interface{}{
			"entities": []map[string]interface{}{
				{"id": 1, "name": "Juan Pérez", "type": "character", "mention_count": 12, "aliases": []string{"Juanito"}},
				{"id": 2, "canonical_name": "el joven moreno", "entity_type": "character", "mentions": 5},
			},
		})
	}))

	entities, err := client.ListEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Juan Pérez", entities[0].Name)
	assert.Equal(t, []string{"Juanito"}, entities[0].Aliases)
	assert.Equal(t, "el joven moreno", entities[1].Name)
	assert.Equal(t, 5, entities[1].MentionCount)
}

func TestPreviewMerge(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/7/entities/preview-merge", r.URL.Path)

		var body map[string][]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int64{1, 2}, body["entity_ids"])

		writeEnvelope(w, map[string]interface{}{
			"similarity": map[string]interface{}{
				"pairs": []map[string]interface{}{
					{"entity_a_id": 1, "entity_b_id": 2, "combined_score": 0.72, "recommendation": "review"},
				},
				"average_score": 0.72,
			},
			"merged_preview": map[string]interface{}{
				"suggested_canonical_name": "Juan Pérez",
				"suggested_aliases":        []string{"el joven moreno"},
				"suggested_type":           "character",
				"total_mentions":           17,
			},
			"conflicts": []map[string]interface{}{
				{"category": "physical", "attribute_name": "hair", "severity": "high"},
			},
			"conflict_count":         1,
			"has_critical_conflicts": true,
			"recommendation":         "review",
			"recommendation_reason":  "attribute conflicts present",
		})
	}))

	analysis, err := client.PreviewMerge(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, SourcePreview, analysis.Source)
	require.Len(t, analysis.Pairs, 1)
	assert.Equal(t, 0.72, analysis.Pairs[0].CombinedScore)
	assert.Equal(t, "Juan Pérez", analysis.SuggestedCanonicalName)
	assert.Equal(t, types.EntityCharacter, analysis.SuggestedType)
	assert.Equal(t, 17, analysis.TotalMentions)
	assert.True(t, analysis.HasCriticalConflicts)
	require.Len(t, analysis.Conflicts, 1)
	assert.Equal(t, types.SeverityHigh, analysis.Conflicts[0].Severity)
	assert.Equal(t, types.RecommendReview, analysis.Recommendation)
}

func TestAnalyzeFallsBackToSimilarity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/7/entities/preview-merge":
			http.Error(w, "not implemented", http.StatusNotFound)
		case "/api/projects/7/entities/similarity":
			writeEnvelope(w, map[string]interface{}{
				"pairs": []map[string]interface{}{
					{"entity1_id": 1, "entity2_id": 2, "similarity": 0.55},
				},
				"average_score":  0.55,
				"recommendation": "review",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	analysis, err := client.Analyze(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, SourceSimilarity, analysis.Source)
	require.Len(t, analysis.Pairs, 1)
	assert.Equal(t, int64(1), analysis.Pairs[0].EntityAID)
	assert.Equal(t, 0.55, analysis.Pairs[0].CombinedScore)
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyzeBothRungsDown(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := client.Analyze(context.Background(), []int64{1, 2})
	assert.Error(t, err)
}

func TestSubmitMergeWireContract(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/7/entities/merge", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// Only ids cross the wire; the server owns the canonical name
		// and aliases.
		assert.Equal(t, []string{"entity_ids", "primary_entity_id"}, sortedKeys(body))
		assert.Equal(t, float64(1), body["primary_entity_id"])

		writeEnvelope(w, map[string]interface{}{
			"primary_entity_id": 1,
			"merged_count":      2,
			"merged_entity_ids": []int64{1, 2},
		})
	}))

	plan := types.MergePlan{
		PrimaryEntityID:   1,
		AbsorbedEntityIDs: []int64{2},
		CanonicalName:     "Juan",
		Aliases:           []string{"el joven moreno"},
	}
	result, err := client.SubmitMerge(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MergedEntityID)
	assert.Equal(t, 2, result.MergedCount)
	assert.Equal(t, []int64{1, 2}, result.MergedEntityIDs)
}

func TestSubmitMergeRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "entities were modified by another analysis run",
		})
	}))

	_, err := client.SubmitMerge(context.Background(), types.MergePlan{PrimaryEntityID: 1})
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "entities were modified by another analysis run", subErr.Message)
}

func TestMergeHistoryAndUndo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/7/entities/merge-history":
			writeEnvelope(w, map[string]interface{}{
				"merges": []map[string]interface{}{
					{"id": 4, "primary_entity_id": 1, "merged_entity_ids": []int64{1, 2}, "merged_by": "user", "created_at": "2026-08-01T10:00:00Z"},
				},
				"total": 1,
			})
		case "/api/projects/7/entities/undo-merge/4":
			assert.Equal(t, http.MethodPost, r.Method)
			writeEnvelope(w, map[string]interface{}{
				"restored_entity_ids": []int64{1, 2},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	records, err := client.MergeHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(4), records[0].ID)
	assert.Equal(t, []int64{1, 2}, records[0].MergedEntityIDs)

	restored, err := client.UndoMerge(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, restored)
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	var hits int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.ListEntities(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, 3, hits)
	assert.Equal(t, "open", client.BreakerState())

	// The open circuit rejects without touching the server.
	_, err := client.ListEntities(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, hits)
}

func TestEnvelopeFailureIsNotSubmissionError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "project not found",
		})
	}))

	_, err := client.ListEntities(context.Background())
	require.Error(t, err)
	var subErr *SubmissionError
	assert.False(t, errors.As(err, &subErr))
	assert.Contains(t, err.Error(), "project not found")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
