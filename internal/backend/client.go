// Package backend is the HTTP client for the narrative-assistant API
// server: the project entity list, the similarity and preview-merge
// analysis endpoints, merge submission, merge history and undo. Every
// call is rate limited and goes through a circuit breaker; response
// shape drift is absorbed in normalize.go so callers only see the
// canonical pkg/types records.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// Config holds API client configuration.
type Config struct {
	// BaseURL is the API server root (default: http://localhost:8765).
	BaseURL string

	// ProjectID scopes every call to one project.
	ProjectID int64

	// Timeout is the per-request timeout (default: 10s).
	Timeout time.Duration

	// RequestsPerSecond and Burst configure client-side rate limiting
	// (defaults: 10 req/s, burst 5). The merge dialog rebuilds its
	// preview eagerly; the limiter keeps that from flooding the server.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the narrative-assistant API server.
type Client struct {
	baseURL   string
	projectID int64
	http      *http.Client
	breaker   *circuitBreaker
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewClient creates an API client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8765"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst == 0 {
		cfg.Burst = 5
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		projectID: cfg.ProjectID,
		http:      &http.Client{Timeout: cfg.Timeout},
		breaker:   newCircuitBreaker(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		timeout:   cfg.Timeout,
	}
}

// envelope is the API server's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// SubmissionError is a merge submission the server rejected (HTTP-level
// success but success:false in the envelope). The message is the
// server's own and is meant to be shown to the user verbatim.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return "backend: merge rejected: " + e.Message
}

// AnalysisSource records which rung of the degradation ladder produced
// an analysis.
type AnalysisSource string

// Analysis sources, richest first.
const (
	SourcePreview    AnalysisSource = "preview"
	SourceSimilarity AnalysisSource = "similarity"
	SourceLocal      AnalysisSource = "local"
)

// Analysis is the reconciled result of an analysis fetch: similarity
// pairs, attribute conflicts and the server's merged-entity preview.
// Fields beyond Pairs are zero when the source endpoint does not supply
// them.
type Analysis struct {
	Pairs        []types.SimilarityPair
	AverageScore float64

	Conflicts            []types.AttributeConflict
	ConflictCount        int
	HasCriticalConflicts bool

	SuggestedCanonicalName string
	SuggestedAliases       []string
	SuggestedType          types.EntityType
	TotalMentions          int

	Recommendation types.Recommendation
	Reason         string

	Source AnalysisSource
}

// MergeResult is the server's answer to a confirmed merge.
type MergeResult struct {
	MergedEntityID  int64
	MergedCount     int
	MergedEntityIDs []int64
}

// MergeRecord is one entry of the project's merge history, used to
// drive undo.
type MergeRecord struct {
	ID              int64     `json:"id"`
	PrimaryEntityID int64     `json:"primary_entity_id"`
	MergedEntityIDs []int64   `json:"merged_entity_ids"`
	MergedBy        string    `json:"merged_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListEntities fetches the project's entity list.
func (c *Client) ListEntities(ctx context.Context) ([]types.Entity, error) {
	var payload struct {
		Entities []wireEntity `json:"entities"`
	}
	path := fmt.Sprintf("/api/projects/%d/entities", c.projectID)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("backend: list entities: %w", err)
	}

	entities := make([]types.Entity, len(payload.Entities))
	for i, w := range payload.Entities {
		entities[i] = w.normalize()
	}
	return entities, nil
}

// Analyze fetches similarity and conflict data for the given entity
// ids, degrading through the ladder: the rich preview-merge endpoint
// first, then the plain similarity endpoint. Local computation is the
// caller's final fallback; this method never does it. The error is only
// non-nil when every rung failed.
func (c *Client) Analyze(ctx context.Context, entityIDs []int64) (*Analysis, error) {
	analysis, err := c.PreviewMerge(ctx, entityIDs)
	if err == nil {
		return analysis, nil
	}
	log.Printf("backend: preview-merge failed, falling back to similarity: %v", err)

	analysis, simErr := c.Similarity(ctx, entityIDs)
	if simErr == nil {
		return analysis, nil
	}
	return nil, fmt.Errorf("backend: analysis unavailable: %w (preview: %v)", simErr, err)
}

// PreviewMerge calls the rich preview endpoint: pairwise similarity,
// attribute conflicts, the merged-entity preview and an overall
// recommendation.
func (c *Client) PreviewMerge(ctx context.Context, entityIDs []int64) (*Analysis, error) {
	var payload struct {
		Similarity struct {
			Pairs        []wirePair `json:"pairs"`
			AverageScore float64    `json:"average_score"`
		} `json:"similarity"`
		MergedPreview struct {
			SuggestedCanonicalName string   `json:"suggested_canonical_name"`
			SuggestedAliases       []string `json:"suggested_aliases"`
			SuggestedType          string   `json:"suggested_type"`
			TotalMentions          int      `json:"total_mentions"`
		} `json:"merged_preview"`
		Conflicts            []wireConflict `json:"conflicts"`
		ConflictCount        int            `json:"conflict_count"`
		HasCriticalConflicts bool           `json:"has_critical_conflicts"`
		Recommendation       string         `json:"recommendation"`
		Reason               string         `json:"recommendation_reason"`
	}

	path := fmt.Sprintf("/api/projects/%d/entities/preview-merge", c.projectID)
	if err := c.post(ctx, path, map[string]interface{}{"entity_ids": entityIDs}, &payload); err != nil {
		return nil, err
	}

	return &Analysis{
		Pairs:                  normalizePairs(payload.Similarity.Pairs),
		AverageScore:           payload.Similarity.AverageScore,
		Conflicts:              normalizeConflicts(payload.Conflicts),
		ConflictCount:          payload.ConflictCount,
		HasCriticalConflicts:   payload.HasCriticalConflicts,
		SuggestedCanonicalName: payload.MergedPreview.SuggestedCanonicalName,
		SuggestedAliases:       payload.MergedPreview.SuggestedAliases,
		SuggestedType:          types.EntityType(payload.MergedPreview.SuggestedType),
		TotalMentions:          payload.MergedPreview.TotalMentions,
		Recommendation:         types.Recommendation(payload.Recommendation),
		Reason:                 payload.Reason,
		Source:                 SourcePreview,
	}, nil
}

// Similarity calls the plain similarity endpoint: pairwise scores and
// an overall recommendation, no conflict detection.
func (c *Client) Similarity(ctx context.Context, entityIDs []int64) (*Analysis, error) {
	var payload struct {
		Pairs          []wirePair `json:"pairs"`
		AverageScore   float64    `json:"average_score"`
		Recommendation string     `json:"recommendation"`
	}

	path := fmt.Sprintf("/api/projects/%d/entities/similarity", c.projectID)
	if err := c.post(ctx, path, map[string]interface{}{"entity_ids": entityIDs}, &payload); err != nil {
		return nil, err
	}

	return &Analysis{
		Pairs:          normalizePairs(payload.Pairs),
		AverageScore:   payload.AverageScore,
		Recommendation: types.Recommendation(payload.Recommendation),
		Source:         SourceSimilarity,
	}, nil
}

// SubmitMerge posts the merge plan. The wire contract is the primary id
// plus the full selected id list; the server recomputes the canonical
// name and alias set itself, so the plan's CanonicalName and Aliases
// are display-only preview data and are not transmitted.
func (c *Client) SubmitMerge(ctx context.Context, plan types.MergePlan) (*MergeResult, error) {
	body := map[string]interface{}{
		"primary_entity_id": plan.PrimaryEntityID,
		"entity_ids":        append([]int64{plan.PrimaryEntityID}, plan.AbsorbedEntityIDs...),
	}

	var payload struct {
		PrimaryEntityID int64   `json:"primary_entity_id"`
		MergedCount     int     `json:"merged_count"`
		MergedEntityIDs []int64 `json:"merged_entity_ids"`
	}

	path := fmt.Sprintf("/api/projects/%d/entities/merge", c.projectID)
	if err := c.postSubmission(ctx, path, body, &payload); err != nil {
		return nil, err
	}

	return &MergeResult{
		MergedEntityID:  payload.PrimaryEntityID,
		MergedCount:     payload.MergedCount,
		MergedEntityIDs: payload.MergedEntityIDs,
	}, nil
}

// MergeHistory lists the project's recorded merges, newest first.
func (c *Client) MergeHistory(ctx context.Context) ([]MergeRecord, error) {
	var payload struct {
		Merges []MergeRecord `json:"merges"`
		Total  int           `json:"total"`
	}
	path := fmt.Sprintf("/api/projects/%d/entities/merge-history", c.projectID)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("backend: merge history: %w", err)
	}
	return payload.Merges, nil
}

// UndoMerge reverses a recorded merge and returns the restored entity
// ids.
func (c *Client) UndoMerge(ctx context.Context, mergeID int64) ([]int64, error) {
	var payload struct {
		RestoredEntityIDs []int64 `json:"restored_entity_ids"`
	}
	path := fmt.Sprintf("/api/projects/%d/entities/undo-merge/%d", c.projectID, mergeID)
	if err := c.post(ctx, path, map[string]interface{}{}, &payload); err != nil {
		return nil, fmt.Errorf("backend: undo merge %d: %w", mergeID, err)
	}
	return payload.RestoredEntityIDs, nil
}

// BreakerState reports the circuit breaker state for diagnostics.
func (c *Client) BreakerState() string {
	return c.breaker.state()
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out, false)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out, false)
}

// postSubmission is post with envelope failures mapped to
// SubmissionError instead of a generic error, so the wizard can show
// the server's message and offer a retry.
func (c *Client) postSubmission(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, submission bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.execute(ctx, func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, submission)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}, submission bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(data, 200))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		if submission {
			return &SubmissionError{Message: env.Error}
		}
		return fmt.Errorf("server error: %s", env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
