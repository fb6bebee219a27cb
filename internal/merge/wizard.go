package merge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// State identifies where the merge wizard is in its flow.
type State string

// Wizard states. The flow is SelectingEntities → SelectingPrimaryName →
// ReviewingPlan → Submitting → {Succeeded, Failed}; Failed can return
// to ReviewingPlan for a retry with all choices preserved.
const (
	StateSelectingEntities    State = "selecting_entities"
	StateSelectingPrimaryName State = "selecting_primary_name"
	StateReviewingPlan        State = "reviewing_plan"
	StateSubmitting           State = "submitting"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
)

// Wizard transition errors.
var (
	ErrTooFewEntities     = errors.New("merge: at least two entities must be selected")
	ErrNoPrimaryName      = errors.New("merge: no primary name chosen")
	ErrInvalidTransition  = errors.New("merge: invalid wizard transition")
	ErrSelectionImmutable = errors.New("merge: selection can only change while selecting entities")
)

// Wizard owns all mutable state of the merge flow and re-invokes the
// pure core (Collect, SelectDefault, Build, Summarize) on every change.
// It also coordinates the asynchronous analysis fetch: each fetch is
// tagged with a request id and responses carrying a stale id are
// discarded, so a selection change mid-fetch can never apply outdated
// similarity data.
//
// The mutex makes the wizard safe to touch from the invalidation
// subscriber's goroutine as well as the UI loop.
type Wizard struct {
	mu     sync.Mutex
	scorer NameScorer

	state      State
	entities   []types.Entity
	selection  types.MergeSelection
	candidates []types.CandidateName

	analysisID    uuid.UUID
	pairs         []types.SimilarityPair
	conflicts     []types.AttributeConflict
	suggestedName string
	localAnalysis bool

	lastErr error
}

// NewWizard creates a wizard in the entity-selection state. A nil
// scorer falls back to the Spanish heuristic.
func NewWizard(scorer NameScorer) *Wizard {
	if scorer == nil {
		scorer = SpanishNameScorer{}
	}
	return &Wizard{
		scorer: scorer,
		state:  StateSelectingEntities,
	}
}

// Open loads the project's entity list and optionally pre-seeds the
// selection, then resets the wizard to the entity-selection state.
// Preselected ids not present in the entity list are ignored.
func (w *Wizard) Open(entities []types.Entity, preselected []int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.reset()
	w.entities = entities
	for _, id := range preselected {
		if w.findEntity(id) != nil {
			w.selection.SelectedEntityIDs = append(w.selection.SelectedEntityIDs, id)
		}
	}
}

// State returns the wizard's current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the error from the last failed submission, nil otherwise.
func (w *Wizard) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Toggle adds or removes an entity from the selection. Only legal while
// selecting entities; later steps must go Back first, which is what
// keeps the candidate pool and the selection consistent.
func (w *Wizard) Toggle(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateSelectingEntities {
		return ErrSelectionImmutable
	}
	if w.findEntity(id) == nil {
		return fmt.Errorf("merge: entity %d is not in the project entity list", id)
	}

	for i, sel := range w.selection.SelectedEntityIDs {
		if sel == id {
			w.selection.SelectedEntityIDs = append(
				w.selection.SelectedEntityIDs[:i],
				w.selection.SelectedEntityIDs[i+1:]...,
			)
			return nil
		}
	}
	w.selection.SelectedEntityIDs = append(w.selection.SelectedEntityIDs, id)
	return nil
}

// Selection returns a copy of the current selection.
func (w *Wizard) Selection() types.MergeSelection {
	w.mu.Lock()
	defer w.mu.Unlock()

	sel := w.selection
	sel.SelectedEntityIDs = append([]int64(nil), sel.SelectedEntityIDs...)
	return sel
}

// SelectedEntities resolves the selection against the entity list,
// preserving selection order.
func (w *Wizard) SelectedEntities() []types.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedEntitiesLocked()
}

func (w *Wizard) selectedEntitiesLocked() []types.Entity {
	selected := make([]types.Entity, 0, len(w.selection.SelectedEntityIDs))
	for _, id := range w.selection.SelectedEntityIDs {
		if e := w.findEntity(id); e != nil {
			selected = append(selected, *e)
		}
	}
	return selected
}

// BeginNaming moves from entity selection to primary-name selection.
// Requires at least two selected entities; merging fewer is
// meaningless. The candidate pool is collected here.
func (w *Wizard) BeginNaming() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateSelectingEntities {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, w.state, StateSelectingPrimaryName)
	}
	if len(w.selection.SelectedEntityIDs) < 2 {
		return ErrTooFewEntities
	}

	w.candidates = Collect(w.selectedEntitiesLocked())
	w.state = StateSelectingPrimaryName
	return nil
}

// Candidates returns the collected candidate pool.
func (w *Wizard) Candidates() []types.CandidateName {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.CandidateName(nil), w.candidates...)
}

// DefaultPrimaryName returns the name to pre-select, without locking it
// in. Precedence: the user's already-chosen name, then the backend's
// suggested canonical name when it matches a current candidate, then
// the heuristic scorer's pick. Empty when nothing qualifies.
func (w *Wizard) DefaultPrimaryName() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.selection.PrimaryName != "" {
		return w.selection.PrimaryName
	}
	if w.suggestedName != "" {
		for _, c := range w.candidates {
			if c.Value == w.suggestedName {
				return w.suggestedName
			}
		}
	}
	if best := SelectDefault(w.candidates, w.scorer); best != nil {
		return best.Value
	}
	return ""
}

// SetPrimaryName records the user's (or the default's) primary name
// choice. The value is kept verbatim; validation against the candidate
// pool happens at plan build time.
func (w *Wizard) SetPrimaryName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.PrimaryName = name
}

// BeginReview moves to the plan-review state and returns the request id
// the caller must tag the asynchronous analysis fetch with. Requires a
// non-empty primary name.
func (w *Wizard) BeginReview() (uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateSelectingPrimaryName {
		return uuid.Nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, w.state, StateReviewingPlan)
	}
	if w.selection.PrimaryName == "" {
		return uuid.Nil, ErrNoPrimaryName
	}

	w.analysisID = uuid.New()
	w.pairs = nil
	w.conflicts = nil
	w.localAnalysis = false
	w.state = StateReviewingPlan
	return w.analysisID, nil
}

// ApplyAnalysis installs a completed analysis response. The response is
// discarded (returns false) when its request id no longer matches the
// latest fetch or the wizard has left the review step; the core itself
// has no request identity, so this is where superseded responses die.
// local marks results computed client-side rather than by the backend.
func (w *Wizard) ApplyAnalysis(requestID uuid.UUID, pairs []types.SimilarityPair, conflicts []types.AttributeConflict, suggestedName string, local bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateReviewingPlan || requestID != w.analysisID {
		return false
	}

	w.pairs = pairs
	w.conflicts = conflicts
	w.localAnalysis = local
	if suggestedName != "" {
		w.suggestedName = suggestedName
	}
	return true
}

// Analysis returns the current similarity pairs and conflicts, plus
// whether they were computed locally.
func (w *Wizard) Analysis() (pairs []types.SimilarityPair, conflicts []types.AttributeConflict, local bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.SimilarityPair(nil), w.pairs...),
		append([]types.AttributeConflict(nil), w.conflicts...),
		w.localAnalysis
}

// Plan builds the merge plan from the wizard's current state. Absent
// analysis data degrades the conflict fields to zero values.
func (w *Wizard) Plan() (types.MergePlan, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Build(w.selection, w.selectedEntitiesLocked(), w.candidates, w.conflicts)
}

// Summary aggregates the analysis for the review step.
func (w *Wizard) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Summarize(w.pairs, w.conflicts)
}

// Back steps the wizard one state backwards so the user can revise an
// earlier choice. Selection and primary name are preserved; a primary
// name orphaned by a later selection change is caught by Build's
// validation.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateSelectingPrimaryName:
		w.state = StateSelectingEntities
	case StateReviewingPlan:
		w.state = StateSelectingPrimaryName
	default:
		return fmt.Errorf("%w: cannot go back from %s", ErrInvalidTransition, w.state)
	}
	return nil
}

// BeginSubmit validates the plan one final time and moves to the
// submitting state, returning the plan to POST.
func (w *Wizard) BeginSubmit() (types.MergePlan, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateReviewingPlan {
		return types.MergePlan{}, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, w.state, StateSubmitting)
	}

	plan, err := Build(w.selection, w.selectedEntitiesLocked(), w.candidates, w.conflicts)
	if err != nil {
		return types.MergePlan{}, err
	}

	w.state = StateSubmitting
	w.lastErr = nil
	return plan, nil
}

// FinishSubmit records the submission outcome. Success disposes the
// plan and resets the selection (the merged entities no longer exist as
// separate records); failure keeps everything so the user can retry.
func (w *Wizard) FinishSubmit(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateSubmitting {
		return
	}
	if err != nil {
		w.lastErr = err
		w.state = StateFailed
		return
	}

	w.reset()
	w.state = StateSucceeded
}

// Retry acknowledges a failed submission and returns to the review
// step, selection and plan intact.
func (w *Wizard) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateFailed {
		return fmt.Errorf("%w: retry is only valid after a failed submission", ErrInvalidTransition)
	}
	w.state = StateReviewingPlan
	return nil
}

// Close abandons the flow and clears all selection state.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

// reset clears everything except the entity list. Callers hold the lock.
func (w *Wizard) reset() {
	w.state = StateSelectingEntities
	w.selection = types.MergeSelection{}
	w.candidates = nil
	w.analysisID = uuid.Nil
	w.pairs = nil
	w.conflicts = nil
	w.suggestedName = ""
	w.localAnalysis = false
	w.lastErr = nil
}

func (w *Wizard) findEntity(id int64) *types.Entity {
	for i := range w.entities {
		if w.entities[i].ID == id {
			return &w.entities[i]
		}
	}
	return nil
}
