package types

// MergeSelection is the mutable wizard state: which entities the user
// has picked and, once chosen, the primary (canonical-to-be) name.
// SelectedEntityIDs preserves the order entities were selected in;
// absorbed-entity ordering in the plan derives from it. PrimaryName is
// empty until the user (or the default suggestion) picks one.
type MergeSelection struct {
	SelectedEntityIDs []int64 `json:"selected_entity_ids"`
	PrimaryName       string  `json:"primary_name,omitempty"`
}

// MergePlan is the deterministic output of plan building: everything
// the merge submission needs, plus display aggregates for the review
// step. It lives only for the duration of the dialog.
type MergePlan struct {
	PrimaryEntityID   int64    `json:"primary_entity_id"`
	AbsorbedEntityIDs []int64  `json:"absorbed_entity_ids"`
	CanonicalName     string   `json:"canonical_name"`
	Aliases           []string `json:"aliases"` // deduplicated, excludes CanonicalName

	// TotalMentionCount is a preview aggregate only. The backend
	// recomputes the true count from raw mention records after the
	// merge; this client-side sum must not be treated as authoritative.
	TotalMentionCount int `json:"total_mention_count"`

	// ConflictCount and HasCriticalConflicts degrade to 0/false while
	// the preview analysis is still pending. That state means "no
	// conflicts known yet", not "confirmed clean".
	ConflictCount        int  `json:"conflict_count"`
	HasCriticalConflicts bool `json:"has_critical_conflicts"`
}
