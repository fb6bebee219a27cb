// Package types defines the shared domain records for the narrative
// entity-merge workflow. These are plain data carriers; all decision
// logic lives in internal/merge and all transport in internal/backend.
package types

// EntityType classifies a narrative entity.
type EntityType string

// Entity type constants matching the backend's entity taxonomy.
const (
	EntityCharacter    EntityType = "character"
	EntityLocation     EntityType = "location"
	EntityOrganization EntityType = "organization"
	EntityObject       EntityType = "object"
	EntityEvent        EntityType = "event"
	EntityConcept      EntityType = "concept"
)

// Entity is a narrative entity as served by the project entity list.
// It is read-only during merge planning: only the backend mutates
// entities, and only after a merge has been confirmed.
type Entity struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"` // canonical name
	Aliases      []string   `json:"aliases,omitempty"`
	Type         EntityType `json:"type"`
	MentionCount int        `json:"mention_count"`
}

// CandidateName is one (entity, name) pair gathered across a merge
// selection. It is derived, never persisted. Multiple candidates may
// share the same Value (identical aliases picked up by different
// entities); provenance is kept so the conflict view can attribute
// each name to its source. Deduplication by value happens only when
// the final alias list is assembled.
type CandidateName struct {
	Value            string     `json:"value"`
	SourceEntityID   int64      `json:"source_entity_id"`
	SourceEntityType EntityType `json:"source_entity_type"`
	SourceEntityName string     `json:"source_entity_name"`
	IsCanonical      bool       `json:"is_canonical"`
}
