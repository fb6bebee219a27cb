package types

// ConflictSeverity ranks how serious an attribute conflict is.
type ConflictSeverity string

// Severity levels, ordered high > medium > low.
const (
	SeverityHigh   ConflictSeverity = "high"
	SeverityMedium ConflictSeverity = "medium"
	SeverityLow    ConflictSeverity = "low"
)

// ConflictingValue is one contradictory value for an attribute, tagged
// with the entity that contributed it.
type ConflictingValue struct {
	Value            string  `json:"value"`
	SourceEntityID   int64   `json:"source_entity_id"`
	SourceEntityName string  `json:"source_entity_name"`
	Confidence       float64 `json:"confidence"`
}

// AttributeConflict is a contradiction between the selected entities'
// attributes, as detected by the preview-merge service. Read-only.
type AttributeConflict struct {
	Category          string             `json:"category"`
	AttributeName     string             `json:"attribute_name"`
	Severity          ConflictSeverity   `json:"severity"`
	ConflictingValues []ConflictingValue `json:"conflicting_values"`
}
