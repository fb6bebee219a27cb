package types

// Recommendation is the similarity service's verdict for a pair of
// entities (or for the selection as a whole).
type Recommendation string

// Recommendation labels returned by the similarity and preview-merge
// services. An empty Recommendation means the service sent none and the
// numeric score decides.
const (
	RecommendMerge        Recommendation = "merge"
	RecommendReview       Recommendation = "review"
	RecommendKeepSeparate Recommendation = "keep_separate"
)

// NameSimilarity holds the lexical similarity metrics for a pair of
// canonical names. All values are in [0, 1].
type NameSimilarity struct {
	Levenshtein float64 `json:"levenshtein"`
	JaroWinkler float64 `json:"jaro_winkler"`
	Containment float64 `json:"containment"`
}

// SimilarityPair is the similarity verdict for one unordered pair of
// selected entities. The service returns C(n,2) pairs for n entities.
// Read-only once received.
type SimilarityPair struct {
	EntityAID          int64          `json:"entity_a_id"`
	EntityBID          int64          `json:"entity_b_id"`
	NameSimilarity     NameSimilarity `json:"name_similarity"`
	SemanticSimilarity float64        `json:"semantic_similarity"`
	CombinedScore      float64        `json:"combined_score"`
	Recommendation     Recommendation `json:"recommendation,omitempty"`
}

// SimilarityBand is the display classification of a pair.
type SimilarityBand string

// Display bands for similarity pairs.
const (
	BandCompatible SimilarityBand = "compatible"
	BandReview     SimilarityBand = "review"
	BandDifferent  SimilarityBand = "different"
)
