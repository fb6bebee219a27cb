package merge

import (
	"strings"
	"unicode"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// Local name-similarity computation, mirroring the metric the backend
// applies to canonical names. It is the last rung of the degradation
// ladder: when both the preview-merge and similarity endpoints fail,
// the wizard still gets pairwise scores to show, flagged as locally
// computed. Semantic similarity needs the backend's embeddings and is
// left at zero here.

// Combined-score weights, matching the backend's lexical blend.
const (
	levenshteinWeight = 0.5
	jaroWinklerWeight = 0.3
	containmentWeight = 0.2
)

// LocalPairs computes one SimilarityPair per unordered pair of
// entities, C(n,2) pairs in total, comparing canonical names only.
func LocalPairs(entities []types.Entity) []types.SimilarityPair {
	var pairs []types.SimilarityPair
	for i := range entities {
		for j := i + 1; j < len(entities); j++ {
			pairs = append(pairs, ComparePair(entities[i], entities[j]))
		}
	}
	return pairs
}

// ComparePair scores two entities by canonical-name similarity and
// attaches the recommendation the backend would derive from the same
// score.
func ComparePair(a, b types.Entity) types.SimilarityPair {
	sim := CompareNames(a.Name, b.Name)
	combined := sim.Levenshtein*levenshteinWeight +
		sim.JaroWinkler*jaroWinklerWeight +
		sim.Containment*containmentWeight

	var rec types.Recommendation
	switch {
	case combined >= compatibleThreshold:
		rec = types.RecommendMerge
	case combined >= reviewThreshold:
		rec = types.RecommendReview
	default:
		rec = types.RecommendKeepSeparate
	}

	return types.SimilarityPair{
		EntityAID:      a.ID,
		EntityBID:      b.ID,
		NameSimilarity: sim,
		CombinedScore:  combined,
		Recommendation: rec,
	}
}

// CompareNames computes the lexical metrics for two name strings. Both
// are normalized first (lower-cased, Spanish diacritics stripped) so
// "José" and "jose" compare as identical.
func CompareNames(a, b string) types.NameSimilarity {
	na := normalizeName(a)
	nb := normalizeName(b)

	return types.NameSimilarity{
		Levenshtein: levenshteinSimilarity(na, nb),
		JaroWinkler: jaroWinkler(na, nb),
		Containment: containment(na, nb),
	}
}

// foldAccents maps the accented Latin runes common in Spanish text to
// their base letters.
var foldAccents = map[rune]rune{
	'á': 'a', 'é': 'e', 'í': 'i', 'ó': 'o', 'ú': 'u',
	'ü': 'u', 'ñ': 'n', 'à': 'a', 'è': 'e', 'ì': 'i',
	'ò': 'o', 'ù': 'u', 'ç': 'c',
}

func normalizeName(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if folded, ok := foldAccents[r]; ok {
			r = folded
		}
		if unicode.IsSpace(r) {
			r = ' '
		}
		sb.WriteRune(r)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// levenshteinSimilarity is the edit distance normalized to [0, 1],
// where 1 means identical.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ar := []rune(a)
	br := []rune(b)
	longest := len(ar)
	if len(br) > longest {
		longest = len(br)
	}
	d := float64(levenshteinDistance(ar, br)) / float64(longest)
	if d > 1 {
		d = 1
	}
	return 1 - d
}

func levenshteinDistance(ar, br []rune) int {
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min3(ins, del, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// jaroWinkler computes Jaro-Winkler similarity with the standard 0.1
// prefix scale capped at four characters.
func jaroWinkler(a, b string) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}

	ar := []rune(a)
	br := []rune(b)
	prefix := 0
	for prefix < len(ar) && prefix < len(br) && prefix < 4 && ar[prefix] == br[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 && len(br) == 0 {
		return 1
	}
	if len(ar) == 0 || len(br) == 0 {
		return 0
	}

	window := len(ar)
	if len(br) > window {
		window = len(br)
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(ar))
	bMatched := make([]bool, len(br))
	matches := 0
	for i := range ar {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(br) {
			hi = len(br)
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || ar[i] != br[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range ar {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if ar[i] != br[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(ar)) + m/float64(len(br)) + (m-float64(transpositions)/2)/m) / 3
}

// containment rewards one name containing the other, scaled by the
// length ratio so "Juan" inside "Juan Pérez" scores 0.4.
func containment(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter) / float64(longer)
}
