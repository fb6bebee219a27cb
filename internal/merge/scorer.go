package merge

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// NameScorer scores how much a string looks like a proper name. Higher
// is better. The scorer is a narrow strategy interface so a per-locale
// or model-backed implementation can replace the heuristic one without
// touching the planner.
type NameScorer interface {
	Score(name string) int
}

// SpanishNameScorer is a heuristic scorer for Spanish-language text,
// where common nouns are lower-case and descriptive phrases ("la mujer
// morena") tend to open with an article. It is approximate on purpose:
// its output is a default suggestion the user can always override, so
// ambiguous or low-confidence scores are surfaced rather than rejected.
type SpanishNameScorer struct{}

// Definite and indefinite articles. A name opening with one of these is
// almost certainly a descriptive phrase, not a proper name.
var spanishArticles = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {},
	"un": {}, "una": {}, "unos": {}, "unas": {},
}

// Descriptive adjectives (colors, ages, builds) that mark a string as a
// description rather than a name. Matched as case-insensitive
// substrings; the occasional false positive on a real surname is an
// accepted cost of the heuristic.
var descriptiveWords = []string{
	"morena", "moreno", "rubia", "rubio",
	"vieja", "viejo", "joven", "anciana", "anciano",
	"alta", "alto", "baja", "bajo",
	"gorda", "gordo", "delgada", "delgado",
	"roja", "rojo", "verde", "azul",
	"negra", "negro", "blanca", "blanco",
}

// Score applies the fixed heuristic weights:
//
//	+20  three or fewer words
//	+10  exactly one or two words (stacks with the previous bonus)
//	+30  first character is an upper-case letter
//	-50  first word is a Spanish article
//	-30  contains a descriptive adjective (applied once)
//	+40  exactly two words, both starting upper-case (name + surname)
func (SpanishNameScorer) Score(name string) int {
	score := 0
	words := strings.Fields(name)

	if len(words) <= 3 {
		score += 20
	}
	if len(words) == 1 || len(words) == 2 {
		score += 10
	}

	if first, _ := utf8.DecodeRuneInString(name); unicode.IsLetter(first) && unicode.IsUpper(first) {
		score += 30
	}

	if len(words) > 0 {
		if _, ok := spanishArticles[strings.ToLower(words[0])]; ok {
			score -= 50
		}
	}

	lower := strings.ToLower(name)
	for _, w := range descriptiveWords {
		if strings.Contains(lower, w) {
			score -= 30
			break
		}
	}

	if len(words) == 2 && startsUpper(words[0]) && startsUpper(words[1]) {
		score += 40
	}

	return score
}

func startsUpper(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsLetter(r) && unicode.IsUpper(r)
}

// SelectDefault picks the highest-scoring canonical candidate as the
// proposed primary name. Aliases are never proposed. Ties keep the
// collector's pre-existing order (longer names first), so a strict
// greater-than comparison is enough. Returns nil when the pool holds no
// canonical candidate; the caller must not auto-advance past the naming
// step in that case.
func SelectDefault(candidates []types.CandidateName, scorer NameScorer) *types.CandidateName {
	var best *types.CandidateName
	bestScore := 0
	for i := range candidates {
		if !candidates[i].IsCanonical {
			continue
		}
		s := scorer.Score(candidates[i].Value)
		if best == nil || s > bestScore {
			c := candidates[i]
			best = &c
			bestScore = s
		}
	}
	return best
}
