// Package match provides fuzzy equality for paper titles and author names.
package match

import (
	"strings"

	"github.com/matsen/scholarimpact/internal/normalize"
)

const (
	// DefaultTitleThreshold is the sequence-ratio cutoff for treating two
	// titles as the same paper.
	DefaultTitleThreshold = 0.85

	// NameThreshold is the cutoff callers use when deciding "same person"
	// from a fuzzy name comparison during co-author disambiguation.
	NameThreshold = 0.7

	// WeakScoreThreshold flags low-confidence search result matches.
	// Weak candidates are still returned; the flag is advisory.
	WeakScoreThreshold = 0.5

	// substringBonus is added to the word-overlap score when one
	// normalized title contains the other.
	substringBonus = 0.3
)

// Titles reports whether two titles refer to the same paper, using the
// default threshold.
func Titles(a, b string) bool {
	return TitlesThreshold(a, b, DefaultTitleThreshold)
}

// TitlesThreshold is Titles with an explicit ratio threshold. Titles are
// normalized first; an exact match after normalization short-circuits.
func TitlesThreshold(a, b string, threshold float64) bool {
	na, nb := normalize.Title(a), normalize.Title(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return Ratio(na, nb) >= threshold
}

// NameSimilarity returns the sequence similarity of two raw author names
// in [0,1], compared lowercase. Callers typically test against
// NameThreshold.
func NameSimilarity(a, b string) float64 {
	return Ratio(strings.ToLower(a), strings.ToLower(b))
}

// SearchScore ranks a search result title against the queried title by
// token overlap (Jaccard over normalized token sets), plus a bonus when
// one normalized title is a substring of the other. Scores below
// WeakScoreThreshold indicate a weak match.
func SearchScore(query, candidate string) float64 {
	nq, nc := normalize.Title(query), normalize.Title(candidate)
	if nq == "" || nc == "" {
		return 0
	}

	qset := tokenSet(nq)
	cset := tokenSet(nc)
	inter := 0
	for tok := range qset {
		if cset[tok] {
			inter++
		}
	}
	union := len(qset) + len(cset) - inter

	score := 0.0
	if union > 0 {
		score = float64(inter) / float64(union)
	}
	if strings.Contains(nq, nc) || strings.Contains(nc, nq) {
		score += substringBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
