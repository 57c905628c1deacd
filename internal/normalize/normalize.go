// Package normalize reduces names and titles to canonical comparison keys.
//
// Keys produced here are persisted in the identity index, so every
// function must be deterministic and stable across runs: same input,
// same key, always.
package normalize

import (
	"strings"
	"unicode"
)

// titleStopWords are removed from titles before key derivation. The set
// is fixed; changing it would orphan persisted index keys.
var titleStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true,
	"in": true, "on": true, "to": true, "and": true, "with": true,
}

const (
	// maxKeyTokens is how many significant title tokens survive into a key.
	maxKeyTokens = 10
	// maxKeyLen caps the rejoined title key when used for indexing.
	maxKeyLen = 50
)

// Name normalizes an author name for comparison and cache lookup:
// lowercase, strip everything but word characters, whitespace, and
// hyphens, collapse whitespace.
func Name(s string) string {
	return collapse(strip(strings.ToLower(s), true))
}

// Title normalizes a paper title for comparison: lowercase, strip all
// punctuation (hyphens included), collapse whitespace.
func Title(s string) string {
	return collapse(strip(strings.ToLower(s), false))
}

// TitleKey derives the index key form of a title: normalize, drop stop
// words, keep the first 10 remaining tokens, cap at 50 characters.
func TitleKey(s string) string {
	fields := strings.Fields(Title(s))
	kept := make([]string, 0, maxKeyTokens)
	for _, f := range fields {
		if titleStopWords[f] {
			continue
		}
		kept = append(kept, f)
		if len(kept) == maxKeyTokens {
			break
		}
	}
	key := strings.Join(kept, " ")
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}
	return key
}

// LastName returns the final whitespace-delimited token of a raw name.
// Cross-source matching of abbreviated names ("C. Tantithamthavorn" vs.
// "Chakkrit Tantithamthavorn") compares last-name tokens case-insensitively.
func LastName(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// strip removes all runes except letters, digits, underscore, and
// whitespace. keepHyphen additionally preserves hyphens (used for names,
// not titles).
func strip(s string, keepHyphen bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '-' && keepHyphen:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapse joins interior whitespace runs to single spaces and trims.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
