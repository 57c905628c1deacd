package citation

import "strings"

// AuthorID source prefixes used in compound author-ID tokens.
const (
	GSPrefix    = "gs:"
	S2Prefix    = "s2:"
	OrcidPrefix = "orcid:"
)

// ParsedAuthorID holds the per-source parts of a compound author-ID token.
type ParsedAuthorID struct {
	GS    string // Google Scholar author ID
	S2    string // Semantic Scholar author ID
	Orcid string // ORCID iD
}

// ParseAuthorID splits a compound token like "gs:XYZ|s2:123" into its
// per-source parts. A bare token with no prefix is treated as a Semantic
// Scholar ID, matching how structured sources attach raw IDs.
func ParseAuthorID(id string) ParsedAuthorID {
	var p ParsedAuthorID
	for _, tok := range strings.Split(id, "|") {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "":
		case strings.HasPrefix(tok, GSPrefix):
			p.GS = strings.TrimPrefix(tok, GSPrefix)
		case strings.HasPrefix(tok, S2Prefix):
			p.S2 = strings.TrimPrefix(tok, S2Prefix)
		case strings.HasPrefix(tok, OrcidPrefix):
			p.Orcid = strings.TrimPrefix(tok, OrcidPrefix)
		default:
			if p.S2 == "" {
				p.S2 = tok
			}
		}
	}
	return p
}

// CombineAuthorID builds a compound token from per-source IDs, keeping
// the gs part first. Empty parts are omitted; an all-empty input yields "".
func CombineAuthorID(gsID, s2ID string) string {
	switch {
	case gsID != "" && s2ID != "":
		return GSPrefix + gsID + "|" + S2Prefix + s2ID
	case gsID != "":
		return GSPrefix + gsID
	case s2ID != "":
		return S2Prefix + s2ID
	default:
		return ""
	}
}
