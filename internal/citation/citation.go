// Package citation defines the core domain types for citation impact analysis.
package citation

// InstitutionCategory classifies an author's affiliation.
type InstitutionCategory string

// Institution categories.
const (
	InstUniversity InstitutionCategory = "University"
	InstIndustry   InstitutionCategory = "Industry"
	InstGovernment InstitutionCategory = "Government"
	InstOther      InstitutionCategory = "Other"
)

// HIndexSource identifies which upstream produced a stored h-index.
// Different sources disagree; we track the provenance so a later merge
// can decide whether to overwrite.
type HIndexSource string

// Known h-index sources, roughly ordered by accuracy for self-reported
// profiles (Google Scholar profiles are maintained by the authors
// themselves and are the most trusted).
const (
	SourceNone            HIndexSource = ""
	SourceSemanticScholar HIndexSource = "semantic_scholar"
	SourceGoogleScholar   HIndexSource = "google_scholar"
	SourceOpenAlex        HIndexSource = "openalex"
	SourceORCID           HIndexSource = "orcid"
	SourceSerpAPI         HIndexSource = "serpapi"
)

// Author is the canonical merged profile for a citing author.
type Author struct {
	Name            string              `json:"name"`
	HIndex          int                 `json:"h_index"`
	Affiliation     string              `json:"affiliation"`
	InstitutionType InstitutionCategory `json:"institution_type"`
	WorksCount      int                 `json:"works_count"`
	CitationCount   int                 `json:"citation_count"`

	// Profile identifiers across systems (each optional).
	SemanticScholarID string `json:"semantic_scholar_id,omitempty"`
	GoogleScholarID   string `json:"google_scholar_id,omitempty"`
	OrcidID           string `json:"orcid_id,omitempty"`
	Homepage          string `json:"homepage,omitempty"`

	HIndexSource HIndexSource `json:"h_index_source,omitempty"`
}

// ProfileURL returns the best available profile link for the author.
// Google Scholar is preferred because its profiles are self-maintained.
func (a Author) ProfileURL() string {
	switch {
	case a.GoogleScholarID != "":
		return "https://scholar.google.com/citations?user=" + a.GoogleScholarID
	case a.SemanticScholarID != "":
		return "https://www.semanticscholar.org/author/" + a.SemanticScholarID
	case a.OrcidID != "":
		return "https://orcid.org/" + a.OrcidID
	default:
		return a.Homepage
	}
}

// AuthorInfo is the lightweight identity reference attached to a citation
// at ingestion time, before full profile resolution.
//
// AuthorID is either empty, a single "<source>:<id>" token, or a
// "|"-joined set of such tokens with at most one token per source,
// e.g. "gs:waVL0PgAAAAJ|s2:47504637".
type AuthorInfo struct {
	Name     string `json:"name"`
	AuthorID string `json:"author_id,omitempty"`
}

// Paper is a resolved paper record from any source.
type Paper struct {
	PaperID                  string   `json:"paper_id"`
	Title                    string   `json:"title"`
	Year                     int      `json:"year"`
	Venue                    string   `json:"venue"`
	CitationCount            int      `json:"citation_count"`
	InfluentialCitationCount int      `json:"influential_citation_count"`
	DOI                      string   `json:"doi,omitempty"`
	URL                      string   `json:"url,omitempty"`
	Authors                  []AuthorInfo `json:"authors,omitempty"`

	// CitesID is the Google Scholar citation cluster identifier. Once
	// known it allows fetching the citing papers directly, with no
	// title search and therefore no CAPTCHA risk.
	CitesID string `json:"cites_id,omitempty"`
}

// Citation is one citing-paper record attached to the paper under analysis.
type Citation struct {
	CitingPaperTitle string   `json:"citing_paper_title"`
	Venue            string   `json:"venue"`
	Year             int      `json:"year"`
	IsInfluential    bool     `json:"is_influential"`
	Contexts         []string `json:"contexts,omitempty"`
	Intents          []string `json:"intents,omitempty"`

	// CitingAuthors is the legacy name-only list; AuthorsWithIDs is
	// preferred when available. AuthorsWithIDs is order-consistent with
	// CitingAuthors but need not be 1:1 (only the first few authors are
	// generally resolved).
	CitingAuthors  []string     `json:"citing_authors"`
	AuthorsWithIDs []AuthorInfo `json:"authors_with_ids,omitempty"`

	PaperID string `json:"paper_id,omitempty"`
	DOI     string `json:"doi,omitempty"`
	URL     string `json:"url,omitempty"`

	// Metrics of the citing paper itself, not of the paper being analyzed.
	CitationCount            int `json:"citation_count"`
	InfluentialCitationCount int `json:"influential_citation_count"`
}

// Complete reports whether a citation already carries the structured
// fields the enhancement pass would fetch. Complete citations are left
// untouched so no enhancement calls are wasted.
func (c Citation) Complete() bool {
	hasStructured := c.PaperID != "" && len(c.AuthorsWithIDs) > 0
	hasVenue := c.Venue != "" && c.Venue != "Unknown"
	return hasStructured && hasVenue && c.Year > 0
}

// Venue is venue metadata from a source, with a rank tier derived from
// its h-index.
type Venue struct {
	Name         string `json:"name"`
	HIndex       int    `json:"h_index"`
	Type         string `json:"type"`
	WorksCount   int    `json:"works_count"`
	CitedByCount int    `json:"cited_by_count"`
	RankTier     string `json:"rank_tier"`
}

// Publication is a paper in an author's publication list, used for
// identity disambiguation by publication overlap.
type Publication struct {
	Title         string `json:"title"`
	Year          int    `json:"year,omitempty"`
	Venue         string `json:"venue,omitempty"`
	CitationCount int    `json:"citation_count,omitempty"`
	PaperID       string `json:"paper_id,omitempty"`
	CitesID       string `json:"cites_id,omitempty"`
}
