package s2

import (
	"context"
	"net/url"
	"strings"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/normalize"
	"github.com/matsen/scholarimpact/internal/source"
)

type s2AuthorDetail struct {
	AuthorID     string   `json:"authorId"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Affiliations []string `json:"affiliations"`
	PaperCount   int      `json:"paperCount"`
	CitationCount int     `json:"citationCount"`
	HIndex       int      `json:"hIndex"`
}

func (a s2AuthorDetail) toAuthor() *citation.Author {
	out := &citation.Author{
		Name:              a.Name,
		HIndex:            a.HIndex,
		WorksCount:        a.PaperCount,
		CitationCount:     a.CitationCount,
		SemanticScholarID: a.AuthorID,
		Homepage:          a.URL,
		HIndexSource:      citation.SourceSemanticScholar,
	}
	if len(a.Affiliations) > 0 {
		out.Affiliation = a.Affiliations[0]
	}
	return out
}

type openAlexAuthor struct {
	DisplayName  string `json:"display_name"`
	WorksCount   int    `json:"works_count"`
	CitedByCount int    `json:"cited_by_count"`
	SummaryStats struct {
		HIndex int `json:"h_index"`
	} `json:"summary_stats"`
	LastKnownInstitutions []struct {
		DisplayName string `json:"display_name"`
		Type        string `json:"type"`
	} `json:"last_known_institutions"`
	IDs struct {
		Orcid string `json:"orcid"`
	} `json:"ids"`
}

// GetAuthor searches by plain name, preferring the Semantic Scholar hit
// and backfilling affiliation and counts from OpenAlex when missing.
func (c *Client) GetAuthor(ctx context.Context, name string) (*citation.Author, error) {
	params := url.Values{}
	params.Set("query", name)
	params.Set("fields", authorFields)
	params.Set("limit", "5")

	var resp struct {
		Data []s2AuthorDetail `json:"data"`
	}
	err := c.getS2(ctx, "/author/search", params, &resp)
	if err != nil && !source.IsNotFound(err) {
		return nil, err
	}

	var author *citation.Author
	for _, cand := range resp.Data {
		if strings.EqualFold(normalize.LastName(cand.Name), normalize.LastName(name)) ||
			match.NameSimilarity(cand.Name, name) >= match.NameThreshold {
			author = cand.toAuthor()
			break
		}
	}
	if author == nil {
		// No structured hit; OpenAlex alone can still identify the author.
		return c.openAlexAuthor(ctx, name)
	}
	c.enrichFromOpenAlex(ctx, author)
	return author, nil
}

// GetAuthorByID fetches a Semantic Scholar author profile directly.
func (c *Client) GetAuthorByID(ctx context.Context, id string) (*citation.Author, error) {
	params := url.Values{}
	params.Set("fields", authorFields)

	var detail s2AuthorDetail
	err := c.getS2(ctx, "/author/"+url.PathEscape(id), params, &detail)
	if source.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	author := detail.toAuthor()
	c.enrichFromOpenAlex(ctx, author)
	return author, nil
}

// GetAuthorForPaper resolves name against the co-author list of the
// given paper: last-name match first, then fuzzy full-name similarity.
func (c *Client) GetAuthorForPaper(ctx context.Context, name, paperTitle string) (*citation.Author, error) {
	paper, err := c.SearchPaper(ctx, paperTitle)
	if err != nil || paper == nil {
		return nil, err
	}
	if !match.Titles(paper.Title, paperTitle) {
		return nil, nil
	}

	wantLast := normalize.LastName(name)
	var candidate *citation.AuthorInfo
	for i := range paper.Authors {
		co := &paper.Authors[i]
		if strings.EqualFold(normalize.LastName(co.Name), wantLast) {
			candidate = co
			break
		}
	}
	if candidate == nil {
		for i := range paper.Authors {
			co := &paper.Authors[i]
			if match.NameSimilarity(co.Name, name) >= match.NameThreshold {
				candidate = co
				break
			}
		}
	}
	if candidate == nil {
		return nil, nil
	}
	if id := citation.ParseAuthorID(candidate.AuthorID).S2; id != "" {
		return c.GetAuthorByID(ctx, id)
	}
	return c.GetAuthor(ctx, candidate.Name)
}

// enrichFromOpenAlex fills affiliation and count gaps in a structured
// profile. Failures are logged and ignored; enrichment is best effort.
func (c *Client) enrichFromOpenAlex(ctx context.Context, author *citation.Author) {
	oa, err := c.fetchOpenAlexAuthor(ctx, author.Name)
	if err != nil || oa == nil {
		if err != nil {
			c.log.WithError(err).Debug("openalex enrichment skipped")
		}
		return
	}
	if author.Affiliation == "" && len(oa.LastKnownInstitutions) > 0 {
		author.Affiliation = oa.LastKnownInstitutions[0].DisplayName
	}
	if author.WorksCount == 0 {
		author.WorksCount = oa.WorksCount
	}
	if author.CitationCount == 0 {
		author.CitationCount = oa.CitedByCount
	}
	if author.OrcidID == "" && oa.IDs.Orcid != "" {
		author.OrcidID = strings.TrimPrefix(oa.IDs.Orcid, "https://orcid.org/")
	}
	if oa.SummaryStats.HIndex > author.HIndex {
		author.HIndex = oa.SummaryStats.HIndex
		author.HIndexSource = citation.SourceOpenAlex
	}
}

// openAlexAuthor builds a profile from OpenAlex alone.
func (c *Client) openAlexAuthor(ctx context.Context, name string) (*citation.Author, error) {
	oa, err := c.fetchOpenAlexAuthor(ctx, name)
	if err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if oa == nil {
		return nil, nil
	}
	author := &citation.Author{
		Name:          oa.DisplayName,
		HIndex:        oa.SummaryStats.HIndex,
		WorksCount:    oa.WorksCount,
		CitationCount: oa.CitedByCount,
		HIndexSource:  citation.SourceOpenAlex,
	}
	if len(oa.LastKnownInstitutions) > 0 {
		author.Affiliation = oa.LastKnownInstitutions[0].DisplayName
	}
	if oa.IDs.Orcid != "" {
		author.OrcidID = strings.TrimPrefix(oa.IDs.Orcid, "https://orcid.org/")
	}
	return author, nil
}

func (c *Client) fetchOpenAlexAuthor(ctx context.Context, name string) (*openAlexAuthor, error) {
	params := url.Values{}
	params.Set("search", name)
	params.Set("per-page", "5")

	var resp struct {
		Results []openAlexAuthor `json:"results"`
	}
	if err := c.getOpenAlex(ctx, "/authors", params, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Results {
		if strings.EqualFold(normalize.LastName(resp.Results[i].DisplayName), normalize.LastName(name)) {
			return &resp.Results[i], nil
		}
	}
	return nil, nil
}

// LookupVenue fetches venue metrics from OpenAlex and derives a rank
// tier from the venue's h-index.
func (c *Client) LookupVenue(ctx context.Context, name string) (*citation.Venue, error) {
	params := url.Values{}
	params.Set("search", name)
	params.Set("per-page", "1")

	var resp struct {
		Results []struct {
			DisplayName  string `json:"display_name"`
			Type         string `json:"type"`
			WorksCount   int    `json:"works_count"`
			CitedByCount int    `json:"cited_by_count"`
			SummaryStats struct {
				HIndex int `json:"h_index"`
			} `json:"summary_stats"`
		} `json:"results"`
	}
	if err := c.getOpenAlex(ctx, "/sources", params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	r := resp.Results[0]
	return &citation.Venue{
		Name:         r.DisplayName,
		HIndex:       r.SummaryStats.HIndex,
		Type:         r.Type,
		WorksCount:   r.WorksCount,
		CitedByCount: r.CitedByCount,
		RankTier:     venueTier(r.SummaryStats.HIndex),
	}, nil
}

// venueTier buckets a venue h-index into a display tier.
func venueTier(hIndex int) string {
	switch {
	case hIndex >= 150:
		return "A*"
	case hIndex >= 100:
		return "A"
	case hIndex >= 50:
		return "B"
	case hIndex > 0:
		return "C"
	default:
		return "Unranked"
	}
}
