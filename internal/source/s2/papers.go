package s2

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/source"
)

type s2Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type s2Paper struct {
	PaperID                  string     `json:"paperId"`
	Title                    string     `json:"title"`
	Year                     int        `json:"year"`
	Venue                    string     `json:"venue"`
	CitationCount            int        `json:"citationCount"`
	InfluentialCitationCount int        `json:"influentialCitationCount"`
	URL                      string     `json:"url"`
	ExternalIDs              struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	Authors []s2Author `json:"authors"`
}

func (p s2Paper) toPaper() *citation.Paper {
	out := &citation.Paper{
		PaperID:                  p.PaperID,
		Title:                    p.Title,
		Year:                     p.Year,
		Venue:                    p.Venue,
		CitationCount:            p.CitationCount,
		InfluentialCitationCount: p.InfluentialCitationCount,
		DOI:                      p.ExternalIDs.DOI,
		URL:                      p.URL,
	}
	for _, a := range p.Authors {
		info := citation.AuthorInfo{Name: a.Name}
		if a.AuthorID != "" {
			info.AuthorID = citation.S2Prefix + a.AuthorID
		}
		out.Authors = append(out.Authors, info)
	}
	return out
}

// SearchPaper resolves a title to the best-scoring search hit, or
// (nil, nil) when nothing was found. Weak matches are returned anyway;
// the caller decides whether a low-citation hit justifies a fallback.
func (c *Client) SearchPaper(ctx context.Context, title string) (*citation.Paper, error) {
	params := url.Values{}
	params.Set("query", title)
	params.Set("fields", paperFields)
	params.Set("limit", "10")

	var resp struct {
		Data []s2Paper `json:"data"`
	}
	err := c.getS2(ctx, "/paper/search", params, &resp)
	if source.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	best, bestScore := resp.Data[0], -1.0
	for _, cand := range resp.Data {
		if s := match.SearchScore(title, cand.Title); s > bestScore {
			best, bestScore = cand, s
		}
	}
	if bestScore < match.WeakScoreThreshold {
		c.log.WithField("title", title).Debug("weak paper search match")
	}
	return best.toPaper(), nil
}

// GetCitations pages through the citing papers of paperID, up to limit.
func (c *Client) GetCitations(ctx context.Context, paperID string, limit int) ([]citation.Citation, error) {
	var out []citation.Citation
	offset := 0
	for len(out) < limit {
		pageSize := citationPageSize
		if remaining := limit - len(out); remaining < pageSize {
			pageSize = remaining
		}
		params := url.Values{}
		params.Set("fields", citationFields)
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(pageSize))

		var resp struct {
			Data []struct {
				IsInfluential bool     `json:"isInfluential"`
				Contexts      []string `json:"contexts"`
				Intents       []string `json:"intents"`
				CitingPaper   s2Paper  `json:"citingPaper"`
			} `json:"data"`
			Next *int `json:"next"`
		}
		err := c.getS2(ctx, "/paper/"+url.PathEscape(paperID)+"/citations", params, &resp)
		if source.IsNotFound(err) {
			return out, nil
		}
		if err != nil {
			return out, err
		}

		for _, d := range resp.Data {
			out = append(out, toCitation(d.CitingPaper, d.IsInfluential, d.Contexts, d.Intents))
		}
		if resp.Next == nil || len(resp.Data) == 0 {
			break
		}
		offset = *resp.Next
	}
	return out, nil
}

func toCitation(p s2Paper, influential bool, contexts, intents []string) citation.Citation {
	venue := p.Venue
	if venue == "" {
		venue = "Unknown"
	}
	c := citation.Citation{
		CitingPaperTitle:         p.Title,
		Venue:                    venue,
		Year:                     p.Year,
		IsInfluential:            influential,
		Contexts:                 contexts,
		Intents:                  intents,
		PaperID:                  p.PaperID,
		DOI:                      p.ExternalIDs.DOI,
		URL:                      p.URL,
		CitationCount:            p.CitationCount,
		InfluentialCitationCount: p.InfluentialCitationCount,
	}
	for i, a := range p.Authors {
		c.CitingAuthors = append(c.CitingAuthors, a.Name)
		if i < 3 && a.AuthorID != "" {
			c.AuthorsWithIDs = append(c.AuthorsWithIDs, citation.AuthorInfo{
				Name:     a.Name,
				AuthorID: citation.S2Prefix + a.AuthorID,
			})
		}
	}
	return c
}

// GetPaper fetches full details for a known paper ID, used when
// enhancing a citation found elsewhere by title.
func (c *Client) GetPaper(ctx context.Context, paperID string) (*citation.Paper, error) {
	params := url.Values{}
	params.Set("fields", paperFields)

	var p s2Paper
	err := c.getS2(ctx, "/paper/"+url.PathEscape(paperID), params, &p)
	if source.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.toPaper(), nil
}

// GetAuthorPublications lists an author's papers, newest first as the
// upstream returns them.
func (c *Client) GetAuthorPublications(ctx context.Context, authorID string, limit int) ([]citation.Publication, error) {
	params := url.Values{}
	params.Set("fields", "title,year,venue,citationCount,paperId")
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Data []s2Paper `json:"data"`
	}
	err := c.getS2(ctx, "/author/"+url.PathEscape(authorID)+"/papers", params, &resp)
	if source.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("author publications: %w", err)
	}

	pubs := make([]citation.Publication, 0, len(resp.Data))
	for _, p := range resp.Data {
		pubs = append(pubs, citation.Publication{
			Title:         p.Title,
			Year:          p.Year,
			Venue:         p.Venue,
			CitationCount: p.CitationCount,
			PaperID:       p.PaperID,
		})
	}
	return pubs, nil
}
