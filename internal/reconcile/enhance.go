package reconcile

import (
	"context"
	"strings"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/identity"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/normalize"
)

// influentialCountThreshold marks a citing paper as influential when
// the structured source's flag is absent but the paper itself is
// heavily influential-cited.
const influentialCountThreshold = 5

// maxMergedAuthors caps a citation's merged author-ID list.
const maxMergedAuthors = 5

// enhanceCitations fills structured fields on citations that lack them,
// in place. A citation that is already complete costs nothing; each
// incomplete one tries the primary source by title, then the metadata
// fallback. Failures skip the step and keep whatever the citation had.
func (r *Reconciler) enhanceCitations(ctx context.Context, cites []citation.Citation) {
	for i := range cites {
		if ctx.Err() != nil {
			return
		}
		c := &cites[i]
		if c.Complete() {
			continue
		}
		if r.primary != nil {
			if r.enhanceFromPrimary(ctx, c) && c.Complete() {
				continue
			}
		}
		if r.enhancer != nil && (c.Venue == "" || c.Venue == "Unknown" || c.Year == 0 || c.DOI == "") {
			r.enhanceFromFallback(ctx, c)
		}
	}
}

// enhanceFromPrimary looks the citing paper up by title and merges in
// structured IDs, preserving any scraped author IDs already attached.
func (r *Reconciler) enhanceFromPrimary(ctx context.Context, c *citation.Citation) bool {
	paper, err := r.primary.SearchPaper(ctx, c.CitingPaperTitle)
	if err != nil || paper == nil {
		if err != nil {
			r.log.WithError(err).Debug("primary enhancement failed")
		}
		return false
	}
	if !match.Titles(paper.Title, c.CitingPaperTitle) {
		return false
	}

	if c.PaperID == "" {
		c.PaperID = paper.PaperID
	}
	if c.DOI == "" {
		c.DOI = paper.DOI
	}
	if c.URL == "" {
		c.URL = paper.URL
	}
	if c.Venue == "" || c.Venue == "Unknown" {
		if paper.Venue != "" {
			c.Venue = paper.Venue
		}
	}
	if c.Year == 0 {
		c.Year = paper.Year
	}
	if c.CitationCount == 0 {
		c.CitationCount = paper.CitationCount
	}
	if c.InfluentialCitationCount == 0 {
		c.InfluentialCitationCount = paper.InfluentialCitationCount
	}
	c.IsInfluential = c.IsInfluential || paper.InfluentialCitationCount > influentialCountThreshold

	structured := paper.Authors
	if len(structured) > authorsPerCitation {
		structured = structured[:authorsPerCitation]
	}
	c.AuthorsWithIDs = r.mergeAuthorLists(structured, c.AuthorsWithIDs)
	if len(c.CitingAuthors) == 0 {
		for _, a := range paper.Authors {
			c.CitingAuthors = append(c.CitingAuthors, a.Name)
		}
	}
	return true
}

// enhanceFromFallback fills DOI, venue, and year from the metadata
// source. No author information lives on this path.
func (r *Reconciler) enhanceFromFallback(ctx context.Context, c *citation.Citation) {
	paper, err := r.enhancer.SearchPaper(ctx, c.CitingPaperTitle)
	if err != nil || paper == nil {
		if err != nil {
			r.log.WithError(err).Debug("fallback enhancement failed")
		}
		return
	}
	if !match.Titles(paper.Title, c.CitingPaperTitle) {
		return
	}
	if c.DOI == "" {
		c.DOI = paper.DOI
	}
	if (c.Venue == "" || c.Venue == "Unknown") && paper.Venue != "" {
		c.Venue = paper.Venue
	}
	if c.Year == 0 {
		c.Year = paper.Year
	}
	if c.URL == "" {
		c.URL = paper.URL
	}
}

// mergeAuthorLists combines a structured-source author list with the
// scraped-source list already on a citation. Pairs are matched by last
// name; a matched pair keeps the fuller name and a compound
// "gs:X|s2:Y" token. Unmatched structured authors get one identity
// index check by name before being kept as-is.
func (r *Reconciler) mergeAuthorLists(structured, scraped []citation.AuthorInfo) []citation.AuthorInfo {
	out := make([]citation.AuthorInfo, len(scraped))
	copy(out, scraped)

	for _, sa := range structured {
		s2ID := citation.ParseAuthorID(sa.AuthorID).S2
		matched := false
		for i := range out {
			if !strings.EqualFold(normalize.LastName(out[i].Name), normalize.LastName(sa.Name)) {
				continue
			}
			matched = true
			existing := citation.ParseAuthorID(out[i].AuthorID)
			gsID := existing.GS
			if existing.S2 != "" && s2ID == "" {
				s2ID = existing.S2
			}
			out[i] = citation.AuthorInfo{
				Name:     fullerName(out[i].Name, sa.Name),
				AuthorID: citation.CombineAuthorID(gsID, s2ID),
			}
			break
		}
		if matched {
			continue
		}
		info := sa
		// One more chance to attach a known scraped ID by name.
		if r.index != nil {
			if p, ok := r.index.GetByAnyID(identity.Query{Name: sa.Name}); ok && p.Author.GoogleScholarID != "" {
				info.AuthorID = citation.CombineAuthorID(p.Author.GoogleScholarID, s2ID)
			}
		}
		out = append(out, info)
	}

	if len(out) > maxMergedAuthors {
		out = out[:maxMergedAuthors]
	}
	return out
}

// fullerName picks the more informative of two name spellings: a name
// whose first token is longer than two characters is non-abbreviated
// and wins; otherwise the longer string wins.
func fullerName(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	aFull, bFull := nonAbbreviated(a), nonAbbreviated(b)
	switch {
	case aFull && !bFull:
		return a
	case bFull && !aFull:
		return b
	case len(b) > len(a):
		return b
	default:
		return a
	}
}

func nonAbbreviated(name string) bool {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimRight(fields[0], ".")
	return len([]rune(first)) > 2
}
