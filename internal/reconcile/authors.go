package reconcile

import (
	"context"
	"strings"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/identity"
	"github.com/matsen/scholarimpact/internal/normalize"
)

// resolveCitationAuthors resolves up to three citing authors of one
// citation, each independently through the priority ladder. A failed
// resolution drops that author; the citation itself survives.
func (r *Reconciler) resolveCitationAuthors(ctx context.Context, c *citation.Citation, secondary Secondary) []ResolvedAuthor {
	candidates := authorCandidates(c)

	var out []ResolvedAuthor
	for _, info := range candidates {
		if ctx.Err() != nil {
			break
		}
		author := r.resolveAuthor(ctx, info, c.CitingPaperTitle, secondary)
		if author == nil {
			continue
		}
		resolved := *author
		if resolved.Name == "" {
			resolved.Name = info.Name
		}
		if r.inst != nil && resolved.InstitutionType == "" {
			resolved.InstitutionType = r.inst.Categorize("", resolved.Affiliation)
		}
		if r.index != nil {
			r.index.UpdateProfile(resolved, []citation.Publication{{Title: c.CitingPaperTitle}})
		}
		out = append(out, ResolvedAuthor{
			Author:       resolved,
			CitingPapers: []string{c.CitingPaperTitle},
		})
	}
	return out
}

// authorCandidates picks which citing authors to resolve: the ID-bearing
// list first, topped up with plain names not already covered.
func authorCandidates(c *citation.Citation) []citation.AuthorInfo {
	candidates := make([]citation.AuthorInfo, 0, authorsPerCitation)
	covered := make(map[string]bool)
	for _, info := range c.AuthorsWithIDs {
		if len(candidates) == authorsPerCitation {
			break
		}
		candidates = append(candidates, info)
		covered[strings.ToLower(normalize.LastName(info.Name))] = true
	}
	for _, name := range c.CitingAuthors {
		if len(candidates) == authorsPerCitation {
			break
		}
		if covered[strings.ToLower(normalize.LastName(name))] {
			continue
		}
		candidates = append(candidates, citation.AuthorInfo{Name: name})
		covered[strings.ToLower(normalize.LastName(name))] = true
	}
	return candidates
}

// resolveAuthor runs the priority ladder for one citing author. First
// success wins:
//
//	a. scraped-source ID already on the citation
//	b. identity index, by any ID or by this citing paper's title
//	c. structured-source ID on the citation
//	d. (name, citing paper) disambiguation among the paper's co-authors
//	e. plain name search, structured source then identity fallback
func (r *Reconciler) resolveAuthor(ctx context.Context, info citation.AuthorInfo, citingTitle string, secondary Secondary) *citation.Author {
	parsed := citation.ParseAuthorID(info.AuthorID)

	// a: direct scraped profile fetch.
	if parsed.GS != "" && secondary != nil {
		if a := r.memoized(citation.GSPrefix+parsed.GS, func() *citation.Author {
			author, err := secondary.GetAuthorByID(ctx, parsed.GS)
			if err != nil {
				r.log.WithError(err).Debug("scraped author fetch failed")
				return nil
			}
			return author
		}); a != nil {
			return a
		}
	}

	// b: the identity index already knows this person.
	if r.index != nil {
		q := identity.Query{
			Name:              info.Name,
			GoogleScholarID:   parsed.GS,
			SemanticScholarID: parsed.S2,
			OrcidID:           parsed.Orcid,
		}
		if p, ok := r.index.GetByAnyID(q); ok {
			a := p.Author
			return &a
		}
		probe := []citation.Publication{{Title: citingTitle}}
		if p, ok := r.index.FindByPublications(probe, 1); ok &&
			strings.EqualFold(normalize.LastName(p.Author.Name), normalize.LastName(info.Name)) {
			a := p.Author
			return &a
		}
	}

	// c: structured profile fetch, preferring any cached scraped h-index
	// for the same person over the structured source's own figure.
	if parsed.S2 != "" && r.primary != nil {
		if a := r.memoized(citation.S2Prefix+parsed.S2, func() *citation.Author {
			author, err := r.primary.GetAuthorByID(ctx, parsed.S2)
			if err != nil {
				r.log.WithError(err).Debug("structured author fetch failed")
				return nil
			}
			return author
		}); a != nil {
			out := *a
			if parsed.GS != "" && out.GoogleScholarID == "" {
				out.GoogleScholarID = parsed.GS
			}
			r.preferScrapedHIndex(&out)
			return &out
		}
	}

	// d and e share the memo slot: one search per name per run.
	key := "name:" + normalize.Name(info.Name)
	return r.memoized(key, func() *citation.Author {
		if r.primary != nil && citingTitle != "" {
			author, err := r.primary.GetAuthorForPaper(ctx, info.Name, citingTitle)
			if err != nil {
				r.log.WithError(err).Debug("contextual author search failed")
			}
			if author != nil {
				return author
			}
		}
		if r.primary != nil {
			author, err := r.primary.GetAuthor(ctx, info.Name)
			if err != nil {
				r.log.WithError(err).Debug("author name search failed")
			}
			if author != nil {
				return author
			}
		}
		if r.fallback != nil {
			author, err := r.fallback.GetAuthor(ctx, info.Name)
			if err != nil {
				r.log.WithError(err).Debug("fallback author search failed")
			}
			return author
		}
		return nil
	})
}

// preferScrapedHIndex swaps in a cached scraped h-index when the index
// holds one for this author; scraped profiles are self-maintained and
// more trusted than bibliographic counts.
func (r *Reconciler) preferScrapedHIndex(author *citation.Author) {
	if r.index == nil {
		return
	}
	p, ok := r.index.GetByAnyID(identity.Query{
		Name:              author.Name,
		GoogleScholarID:   author.GoogleScholarID,
		SemanticScholarID: author.SemanticScholarID,
	})
	if !ok {
		return
	}
	cached := p.Author
	if scrapedSource(cached.HIndexSource) && cached.HIndex > 0 {
		author.HIndex = cached.HIndex
		author.HIndexSource = cached.HIndexSource
		if author.GoogleScholarID == "" {
			author.GoogleScholarID = cached.GoogleScholarID
		}
	}
}

func scrapedSource(s citation.HIndexSource) bool {
	return s == citation.SourceGoogleScholar || s == citation.SourceSerpAPI
}

// DedupAuthors collapses the same person appearing through multiple
// citations. Two entries are the same person when their normalized last
// name and affiliation both match. Merging is idempotent: running it
// twice yields what running it once does.
func DedupAuthors(authors []ResolvedAuthor) []ResolvedAuthor {
	type dedupKey struct {
		lastName    string
		affiliation string
	}

	var out []ResolvedAuthor
	seen := make(map[dedupKey]int)
	for _, a := range authors {
		key := dedupKey{
			lastName:    strings.ToLower(normalize.LastName(a.Name)),
			affiliation: strings.TrimSpace(a.Affiliation),
		}
		i, ok := seen[key]
		if !ok {
			copied := a
			copied.CitingPapers = append([]string(nil), a.CitingPapers...)
			seen[key] = len(out)
			out = append(out, copied)
			continue
		}
		mergeResolved(&out[i], a)
	}
	return out
}

// mergeResolved folds incoming into existing: union citing papers,
// prefer the scraped h-index over a structured one, keep the higher
// value when kinds match, keep the fuller name, fill missing IDs.
func mergeResolved(existing *ResolvedAuthor, incoming ResolvedAuthor) {
	for _, p := range incoming.CitingPapers {
		dup := false
		for _, q := range existing.CitingPapers {
			if q == p {
				dup = true
				break
			}
		}
		if !dup {
			existing.CitingPapers = append(existing.CitingPapers, p)
		}
	}

	switch {
	case scrapedSource(incoming.HIndexSource) && !scrapedSource(existing.HIndexSource):
		existing.HIndex = incoming.HIndex
		existing.HIndexSource = incoming.HIndexSource
	case scrapedSource(incoming.HIndexSource) == scrapedSource(existing.HIndexSource):
		if incoming.HIndex > existing.HIndex {
			existing.HIndex = incoming.HIndex
			if incoming.HIndexSource != "" {
				existing.HIndexSource = incoming.HIndexSource
			}
		}
	}

	existing.Name = fullerName(existing.Name, incoming.Name)
	if existing.Affiliation == "" {
		existing.Affiliation = incoming.Affiliation
	}
	if existing.InstitutionType == "" || existing.InstitutionType == citation.InstOther {
		if incoming.InstitutionType != "" {
			existing.InstitutionType = incoming.InstitutionType
		}
	}
	if existing.GoogleScholarID == "" {
		existing.GoogleScholarID = incoming.GoogleScholarID
	}
	if existing.SemanticScholarID == "" {
		existing.SemanticScholarID = incoming.SemanticScholarID
	}
	if existing.OrcidID == "" {
		existing.OrcidID = incoming.OrcidID
	}
	if existing.Homepage == "" {
		existing.Homepage = incoming.Homepage
	}
	if incoming.WorksCount > existing.WorksCount {
		existing.WorksCount = incoming.WorksCount
	}
	if incoming.CitationCount > existing.CitationCount {
		existing.CitationCount = incoming.CitationCount
	}
}
