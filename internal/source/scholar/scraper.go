package scholar

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/match"
)

const (
	// Label identifies this adapter in errors and provenance fields.
	Label = "google_scholar"

	// BaseURL is the Google Scholar site root.
	BaseURL = "https://scholar.google.com"

	// resultsPerPage is Scholar's fixed result page size.
	resultsPerPage = 10

	// maxAuthorIDs caps how many linked author profiles are kept per result.
	maxAuthorIDs = 3
)

var (
	citesRe   = regexp.MustCompile(`[?&]cites=(\d+)`)
	userRe    = regexp.MustCompile(`[?&]user=([\w-]+)`)
	citedByRe = regexp.MustCompile(`Cited by (\d+)`)
	yearRe    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Scraper reads Scholar pages through an acquired Session.
type Scraper struct {
	session *Session
	baseURL string
	log     logrus.FieldLogger
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithBaseURL overrides the site root (for tests).
func WithBaseURL(u string) ScraperOption {
	return func(s *Scraper) { s.baseURL = u }
}

// WithLogger sets the adapter logger.
func WithLogger(l logrus.FieldLogger) ScraperOption {
	return func(s *Scraper) { s.log = l }
}

// NewScraper builds a scraper over the shared session.
func NewScraper(session *Session, opts ...ScraperOption) *Scraper {
	s := &Scraper{session: session, baseURL: BaseURL, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session exposes the underlying session for acquire/release control.
func (s *Scraper) Session() *Session { return s.session }

// SearchPaper searches Scholar for a title and returns the best result
// page hit, with its cites-ID when a "Cited by" link is present.
func (s *Scraper) SearchPaper(ctx context.Context, title string) (*citation.Paper, error) {
	pageURL := s.baseURL + "/scholar?hl=en&q=" + url.QueryEscape(title)
	html, err := s.session.navigate(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	results, err := parseResults(html)
	if err != nil || len(results) == 0 {
		return nil, err
	}

	best, bestScore := results[0], -1.0
	for _, r := range results {
		if sc := match.SearchScore(title, r.title); sc > bestScore {
			best, bestScore = r, sc
		}
	}
	if bestScore < match.WeakScoreThreshold {
		s.log.WithField("title", title).Debug("weak scholar search match")
	}
	return &citation.Paper{
		Title:         best.title,
		Year:          best.year,
		Venue:         best.venue,
		CitationCount: best.citedBy,
		URL:           best.link,
		CitesID:       best.citesID,
		Authors:       best.authors,
	}, nil
}

// GetCitationsByCluster pages through the citing papers of a known
// citation-cluster ID. This path performs no text search.
func (s *Scraper) GetCitationsByCluster(ctx context.Context, citesID string, limit int) ([]citation.Citation, error) {
	var out []citation.Citation
	for start := 0; len(out) < limit; start += resultsPerPage {
		pageURL := s.baseURL + "/scholar?hl=en&cites=" + url.QueryEscape(citesID) +
			"&start=" + strconv.Itoa(start)
		html, err := s.session.navigate(ctx, pageURL)
		if err != nil {
			return out, err
		}
		results, err := parseResults(html)
		if err != nil {
			return out, err
		}
		if len(results) == 0 {
			break
		}
		for _, r := range results {
			if len(out) == limit {
				break
			}
			out = append(out, r.toCitation())
		}
		if len(results) < resultsPerPage {
			break
		}
	}
	return out, nil
}

// GetCitations finds the paper by title first, then follows its
// cites-ID. Prefer GetCitationsByCluster whenever the ID is already
// known; this variant costs an extra search.
func (s *Scraper) GetCitations(ctx context.Context, paperTitle string, limit int) ([]citation.Citation, error) {
	paper, err := s.SearchPaper(ctx, paperTitle)
	if err != nil || paper == nil || paper.CitesID == "" {
		return nil, err
	}
	return s.GetCitationsByCluster(ctx, paper.CitesID, limit)
}

// GetAuthor searches author profiles by name and returns the first hit.
func (s *Scraper) GetAuthor(ctx context.Context, name string) (*citation.Author, error) {
	pageURL := s.baseURL + "/citations?view_op=search_authors&hl=en&mauthors=" + url.QueryEscape(name)
	html, err := s.session.navigate(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var author *citation.Author
	doc.Find(".gs_ai").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		nameSel := sel.Find(".gs_ai_name a")
		href, _ := nameSel.Attr("href")
		m := userRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		author = &citation.Author{
			Name:            strings.TrimSpace(nameSel.Text()),
			Affiliation:     strings.TrimSpace(sel.Find(".gs_ai_aff").Text()),
			GoogleScholarID: m[1],
		}
		return false
	})
	if author == nil {
		return nil, nil
	}
	// The search listing has no h-index; the profile page does.
	if full, err := s.GetAuthorByID(ctx, author.GoogleScholarID); err == nil && full != nil {
		if full.Affiliation == "" {
			full.Affiliation = author.Affiliation
		}
		return full, nil
	}
	return author, nil
}

// GetAuthorByID loads an author's profile page and reads the
// self-maintained metrics table.
func (s *Scraper) GetAuthorByID(ctx context.Context, id string) (*citation.Author, error) {
	pageURL := s.baseURL + "/citations?hl=en&user=" + url.QueryEscape(id)
	html, err := s.session.navigate(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(doc.Find("#gsc_prf_in").Text())
	if name == "" {
		return nil, nil
	}
	author := &citation.Author{
		Name:            name,
		Affiliation:     strings.TrimSpace(doc.Find(".gsc_prf_il").First().Text()),
		GoogleScholarID: id,
		HIndexSource:    citation.SourceGoogleScholar,
	}

	doc.Find("#gsc_rsb_st tbody tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(row.Find("td").First().Text()))
		value, _ := strconv.Atoi(strings.TrimSpace(row.Find("td.gsc_rsb_std").First().Text()))
		switch {
		case strings.HasPrefix(label, "citations"):
			author.CitationCount = value
		case strings.HasPrefix(label, "h-index"):
			author.HIndex = value
		}
	})
	return author, nil
}

// GetAuthorPublications lists the papers on an author's profile page,
// including each paper's cites-ID when it has citations.
func (s *Scraper) GetAuthorPublications(ctx context.Context, authorID string, limit int) ([]citation.Publication, error) {
	pageURL := s.baseURL + "/citations?hl=en&user=" + url.QueryEscape(authorID) +
		"&cstart=0&pagesize=" + strconv.Itoa(limit)
	html, err := s.session.navigate(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var pubs []citation.Publication
	doc.Find("tr.gsc_a_tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		pub := citation.Publication{
			Title: strings.TrimSpace(row.Find("a.gsc_a_at").Text()),
		}
		if pub.Title == "" {
			return true
		}
		grays := row.Find(".gs_gray")
		if grays.Length() > 1 {
			pub.Venue = strings.TrimSpace(grays.Eq(1).Text())
		}
		pub.Year, _ = strconv.Atoi(strings.TrimSpace(row.Find(".gsc_a_y").Text()))
		citesSel := row.Find("a.gsc_a_ac")
		pub.CitationCount, _ = strconv.Atoi(strings.TrimSpace(citesSel.Text()))
		if href, ok := citesSel.Attr("href"); ok {
			if m := citesRe.FindStringSubmatch(href); m != nil {
				pub.CitesID = m[1]
			}
		}
		pubs = append(pubs, pub)
		return len(pubs) < limit
	})
	return pubs, nil
}

// searchResult is one parsed gs_ri block.
type searchResult struct {
	title   string
	link    string
	venue   string
	year    int
	citedBy int
	citesID string
	names   []string
	authors []citation.AuthorInfo
}

func (r searchResult) toCitation() citation.Citation {
	venue := r.venue
	if venue == "" {
		venue = "Unknown"
	}
	return citation.Citation{
		CitingPaperTitle: r.title,
		Venue:            venue,
		Year:             r.year,
		URL:              r.link,
		CitationCount:    r.citedBy,
		CitingAuthors:    r.names,
		AuthorsWithIDs:   r.authors,
	}
}

// parseResults extracts every result block from a Scholar results page.
func parseResults(html string) ([]searchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var results []searchResult
	doc.Find(".gs_ri").Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel.Find("h3.gs_rt")
		r := searchResult{title: cleanTitle(titleSel.Text())}
		if r.title == "" {
			return
		}
		r.link, _ = titleSel.Find("a").Attr("href")

		byline := sel.Find(".gs_a")
		r.names, r.venue, r.year = parseByline(byline.Text())
		linked := 0
		byline.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			m := userRe.FindStringSubmatch(href)
			if m == nil || linked == maxAuthorIDs {
				return
			}
			r.authors = append(r.authors, citation.AuthorInfo{
				Name:     strings.TrimSpace(a.Text()),
				AuthorID: citation.GSPrefix + m[1],
			})
			linked++
		})

		sel.Find(".gs_fl a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if m := citesRe.FindStringSubmatch(href); m != nil {
				r.citesID = m[1]
				if cb := citedByRe.FindStringSubmatch(a.Text()); cb != nil {
					r.citedBy, _ = strconv.Atoi(cb[1])
				}
			}
		})

		results = append(results, r)
	})
	return results, nil
}

// cleanTitle strips the [PDF]/[HTML]/[BOOK] badges Scholar prepends.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			break
		}
		s = strings.TrimSpace(s[end+1:])
	}
	return s
}

// parseByline splits the green "Authors - Venue, Year - domain" line.
func parseByline(text string) (names []string, venue string, year int) {
	parts := strings.Split(text, " - ")
	if len(parts) > 0 {
		for _, n := range strings.Split(parts[0], ",") {
			n = strings.TrimSpace(n)
			// Scholar elides overflow authors with an ellipsis.
			if n != "" && n != "…" && n != "..." {
				names = append(names, n)
			}
		}
	}
	if len(parts) > 1 {
		venuePart := strings.TrimSpace(parts[1])
		if m := yearRe.FindString(venuePart); m != "" {
			year, _ = strconv.Atoi(m)
			venuePart = strings.TrimSpace(strings.TrimSuffix(venuePart, m))
			venuePart = strings.TrimRight(venuePart, ", ")
		}
		venue = venuePart
	}
	return names, venue, year
}
