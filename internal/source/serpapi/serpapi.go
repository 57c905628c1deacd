// Package serpapi reads Google Scholar through the SerpAPI proxy. It
// covers the same ground as the scraper, including cites-IDs and
// profile h-index tables, without a browser, at the cost of an API key
// and per-request billing.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/source"
)

const (
	// BaseURL is the SerpAPI endpoint.
	BaseURL = "https://serpapi.com/search.json"

	// Label identifies this adapter in errors and provenance fields.
	Label = "serpapi"

	requestInterval = 1 * time.Second
	resultsPerPage  = 20
)

// Client queries Google Scholar via SerpAPI.
type Client struct {
	http    *pester.Client
	limiter *rate.Limiter
	apiKey  string
	baseURL string
	log     logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the SerpAPI key.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithLogger sets the adapter logger.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a SerpAPI client. SERPAPI_API_KEY is picked up from
// the environment when set.
func NewClient(opts ...ClientOption) *Client {
	hc := pester.New()
	hc.Backoff = pester.ExponentialBackoff
	hc.MaxRetries = 3
	hc.RetryOnHTTP429 = true
	hc.Timeout = 30 * time.Second

	c := &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
		baseURL: BaseURL,
		log:     logrus.StandardLogger(),
	}
	if key := os.Getenv("SERPAPI_API_KEY"); key != "" {
		c.apiKey = key
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the adapter has a key to work with.
func (c *Client) Available() bool { return c.apiKey != "" }

type organicResult struct {
	Title           string `json:"title"`
	Link            string `json:"link"`
	PublicationInfo struct {
		Summary string `json:"summary"`
		Authors []struct {
			Name     string `json:"name"`
			AuthorID string `json:"author_id"`
		} `json:"authors"`
	} `json:"publication_info"`
	InlineLinks struct {
		CitedBy struct {
			Total   int    `json:"total"`
			CitesID string `json:"cites_id"`
		} `json:"cited_by"`
	} `json:"inline_links"`
}

func (r organicResult) toCitation() citation.Citation {
	names, venue, year := splitSummary(r.PublicationInfo.Summary)
	if venue == "" {
		venue = "Unknown"
	}
	c := citation.Citation{
		CitingPaperTitle: r.Title,
		Venue:            venue,
		Year:             year,
		URL:              r.Link,
		CitingAuthors:    names,
		CitationCount:    r.InlineLinks.CitedBy.Total,
	}
	for i, a := range r.PublicationInfo.Authors {
		if i == 3 {
			break
		}
		if a.AuthorID != "" {
			c.AuthorsWithIDs = append(c.AuthorsWithIDs, citation.AuthorInfo{
				Name:     a.Name,
				AuthorID: citation.GSPrefix + a.AuthorID,
			})
		}
	}
	return c
}

// SearchPaper returns the best organic result for a title, with its
// cites-ID when present.
func (c *Client) SearchPaper(ctx context.Context, title string) (*citation.Paper, error) {
	params := url.Values{}
	params.Set("engine", "google_scholar")
	params.Set("q", title)

	var resp struct {
		OrganicResults []organicResult `json:"organic_results"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.OrganicResults) == 0 {
		return nil, nil
	}

	best, bestScore := resp.OrganicResults[0], -1.0
	for _, r := range resp.OrganicResults {
		if s := match.SearchScore(title, r.Title); s > bestScore {
			best, bestScore = r, s
		}
	}
	_, venue, year := splitSummary(best.PublicationInfo.Summary)
	paper := &citation.Paper{
		Title:         best.Title,
		Venue:         venue,
		Year:          year,
		CitationCount: best.InlineLinks.CitedBy.Total,
		URL:           best.Link,
		CitesID:       best.InlineLinks.CitedBy.CitesID,
	}
	for _, a := range best.PublicationInfo.Authors {
		info := citation.AuthorInfo{Name: a.Name}
		if a.AuthorID != "" {
			info.AuthorID = citation.GSPrefix + a.AuthorID
		}
		paper.Authors = append(paper.Authors, info)
	}
	return paper, nil
}

// GetCitationsByCluster pages through a citation cluster.
func (c *Client) GetCitationsByCluster(ctx context.Context, citesID string, limit int) ([]citation.Citation, error) {
	var out []citation.Citation
	for start := 0; len(out) < limit; start += resultsPerPage {
		params := url.Values{}
		params.Set("engine", "google_scholar")
		params.Set("cites", citesID)
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(resultsPerPage))

		var resp struct {
			OrganicResults []organicResult `json:"organic_results"`
		}
		if err := c.get(ctx, params, &resp); err != nil {
			return out, err
		}
		if len(resp.OrganicResults) == 0 {
			break
		}
		for _, r := range resp.OrganicResults {
			if len(out) == limit {
				break
			}
			out = append(out, r.toCitation())
		}
		if len(resp.OrganicResults) < resultsPerPage {
			break
		}
	}
	return out, nil
}

// GetCitations finds the paper by title first, then follows its
// cites-ID. Prefer GetCitationsByCluster whenever the ID is already
// known.
func (c *Client) GetCitations(ctx context.Context, paperTitle string, limit int) ([]citation.Citation, error) {
	paper, err := c.SearchPaper(ctx, paperTitle)
	if err != nil || paper == nil || paper.CitesID == "" {
		return nil, err
	}
	return c.GetCitationsByCluster(ctx, paper.CitesID, limit)
}

// GetAuthorByID fetches a Scholar author profile, reading the h-index
// from the cited-by table.
func (c *Client) GetAuthorByID(ctx context.Context, id string) (*citation.Author, error) {
	params := url.Values{}
	params.Set("engine", "google_scholar_author")
	params.Set("author_id", id)

	var resp struct {
		Author struct {
			Name         string `json:"name"`
			Affiliations string `json:"affiliations"`
			Website      string `json:"website"`
		} `json:"author"`
		CitedBy struct {
			Table []map[string]struct {
				All int `json:"all"`
			} `json:"table"`
		} `json:"cited_by"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if resp.Author.Name == "" {
		return nil, nil
	}
	author := &citation.Author{
		Name:            resp.Author.Name,
		Affiliation:     resp.Author.Affiliations,
		GoogleScholarID: id,
		Homepage:        resp.Author.Website,
		HIndexSource:    citation.SourceSerpAPI,
	}
	for _, row := range resp.CitedBy.Table {
		if v, ok := row["citations"]; ok {
			author.CitationCount = v.All
		}
		if v, ok := row["h_index"]; ok {
			author.HIndex = v.All
		}
	}
	return author, nil
}

// GetAuthor searches Scholar profiles by name.
func (c *Client) GetAuthor(ctx context.Context, name string) (*citation.Author, error) {
	params := url.Values{}
	params.Set("engine", "google_scholar_profiles")
	params.Set("mauthors", name)

	var resp struct {
		Profiles []struct {
			Name         string `json:"name"`
			AuthorID     string `json:"author_id"`
			Affiliations string `json:"affiliations"`
		} `json:"profiles"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Profiles) == 0 {
		return nil, nil
	}
	p := resp.Profiles[0]
	if full, err := c.GetAuthorByID(ctx, p.AuthorID); err == nil && full != nil {
		if full.Affiliation == "" {
			full.Affiliation = p.Affiliations
		}
		return full, nil
	}
	return &citation.Author{
		Name:            p.Name,
		GoogleScholarID: p.AuthorID,
		Affiliation:     p.Affiliations,
		HIndexSource:    citation.SourceSerpAPI,
	}, nil
}

// GetAuthorPublications lists a profile's articles with cites-IDs.
func (c *Client) GetAuthorPublications(ctx context.Context, authorID string, limit int) ([]citation.Publication, error) {
	params := url.Values{}
	params.Set("engine", "google_scholar_author")
	params.Set("author_id", authorID)
	params.Set("num", strconv.Itoa(limit))

	var resp struct {
		Articles []struct {
			Title   string `json:"title"`
			Year    string `json:"year"`
			CitedBy struct {
				Value   int    `json:"value"`
				CitesID string `json:"cites_id"`
			} `json:"cited_by"`
		} `json:"articles"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	pubs := make([]citation.Publication, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if len(pubs) == limit {
			break
		}
		pub := citation.Publication{
			Title:         a.Title,
			CitationCount: a.CitedBy.Value,
			CitesID:       a.CitedBy.CitesID,
		}
		pub.Year, _ = strconv.Atoi(a.Year)
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	if c.apiKey == "" {
		return &source.FetchError{Source: Label, Operation: params.Get("engine"), Err: fmt.Errorf("%w: no API key", source.ErrUnavailable)}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &source.FetchError{Source: Label, Operation: params.Get("engine"), Err: fmt.Errorf("%w: %v", source.ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return source.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return &source.FetchError{Source: Label, Operation: params.Get("engine"), StatusCode: resp.StatusCode, Err: source.ErrRateLimited}
	case resp.StatusCode >= 400:
		return &source.FetchError{Source: Label, Operation: params.Get("engine"), StatusCode: resp.StatusCode, Err: source.ErrUnavailable}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &source.FetchError{Source: Label, Operation: params.Get("engine"), Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &source.FetchError{Source: Label, Operation: params.Get("engine"), Err: fmt.Errorf("%w: %v", source.ErrInvalidResponse, err)}
	}
	return nil
}
