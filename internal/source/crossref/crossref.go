// Package crossref looks up paper metadata on the Crossref works API.
// It is the last-resort enhancement source: DOI, venue, and year only,
// no author IDs and no h-index.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/normalize"
	"github.com/matsen/scholarimpact/internal/source"
)

const (
	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// Label identifies this adapter in errors and provenance fields.
	Label = "crossref"

	requestInterval = 100 * time.Millisecond
)

// Client queries the Crossref works API.
type Client struct {
	http    *pester.Client
	limiter *rate.Limiter
	baseURL string
	mailto  string
	log     logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithMailto sets the polite-pool contact address sent in User-Agent.
func WithMailto(m string) ClientOption {
	return func(c *Client) { c.mailto = m }
}

// WithLogger sets the adapter logger.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Crossref client.
func NewClient(opts ...ClientOption) *Client {
	hc := pester.New()
	hc.Backoff = pester.ExponentialBackoff
	hc.MaxRetries = 3
	hc.RetryOnHTTP429 = true
	hc.Timeout = 20 * time.Second

	c := &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
		baseURL: BaseURL,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type work struct {
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	DOI            string   `json:"DOI"`
	URL            string   `json:"URL"`
	ReferencedBy   int      `json:"is-referenced-by-count"`
	Published      struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
	Author []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
}

func (w work) title() string {
	if len(w.Title) == 0 {
		return ""
	}
	return w.Title[0]
}

func (w work) year() int {
	if len(w.Published.DateParts) > 0 && len(w.Published.DateParts[0]) > 0 {
		return w.Published.DateParts[0][0]
	}
	return 0
}

func (w work) toPaper() *citation.Paper {
	p := &citation.Paper{
		PaperID:       w.DOI,
		Title:         w.title(),
		Year:          w.year(),
		CitationCount: w.ReferencedBy,
		DOI:           w.DOI,
		URL:           w.URL,
	}
	if len(w.ContainerTitle) > 0 {
		p.Venue = w.ContainerTitle[0]
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			p.Authors = append(p.Authors, citation.AuthorInfo{Name: name})
		}
	}
	return p
}

// SearchPaper finds the best work for a title: prefer candidates whose
// normalized title contains (or is contained by) the query, break ties
// by citation count.
func (c *Client) SearchPaper(ctx context.Context, title string) (*citation.Paper, error) {
	params := url.Values{}
	params.Set("query.title", title)
	params.Set("rows", "5")

	var resp struct {
		Message struct {
			Items []work `json:"items"`
		} `json:"message"`
	}
	if err := c.get(ctx, "/works", params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	want := normalize.Title(title)
	var best *work
	for i := range resp.Message.Items {
		w := &resp.Message.Items[i]
		got := normalize.Title(w.title())
		if got == "" {
			continue
		}
		contained := strings.Contains(got, want) || strings.Contains(want, got)
		if !contained && !match.Titles(title, w.title()) {
			continue
		}
		if best == nil || w.ReferencedBy > best.ReferencedBy {
			best = w
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.toPaper(), nil
}

// GetByDOI fetches one work directly.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*citation.Paper, error) {
	var resp struct {
		Message work `json:"message"`
	}
	if err := c.get(ctx, "/works/"+url.PathEscape(doi), nil, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Message.toPaper(), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	ua := "scholarimpact/1.0"
	if c.mailto != "" {
		ua = fmt.Sprintf("scholarimpact/1.0 (mailto:%s)", c.mailto)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return &source.FetchError{Source: Label, Operation: path, Err: fmt.Errorf("%w: %v", source.ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return source.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return &source.FetchError{Source: Label, Operation: path, StatusCode: resp.StatusCode, Err: source.ErrRateLimited}
	case resp.StatusCode >= 400:
		return &source.FetchError{Source: Label, Operation: path, StatusCode: resp.StatusCode, Err: source.ErrUnavailable}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &source.FetchError{Source: Label, Operation: path, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &source.FetchError{Source: Label, Operation: path, Err: fmt.Errorf("%w: %v", source.ErrInvalidResponse, err)}
	}
	return nil
}
