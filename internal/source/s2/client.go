// Package s2 is the structured-data adapter: Semantic Scholar for
// papers, citations, and author IDs, with OpenAlex filling in
// affiliations, work counts, and venue metrics. This pairing is the
// primary source; it never needs a browser and returns stable IDs.
package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/matsen/scholarimpact/internal/source"
)

const (
	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// OpenAlexBaseURL is the OpenAlex API base URL.
	OpenAlexBaseURL = "https://api.openalex.org"

	// Label identifies this adapter in errors and provenance fields.
	Label = "semantic_scholar"

	// Unkeyed S2 access is shared-pool limited; keyed access is much
	// faster. OpenAlex polite pool allows 10 req/s.
	unkeyedInterval  = 1100 * time.Millisecond
	keyedInterval    = 25 * time.Millisecond
	openAlexInterval = 110 * time.Millisecond

	paperFields = "paperId,title,year,venue,citationCount,influentialCitationCount,externalIds,url,authors"
	citationFields = "isInfluential,contexts,intents," +
		"citingPaper.paperId,citingPaper.title,citingPaper.year,citingPaper.venue," +
		"citingPaper.citationCount,citingPaper.influentialCitationCount," +
		"citingPaper.externalIds,citingPaper.url,citingPaper.authors"
	authorFields = "authorId,name,url,affiliations,paperCount,citationCount,hIndex"

	citationPageSize = 100
)

// Client is a rate-limited client for Semantic Scholar and OpenAlex.
type Client struct {
	http       *pester.Client
	s2Limiter  *rate.Limiter
	oaLimiter  *rate.Limiter
	apiKey     string
	mailto     string
	baseURL    string
	oaBaseURL  string
	log        logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the Semantic Scholar API key, which also switches to
// the keyed rate limit.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithMailto sets the OpenAlex polite-pool contact address.
func WithMailto(mailto string) ClientOption {
	return func(c *Client) { c.mailto = mailto }
}

// WithBaseURL sets a custom Semantic Scholar base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithOpenAlexBaseURL sets a custom OpenAlex base URL (for testing).
func WithOpenAlexBaseURL(u string) ClientOption {
	return func(c *Client) { c.oaBaseURL = u }
}

// WithLogger sets the adapter logger.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates the unified structured-source client. S2_API_KEY
// and OPENALEX_MAILTO are picked up from the environment when set.
func NewClient(opts ...ClientOption) *Client {
	hc := pester.New()
	hc.Backoff = pester.ExponentialBackoff
	hc.MaxRetries = 3
	hc.RetryOnHTTP429 = true
	hc.Timeout = 30 * time.Second

	c := &Client{
		http:      hc,
		oaLimiter: rate.NewLimiter(rate.Every(openAlexInterval), 1),
		baseURL:   BaseURL,
		oaBaseURL: OpenAlexBaseURL,
		log:       logrus.StandardLogger(),
	}
	if key := os.Getenv("S2_API_KEY"); key != "" {
		c.apiKey = key
	}
	if mailto := os.Getenv("OPENALEX_MAILTO"); mailto != "" {
		c.mailto = mailto
	}
	for _, opt := range opts {
		opt(c)
	}

	interval := unkeyedInterval
	if c.apiKey != "" {
		interval = keyedInterval
	}
	c.s2Limiter = rate.NewLimiter(rate.Every(interval), 1)
	return c
}

// getS2 performs a rate-limited GET against Semantic Scholar and
// decodes the JSON body into out. A 404 returns source.ErrNotFound.
func (c *Client) getS2(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.s2Limiter.Wait(ctx); err != nil {
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
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	return c.do(req, "semantic scholar", out)
}

// getOpenAlex performs a rate-limited GET against OpenAlex.
func (c *Client) getOpenAlex(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.oaLimiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	u := c.oaBaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, "openalex", out)
}

func (c *Client) do(req *http.Request, upstream string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &source.FetchError{Source: Label, Operation: upstream, Err: fmt.Errorf("%w: %v", source.ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return source.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return &source.FetchError{Source: Label, Operation: upstream, StatusCode: resp.StatusCode, Err: source.ErrRateLimited}
	case resp.StatusCode >= 400:
		return &source.FetchError{Source: Label, Operation: upstream, StatusCode: resp.StatusCode, Err: source.ErrUnavailable}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &source.FetchError{Source: Label, Operation: upstream, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &source.FetchError{Source: Label, Operation: upstream, Err: fmt.Errorf("%w: %v", source.ErrInvalidResponse, err)}
	}
	return nil
}
