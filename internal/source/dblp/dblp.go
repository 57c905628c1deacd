// Package dblp queries the DBLP search API. Coverage is computer
// science only, which makes it a useful venue fallback for CS papers
// that structured sources list with an empty venue.
package dblp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/source"
)

const (
	// BaseURL is the DBLP search API base URL.
	BaseURL = "https://dblp.org/search"

	// Label identifies this adapter in errors and provenance fields.
	Label = "dblp"

	requestInterval = 500 * time.Millisecond
)

// Client queries the DBLP search API.
type Client struct {
	http    *pester.Client
	limiter *rate.Limiter
	baseURL string
	log     logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithLogger sets the adapter logger.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a DBLP client.
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

type hit struct {
	Info struct {
		Title   string `json:"title"`
		Venue   string `json:"venue"`
		Year    string `json:"year"`
		DOI     string `json:"doi"`
		URL     string `json:"url"`
		Key     string `json:"key"`
		Authors struct {
			Author authorList `json:"author"`
		} `json:"authors"`
	} `json:"info"`
}

// authorList tolerates DBLP returning a single object instead of an
// array when a paper has one author.
type authorList []struct {
	Text string `json:"text"`
}

func (l *authorList) UnmarshalJSON(data []byte) error {
	type entry struct {
		Text string `json:"text"`
	}
	var many []entry
	if err := json.Unmarshal(data, &many); err == nil {
		*l = make(authorList, len(many))
		for i, e := range many {
			(*l)[i] = e
		}
		return nil
	}
	var one entry
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = authorList{one}
	return nil
}

type searchResponse struct {
	Result struct {
		Hits struct {
			Hit []hit `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

// SearchPaper returns the first title-matching publication hit.
func (c *Client) SearchPaper(ctx context.Context, title string) (*citation.Paper, error) {
	params := url.Values{}
	params.Set("q", title)
	params.Set("format", "json")
	params.Set("h", "5")

	var resp searchResponse
	if err := c.get(ctx, "/publ/api", params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, h := range resp.Result.Hits.Hit {
		if !match.Titles(title, h.Info.Title) {
			continue
		}
		p := &citation.Paper{
			PaperID: h.Info.Key,
			Title:   h.Info.Title,
			Venue:   h.Info.Venue,
			DOI:     h.Info.DOI,
			URL:     h.Info.URL,
		}
		fmt.Sscanf(h.Info.Year, "%d", &p.Year)
		for _, a := range h.Info.Authors.Author {
			p.Authors = append(p.Authors, citation.AuthorInfo{Name: a.Text})
		}
		return p, nil
	}
	return nil, nil
}

// SearchVenue returns the first venue hit for a name.
func (c *Client) SearchVenue(ctx context.Context, name string) (*citation.Venue, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("format", "json")
	params.Set("h", "1")

	var resp struct {
		Result struct {
			Hits struct {
				Hit []struct {
					Info struct {
						Venue string `json:"venue"`
						Type  string `json:"type"`
					} `json:"info"`
				} `json:"hit"`
			} `json:"hits"`
		} `json:"result"`
	}
	if err := c.get(ctx, "/venue/api", params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Result.Hits.Hit) == 0 {
		return nil, nil
	}
	info := resp.Result.Hits.Hit[0].Info
	return &citation.Venue{Name: info.Venue, Type: info.Type}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
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
