// Package orcid resolves author identity and affiliation through the
// public ORCID API. ORCID has no citation metrics, so profiles from
// here carry h-index 0 and exist to pin down who a person is and where
// they work.
package orcid

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
	"github.com/matsen/scholarimpact/internal/normalize"
	"github.com/matsen/scholarimpact/internal/source"
)

const (
	// BaseURL is the public ORCID API base URL.
	BaseURL = "https://pub.orcid.org/v3.0"

	// Label identifies this adapter in errors and provenance fields.
	Label = "orcid"

	requestInterval = 100 * time.Millisecond
)

// Client queries the public ORCID API.
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

// NewClient creates an ORCID client.
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

type expandedResult struct {
	OrcidID         string   `json:"orcid-id"`
	GivenNames      string   `json:"given-names"`
	FamilyNames     string   `json:"family-names"`
	InstitutionName []string `json:"institution-name"`
}

func (r expandedResult) toAuthor() *citation.Author {
	a := &citation.Author{
		Name:         strings.TrimSpace(r.GivenNames + " " + r.FamilyNames),
		OrcidID:      r.OrcidID,
		HIndexSource: citation.SourceORCID,
	}
	if len(r.InstitutionName) > 0 {
		a.Affiliation = r.InstitutionName[0]
	}
	return a
}

// GetAuthor searches the expanded-search endpoint and returns the first
// result whose family name matches.
func (c *Client) GetAuthor(ctx context.Context, name string) (*citation.Author, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("rows", "5")

	var resp struct {
		Results []expandedResult `json:"expanded-result"`
	}
	if err := c.get(ctx, "/expanded-search/", params, &resp); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	wantLast := normalize.LastName(name)
	for _, r := range resp.Results {
		if strings.EqualFold(r.FamilyNames, wantLast) {
			return r.toAuthor(), nil
		}
	}
	return nil, nil
}

// GetAuthorByID fetches one record, taking the name from the person
// section and the affiliation from the newest employment.
func (c *Client) GetAuthorByID(ctx context.Context, id string) (*citation.Author, error) {
	var record struct {
		Person struct {
			Name struct {
				GivenNames struct {
					Value string `json:"value"`
				} `json:"given-names"`
				FamilyName struct {
					Value string `json:"value"`
				} `json:"family-name"`
			} `json:"name"`
		} `json:"person"`
		Activities struct {
			Employments struct {
				AffiliationGroup []struct {
					Summaries []struct {
						Summary struct {
							Organization struct {
								Name string `json:"name"`
							} `json:"organization"`
						} `json:"employment-summary"`
					} `json:"summaries"`
				} `json:"affiliation-group"`
			} `json:"employments"`
		} `json:"activities-summary"`
	}
	if err := c.get(ctx, "/"+url.PathEscape(id)+"/record", nil, &record); err != nil {
		if source.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	name := strings.TrimSpace(record.Person.Name.GivenNames.Value + " " + record.Person.Name.FamilyName.Value)
	if name == "" {
		return nil, nil
	}
	author := &citation.Author{
		Name:         name,
		OrcidID:      id,
		HIndexSource: citation.SourceORCID,
	}
	groups := record.Activities.Employments.AffiliationGroup
	if len(groups) > 0 && len(groups[0].Summaries) > 0 {
		author.Affiliation = groups[0].Summaries[0].Summary.Organization.Name
	}
	return author, nil
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
	req.Header.Set("Accept", "application/json")

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
