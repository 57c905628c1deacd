package s2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matsen/scholarimpact/internal/source"
)

// newTestClient wires a Client to two fixture servers, one per upstream.
// Handlers are keyed by URL path.
func newTestClient(t *testing.T, s2Routes, oaRoutes map[string]string) *Client {
	t.Helper()
	s2Srv := httptest.NewServer(routeHandler(s2Routes))
	oaSrv := httptest.NewServer(routeHandler(oaRoutes))
	t.Cleanup(s2Srv.Close)
	t.Cleanup(oaSrv.Close)
	return NewClient(
		WithBaseURL(s2Srv.URL),
		WithOpenAlexBaseURL(oaSrv.URL),
		WithAPIKey("test-key"), // fast limiter
	)
}

func routeHandler(routes map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

const paperSearchBody = `{"data": [
	{"paperId": "weak", "title": "Attention Is Not What You Need", "year": 2020,
	 "venue": "arXiv", "citationCount": 3},
	{"paperId": "p42", "title": "Attention Is All You Need", "year": 2017,
	 "venue": "NeurIPS", "citationCount": 90000, "influentialCitationCount": 9000,
	 "url": "https://example.org/p42",
	 "externalIds": {"DOI": "10.5555/attention"},
	 "authors": [{"authorId": "a1", "name": "Ashish Vaswani"}]}
]}`

func TestSearchPaperPicksBestMatch(t *testing.T) {
	c := newTestClient(t, map[string]string{"/paper/search": paperSearchBody}, nil)

	p, err := c.SearchPaper(context.Background(), "Attention Is All You Need")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.PaperID != "p42" {
		t.Fatalf("paper = %+v, want p42", p)
	}
	if p.DOI != "10.5555/attention" || p.CitationCount != 90000 {
		t.Errorf("fields = %+v", p)
	}
	if len(p.Authors) != 1 || p.Authors[0].AuthorID != "s2:a1" {
		t.Errorf("authors = %+v, want prefixed s2 ID", p.Authors)
	}
}

func TestSearchPaperNoResults(t *testing.T) {
	c := newTestClient(t, map[string]string{"/paper/search": `{"data": []}`}, nil)
	p, err := c.SearchPaper(context.Background(), "Nothing Matches This")
	if err != nil || p != nil {
		t.Errorf("got (%+v, %v), want (nil, nil)", p, err)
	}
}

func TestGetCitations(t *testing.T) {
	body := `{"data": [
		{"isInfluential": true, "contexts": ["we build on this"],
		 "citingPaper": {"paperId": "c1", "title": "Citing One", "year": 2021,
		   "venue": "ICML",
		   "authors": [
		     {"authorId": "a1", "name": "Alice Alpha"},
		     {"authorId": "a2", "name": "Bob Beta"},
		     {"authorId": "a3", "name": "Carla Gamma"},
		     {"authorId": "a4", "name": "Dan Delta"}
		   ]}},
		{"isInfluential": false,
		 "citingPaper": {"paperId": "c2", "title": "Citing Two", "year": 2022, "venue": ""}}
	], "next": null}`
	c := newTestClient(t, map[string]string{"/paper/p42/citations": body}, nil)

	cites, err := c.GetCitations(context.Background(), "p42", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cites) != 2 {
		t.Fatalf("citations = %d", len(cites))
	}

	first := cites[0]
	if !first.IsInfluential || first.Venue != "ICML" {
		t.Errorf("first = %+v", first)
	}
	if len(first.CitingAuthors) != 4 {
		t.Errorf("citing authors = %d, want all 4 names", len(first.CitingAuthors))
	}
	if len(first.AuthorsWithIDs) != 3 {
		t.Errorf("ID-bearing authors = %d, want capped at 3", len(first.AuthorsWithIDs))
	}

	if cites[1].Venue != "Unknown" {
		t.Errorf("empty venue = %q, want Unknown", cites[1].Venue)
	}
}

func TestGetCitationsPaginates(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "0" {
			w.Write([]byte(`{"data": [{"citingPaper": {"paperId": "c1", "title": "One"}}], "next": 1}`))
			return
		}
		w.Write([]byte(`{"data": [{"citingPaper": {"paperId": "c2", "title": "Two"}}], "next": null}`))
	}))
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"))

	cites, err := c.GetCitations(context.Background(), "p42", 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(cites) != 2 || pages != 2 {
		t.Errorf("cites = %d over %d pages", len(cites), pages)
	}
}

func TestGetAuthorByIDEnriched(t *testing.T) {
	s2Routes := map[string]string{
		"/author/a1": `{"authorId": "a1", "name": "Alice Alpha", "hIndex": 30,
			"paperCount": 120, "citationCount": 4000}`,
	}
	oaRoutes := map[string]string{
		"/authors": `{"results": [{"display_name": "Alice Alpha",
			"works_count": 130, "cited_by_count": 4500,
			"summary_stats": {"h_index": 28},
			"last_known_institutions": [{"display_name": "MIT", "type": "education"}],
			"ids": {"orcid": "https://orcid.org/0000-0001-2345-6789"}}]}`,
	}
	c := newTestClient(t, s2Routes, oaRoutes)

	a, err := c.GetAuthorByID(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Affiliation != "MIT" {
		t.Errorf("affiliation = %q", a.Affiliation)
	}
	if a.OrcidID != "0000-0001-2345-6789" {
		t.Errorf("orcid = %q, want URL prefix stripped", a.OrcidID)
	}
	// The structured h-index (30) beats the lower OpenAlex one (28).
	if a.HIndex != 30 || a.HIndexSource != "semantic_scholar" {
		t.Errorf("h = %d source = %q", a.HIndex, a.HIndexSource)
	}
}

func TestGetAuthorByIDHigherOpenAlexHIndexWins(t *testing.T) {
	s2Routes := map[string]string{
		"/author/a1": `{"authorId": "a1", "name": "Alice Alpha", "hIndex": 10}`,
	}
	oaRoutes := map[string]string{
		"/authors": `{"results": [{"display_name": "Alice Alpha",
			"summary_stats": {"h_index": 33}}]}`,
	}
	c := newTestClient(t, s2Routes, oaRoutes)

	a, err := c.GetAuthorByID(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if a.HIndex != 33 || a.HIndexSource != "openalex" {
		t.Errorf("h = %d source = %q, want 33/openalex", a.HIndex, a.HIndexSource)
	}
}

func TestGetAuthorByIDNotFound(t *testing.T) {
	c := newTestClient(t, nil, nil)
	a, err := c.GetAuthorByID(context.Background(), "missing")
	if err != nil || a != nil {
		t.Errorf("got (%+v, %v), want (nil, nil)", a, err)
	}
}

func TestGetAuthorFallsBackToOpenAlex(t *testing.T) {
	s2Routes := map[string]string{"/author/search": `{"data": []}`}
	oaRoutes := map[string]string{
		"/authors": `{"results": [{"display_name": "Wei Zhang",
			"works_count": 40, "cited_by_count": 900,
			"summary_stats": {"h_index": 15},
			"last_known_institutions": [{"display_name": "Tsinghua University"}]}]}`,
	}
	c := newTestClient(t, s2Routes, oaRoutes)

	a, err := c.GetAuthor(context.Background(), "Wei Zhang")
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || a.HIndexSource != "openalex" || a.HIndex != 15 {
		t.Fatalf("author = %+v", a)
	}
	if a.Affiliation != "Tsinghua University" {
		t.Errorf("affiliation = %q", a.Affiliation)
	}
}

func TestGetAuthorRejectsWrongLastName(t *testing.T) {
	// A search hit for a different person must not be returned.
	s2Routes := map[string]string{
		"/author/search": `{"data": [{"authorId": "x", "name": "Someone Unrelated", "hIndex": 99}]}`,
	}
	oaRoutes := map[string]string{"/authors": `{"results": []}`}
	c := newTestClient(t, s2Routes, oaRoutes)

	a, err := c.GetAuthor(context.Background(), "Wei Zhang")
	if err != nil {
		t.Fatal(err)
	}
	if a != nil {
		t.Errorf("author = %+v, want nil for a non-matching hit", a)
	}
}

func TestGetAuthorForPaper(t *testing.T) {
	s2Routes := map[string]string{
		"/paper/search": `{"data": [{"paperId": "p1", "title": "Citing Paper Alpha",
			"citationCount": 50,
			"authors": [
				{"authorId": "a9", "name": "Xavier Yoon"},
				{"authorId": "a1", "name": "Carol Smith"}
			]}]}`,
		"/author/a1": `{"authorId": "a1", "name": "Carol Smith", "hIndex": 14}`,
	}
	oaRoutes := map[string]string{"/authors": `{"results": []}`}
	c := newTestClient(t, s2Routes, oaRoutes)

	a, err := c.GetAuthorForPaper(context.Background(), "C. Smith", "Citing Paper Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || a.SemanticScholarID != "a1" {
		t.Fatalf("author = %+v, want co-author a1", a)
	}
}

func TestRateLimitedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"))
	// Pester retries 429s; keep the test quick.
	c.http.MaxRetries = 1

	_, err := c.SearchPaper(context.Background(), "anything")
	if !source.IsRateLimited(err) {
		t.Errorf("err = %v, want rate-limited", err)
	}
	var fe *source.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("err = %v, want FetchError with status 429", err)
	}
}

func TestLookupVenue(t *testing.T) {
	oaRoutes := map[string]string{
		"/sources": `{"results": [{"display_name": "NeurIPS", "type": "conference",
			"works_count": 20000, "cited_by_count": 900000,
			"summary_stats": {"h_index": 278}}]}`,
	}
	c := newTestClient(t, nil, oaRoutes)

	v, err := c.LookupVenue(context.Background(), "NeurIPS")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.RankTier != "A*" {
		t.Fatalf("venue = %+v, want A* tier", v)
	}
}

func TestVenueTier(t *testing.T) {
	tests := []struct {
		hIndex int
		want   string
	}{
		{278, "A*"}, {150, "A*"}, {149, "A"}, {100, "A"},
		{99, "B"}, {50, "B"}, {49, "C"}, {1, "C"}, {0, "Unranked"},
	}
	for _, tt := range tests {
		if got := venueTier(tt.hIndex); got != tt.want {
			t.Errorf("venueTier(%d) = %q, want %q", tt.hIndex, got, tt.want)
		}
	}
}
