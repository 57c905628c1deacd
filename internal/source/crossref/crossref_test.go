package crossref

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithMailto("ops@example.org"))
}

const worksBody = `{"message": {"items": [
	{"title": ["A Completely Different Paper"], "DOI": "10.1/other",
	 "is-referenced-by-count": 500},
	{"title": ["Deep Residual Learning for Image Recognition"],
	 "container-title": ["CVPR"], "DOI": "10.1109/cvpr.2016.90",
	 "URL": "https://doi.org/10.1109/cvpr.2016.90",
	 "is-referenced-by-count": 120000,
	 "published": {"date-parts": [[2016, 6]]},
	 "author": [{"given": "Kaiming", "family": "He"}]},
	{"title": ["Deep Residual Learning for Image Recognition (Preprint)"],
	 "DOI": "10.48550/arxiv.1512.03385", "is-referenced-by-count": 800,
	 "published": {"date-parts": [[2015]]}}
]}}`

func TestSearchPaper(t *testing.T) {
	var gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(worksBody))
	})

	p, err := c.SearchPaper(context.Background(), "Deep Residual Learning for Image Recognition")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("no paper")
	}
	// Both residual-learning entries contain the query title; the more
	// cited one wins.
	if p.DOI != "10.1109/cvpr.2016.90" {
		t.Errorf("DOI = %q", p.DOI)
	}
	if p.Venue != "CVPR" || p.Year != 2016 {
		t.Errorf("venue/year = %q/%d", p.Venue, p.Year)
	}
	if len(p.Authors) != 1 || p.Authors[0].Name != "Kaiming He" {
		t.Errorf("authors = %+v", p.Authors)
	}
	if gotUA != "scholarimpact/1.0 (mailto:ops@example.org)" {
		t.Errorf("user-agent = %q", gotUA)
	}
}

func TestSearchPaperNoMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"items": [
			{"title": ["Unrelated Work on Unrelated Topics"], "DOI": "10.1/x",
			 "is-referenced-by-count": 9}
		]}}`))
	})
	p, err := c.SearchPaper(context.Background(), "Graph Attention Networks")
	if err != nil || p != nil {
		t.Errorf("got (%+v, %v), want (nil, nil)", p, err)
	}
}

func TestGetByDOI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/10.1109%2Fcvpr.2016.90" && r.URL.Path != "/works/10.1109/cvpr.2016.90" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"message": {"title": ["Deep Residual Learning for Image Recognition"],
			"DOI": "10.1109/cvpr.2016.90", "container-title": ["CVPR"],
			"published": {"date-parts": [[2016]]}}}`))
	})

	p, err := c.GetByDOI(context.Background(), "10.1109/cvpr.2016.90")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Venue != "CVPR" {
		t.Fatalf("paper = %+v", p)
	}
}

func TestGetByDOINotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	p, err := c.GetByDOI(context.Background(), "10.9999/missing")
	if err != nil || p != nil {
		t.Errorf("got (%+v, %v), want (nil, nil)", p, err)
	}
}
