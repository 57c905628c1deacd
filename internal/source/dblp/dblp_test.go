package dblp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestSearchPaper(t *testing.T) {
	routes := map[string]string{
		"/publ/api": `{"result": {"hits": {"hit": [
			{"info": {"title": "An Unrelated Survey.", "venue": "CSUR", "year": "2020"}},
			{"info": {"title": "Attention Is All You Need.", "venue": "NeurIPS",
			  "year": "2017", "doi": "10.5555/attention", "key": "conf/nips/VaswaniSPUJGKP17",
			  "authors": {"author": [
			    {"text": "Ashish Vaswani"}, {"text": "Noam Shazeer"}
			  ]}}}
		]}}}`,
	}
	c := newTestClient(t, routes)

	p, err := c.SearchPaper(context.Background(), "Attention Is All You Need")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Venue != "NeurIPS" || p.Year != 2017 {
		t.Fatalf("paper = %+v", p)
	}
	if p.PaperID != "conf/nips/VaswaniSPUJGKP17" {
		t.Errorf("key = %q", p.PaperID)
	}
	if len(p.Authors) != 2 {
		t.Errorf("authors = %+v", p.Authors)
	}
}

func TestSearchPaperSingleAuthorObject(t *testing.T) {
	routes := map[string]string{
		"/publ/api": `{"result": {"hits": {"hit": [
			{"info": {"title": "A Solo Effort.", "venue": "SOSP", "year": "2019",
			  "authors": {"author": {"text": "Grace Hopper"}}}}
		]}}}`,
	}
	c := newTestClient(t, routes)

	p, err := c.SearchPaper(context.Background(), "A Solo Effort")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || len(p.Authors) != 1 || p.Authors[0].Name != "Grace Hopper" {
		t.Fatalf("paper = %+v", p)
	}
}

func TestSearchPaperNoHits(t *testing.T) {
	c := newTestClient(t, map[string]string{"/publ/api": `{"result": {"hits": {}}}`})
	p, err := c.SearchPaper(context.Background(), "No Such Paper")
	if err != nil || p != nil {
		t.Errorf("got (%+v, %v), want (nil, nil)", p, err)
	}
}

func TestSearchVenue(t *testing.T) {
	routes := map[string]string{
		"/venue/api": `{"result": {"hits": {"hit": [
			{"info": {"venue": "International Conference on Machine Learning", "type": "Conference or Workshop"}}
		]}}}`,
	}
	c := newTestClient(t, routes)

	v, err := c.SearchVenue(context.Background(), "ICML")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.Type != "Conference or Workshop" {
		t.Fatalf("venue = %+v", v)
	}
}

func TestAuthorListUnmarshal(t *testing.T) {
	var l authorList
	if err := json.Unmarshal([]byte(`[{"text": "A"}, {"text": "B"}]`), &l); err != nil {
		t.Fatal(err)
	}
	if len(l) != 2 {
		t.Errorf("array form = %d entries", len(l))
	}
	if err := json.Unmarshal([]byte(`{"text": "Solo"}`), &l); err != nil {
		t.Fatal(err)
	}
	if len(l) != 1 || l[0].Text != "Solo" {
		t.Errorf("object form = %+v", l)
	}
}
