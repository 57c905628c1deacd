package orcid

import (
	"context"
	"fmt"
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
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

const expandedSearchBody = `{
	"expanded-result": [
		{"orcid-id": "0000-0001-0000-0001", "given-names": "Josiah", "family-names": "Stinkney", "institution-name": ["Wesleyan University"]},
		{"orcid-id": "0000-0002-1825-0097", "given-names": "Josiah", "family-names": "Carberry", "institution-name": ["Brown University", "Wesleyan University"]}
	]
}`

func TestGetAuthor(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/expanded-search/": expandedSearchBody,
	})

	author, err := c.GetAuthor(context.Background(), "Josiah Carberry")
	if err != nil {
		t.Fatal(err)
	}
	if author == nil {
		t.Fatal("no author returned")
	}
	if author.Name != "Josiah Carberry" {
		t.Errorf("name = %q", author.Name)
	}
	if author.OrcidID != "0000-0002-1825-0097" {
		t.Errorf("orcid id = %q", author.OrcidID)
	}
	if author.Affiliation != "Brown University" {
		t.Errorf("affiliation = %q, want first institution", author.Affiliation)
	}
	if author.HIndex != 0 {
		t.Errorf("h-index = %d, want 0 (ORCID has no metrics)", author.HIndex)
	}
}

func TestGetAuthorRejectsWrongLastName(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/expanded-search/": expandedSearchBody,
	})

	author, err := c.GetAuthor(context.Background(), "Josiah Hopper")
	if err != nil {
		t.Fatal(err)
	}
	if author != nil {
		t.Errorf("family-name mismatch accepted: %+v", author)
	}
}

func TestGetAuthorByID(t *testing.T) {
	record := `{
		"person": {"name": {"given-names": {"value": "Josiah"}, "family-name": {"value": "Carberry"}}},
		"activities-summary": {"employments": {"affiliation-group": [
			{"summaries": [{"employment-summary": {"organization": {"name": "Brown University"}}}]}
		]}}
	}`
	c := newTestClient(t, map[string]string{
		"/0000-0002-1825-0097/record": record,
	})

	author, err := c.GetAuthorByID(context.Background(), "0000-0002-1825-0097")
	if err != nil {
		t.Fatal(err)
	}
	if author == nil {
		t.Fatal("no author returned")
	}
	if author.Name != "Josiah Carberry" {
		t.Errorf("name = %q", author.Name)
	}
	if author.Affiliation != "Brown University" {
		t.Errorf("affiliation = %q", author.Affiliation)
	}
	if author.OrcidID != "0000-0002-1825-0097" {
		t.Errorf("orcid id = %q", author.OrcidID)
	}
}

func TestGetAuthorByIDNotFound(t *testing.T) {
	c := newTestClient(t, map[string]string{})

	author, err := c.GetAuthorByID(context.Background(), "0000-0000-0000-0000")
	if err != nil {
		t.Fatalf("missing record should not error: %v", err)
	}
	if author != nil {
		t.Errorf("author = %+v, want nil", author)
	}
}

func TestGetAuthorByIDNamelessRecord(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/0000-0003-0000-0003/record": `{"person": {"name": {}}}`,
	})

	author, err := c.GetAuthorByID(context.Background(), "0000-0003-0000-0003")
	if err != nil {
		t.Fatal(err)
	}
	if author != nil {
		t.Errorf("nameless record produced author: %+v", author)
	}
}
