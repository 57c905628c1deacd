package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/scholarimpact/internal/citation"
)

type fakeResult struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func newTestResults(t *testing.T, opts ...Option) *Results {
	t.Helper()
	c, err := NewResults(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("NewResults: %v", err)
	}
	return c
}

func TestResultsRoundTrip(t *testing.T) {
	c := newTestResults(t)
	k := Key{Title: "Deep Residual Learning", HIndexThreshold: 20, MaxCitations: 100, DataSource: "api"}

	if !c.Put(k, fakeResult{Title: "Deep Residual Learning", Count: 5}) {
		t.Fatal("Put returned false")
	}

	var got fakeResult
	if !c.Get(k, &got) {
		t.Fatal("Get missed a just-written entry")
	}
	if got.Count != 5 {
		t.Errorf("count = %d, want 5", got.Count)
	}
}

func TestKeyCanonicalization(t *testing.T) {
	c := newTestResults(t)
	c.Put(Key{Title: "Deep Learning", DataSource: "api"}, fakeResult{Count: 1})

	var got fakeResult
	if !c.Get(Key{Title: "  deep learning ", DataSource: "api"}, &got) {
		t.Error("title case/whitespace should not change the cache key")
	}
	if c.Get(Key{Title: "Deep Learning", DataSource: "scholar"}, &got) {
		t.Error("different data_source must not share a key")
	}
	if c.Get(Key{Title: "Deep Learning", DataSource: "api", MaxCitations: 50}, &got) {
		t.Error("different max_citations must not share a key")
	}
}

func TestResultsTTLBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	c := newTestResults(t, WithClock(func() time.Time { return *clock }))
	k := Key{Title: "Some Paper", DataSource: "api"}
	c.Put(k, fakeResult{Count: 1})

	var got fakeResult
	justInside := now.Add(7*24*time.Hour - time.Minute)
	clock = &justInside
	if !c.Get(k, &got) {
		t.Fatal("entry expired before TTL")
	}

	justPast := now.Add(7*24*time.Hour + time.Minute)
	clock = &justPast
	if c.Get(k, &got) {
		t.Fatal("entry served past TTL")
	}

	// Expiry deleted the file.
	if entries := c.List(); len(entries) != 0 {
		t.Errorf("expired entry still listed: %d entries", len(entries))
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := NewResults(dir)
	if err != nil {
		t.Fatal(err)
	}
	k := Key{Title: "Some Paper", DataSource: "api"}
	c.Put(k, fakeResult{Count: 1})

	files, _ := filepath.Glob(filepath.Join(dir, "result_*.json"))
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	os.WriteFile(files[0], []byte("{broken"), 0o644)

	var got fakeResult
	if c.Get(k, &got) {
		t.Fatal("corrupt entry served as hit")
	}
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Error("corrupt entry not deleted")
	}
}

func TestListAndClear(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &now
	c := newTestResults(t, WithClock(func() time.Time { return *clock }))

	c.Put(Key{Title: "Old Paper", DataSource: "api"}, fakeResult{})
	later := now.Add(3 * 24 * time.Hour)
	clock = &later
	c.Put(Key{Title: "New Paper", DataSource: "api"}, fakeResult{})

	if entries := c.List(); len(entries) != 2 {
		t.Fatalf("listed %d entries, want 2", len(entries))
	}

	if n := c.Clear(2 * 24 * time.Hour); n != 1 {
		t.Fatalf("cleared %d, want 1 (only the old entry)", n)
	}
	if n := c.Clear(0); n != 1 {
		t.Fatalf("full clear removed %d, want 1", n)
	}
	if entries := c.List(); len(entries) != 0 {
		t.Errorf("%d entries survived full clear", len(entries))
	}
}

func TestPublicationsNoTTL(t *testing.T) {
	p, err := NewPublications(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	pubs := []citation.Publication{
		{Title: "My First Paper", CitesID: "1234567890"},
		{Title: "My Second Paper"},
	}
	if err := p.Put("waVL0PgAAAAJ", pubs); err != nil {
		t.Fatal(err)
	}

	got, ok := p.Get("waVL0PgAAAAJ")
	if !ok {
		t.Fatal("publications missed")
	}
	if len(got) != 2 || got[0].CitesID != "1234567890" {
		t.Errorf("got %+v", got)
	}

	if _, ok := p.Get("unknown"); ok {
		t.Error("hit for unknown author")
	}

	if err := p.Delete("waVL0PgAAAAJ"); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Get("waVL0PgAAAAJ"); ok {
		t.Error("publications survived delete")
	}
	if err := p.Delete("waVL0PgAAAAJ"); err != nil {
		t.Errorf("double delete errored: %v", err)
	}
}
