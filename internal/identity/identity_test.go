package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/scholarimpact/internal/citation"
)

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	ix, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ix
}

func TestMultiKeyReachability(t *testing.T) {
	ix := newTestIndex(t)

	ok := ix.UpdateProfile(
		citation.Author{Name: "Jane Doe", GoogleScholarID: "abc123", HIndex: 12},
		[]citation.Publication{{Title: "A Study of Widgets in Practice"}},
	)
	if !ok {
		t.Fatal("UpdateProfile returned false")
	}

	lookups := []struct {
		name string
		q    Query
	}{
		{"by name", Query{Name: "Jane Doe"}},
		{"by normalized name", Query{Name: "  JANE   DOE  "}},
		{"by google scholar id", Query{GoogleScholarID: "abc123"}},
	}
	for _, tt := range lookups {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ix.GetByAnyID(tt.q)
			if !ok {
				t.Fatal("profile not found")
			}
			if p.Author.HIndex != 12 {
				t.Errorf("h-index = %d, want 12", p.Author.HIndex)
			}
		})
	}

	t.Run("by publication overlap", func(t *testing.T) {
		p, ok := ix.FindByPublications([]citation.Publication{{Title: "A Study of Widgets in Practice"}}, 1)
		if !ok {
			t.Fatal("profile not found by publications")
		}
		if p.Author.Name != "Jane Doe" {
			t.Errorf("name = %q, want Jane Doe", p.Author.Name)
		}
	})
}

func TestGetByAnyIDMiss(t *testing.T) {
	ix := newTestIndex(t)
	if _, ok := ix.GetByAnyID(Query{Name: "Nobody"}); ok {
		t.Error("expected miss on empty index")
	}
	if _, ok := ix.GetByAnyID(Query{}); ok {
		t.Error("expected miss on empty query")
	}
}

func TestTTLBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	ix := newTestIndex(t, WithClock(func() time.Time { return *clock }))

	ix.UpdateProfile(citation.Author{Name: "Jane Doe", HIndex: 5}, nil)

	justInside := now.Add(30*24*time.Hour - time.Minute)
	clock = &justInside
	if _, ok := ix.GetByAnyID(Query{Name: "Jane Doe"}); !ok {
		t.Fatal("profile expired before TTL")
	}

	justPast := now.Add(30*24*time.Hour + time.Minute)
	clock = &justPast
	if _, ok := ix.GetByAnyID(Query{Name: "Jane Doe"}); ok {
		t.Fatal("profile served past TTL")
	}

	// Lazy expiry deleted the entry; it stays gone even if time rewinds.
	clock = &now
	if _, ok := ix.GetByAnyID(Query{Name: "Jane Doe"}); ok {
		t.Fatal("expired profile came back")
	}
}

func TestMergeNeverLoses(t *testing.T) {
	ix := newTestIndex(t)

	ix.UpdateProfile(citation.Author{
		Name: "Jane Doe", HIndex: 10, HIndexSource: citation.SourceSemanticScholar,
	}, nil)

	// Lower incoming h-index changes nothing, label included.
	ix.UpdateProfile(citation.Author{
		Name: "Jane Doe", HIndex: 8, HIndexSource: citation.SourceGoogleScholar,
	}, nil)
	p, ok := ix.GetByAnyID(Query{Name: "Jane Doe"})
	if !ok {
		t.Fatal("profile not found")
	}
	if p.Author.HIndex != 10 || p.Author.HIndexSource != citation.SourceSemanticScholar {
		t.Errorf("after lower merge: h=%d source=%q, want 10/semantic_scholar",
			p.Author.HIndex, p.Author.HIndexSource)
	}

	// Strictly higher incoming value updates both value and label.
	ix.UpdateProfile(citation.Author{
		Name: "Jane Doe", HIndex: 15, HIndexSource: citation.SourceGoogleScholar,
	}, nil)
	p, _ = ix.GetByAnyID(Query{Name: "Jane Doe"})
	if p.Author.HIndex != 15 || p.Author.HIndexSource != citation.SourceGoogleScholar {
		t.Errorf("after higher merge: h=%d source=%q, want 15/google_scholar",
			p.Author.HIndex, p.Author.HIndexSource)
	}
}

func TestMergeFillsEmptyFields(t *testing.T) {
	ix := newTestIndex(t)

	ix.UpdateProfile(citation.Author{Name: "Jane Doe", Affiliation: "Unknown"}, nil)
	ix.UpdateProfile(citation.Author{
		Name: "Jane Doe", Affiliation: "MIT", SemanticScholarID: "47504637", OrcidID: "0000-0001-2345-6789",
	}, nil)

	p, ok := ix.GetByAnyID(Query{Name: "Jane Doe"})
	if !ok {
		t.Fatal("profile not found")
	}
	if p.Author.Affiliation != "MIT" {
		t.Errorf("Unknown affiliation not replaced: %q", p.Author.Affiliation)
	}
	if p.Author.SemanticScholarID != "47504637" || p.Author.OrcidID == "" {
		t.Errorf("new IDs not merged: %+v", p.Author)
	}

	// The merged-in ID becomes a lookup key too.
	if _, ok := ix.GetByAnyID(Query{SemanticScholarID: "47504637"}); !ok {
		t.Error("profile not reachable by merged-in semantic scholar ID")
	}
}

func TestMergeDoesNotOverwriteFilledFields(t *testing.T) {
	ix := newTestIndex(t)

	ix.UpdateProfile(citation.Author{Name: "Jane Doe", Affiliation: "MIT"}, nil)
	ix.UpdateProfile(citation.Author{Name: "Jane Doe", Affiliation: "Stanford"}, nil)

	p, _ := ix.GetByAnyID(Query{Name: "Jane Doe"})
	if p.Author.Affiliation != "MIT" {
		t.Errorf("existing affiliation displaced: %q", p.Author.Affiliation)
	}
}

func TestStableFilenameAcrossMerges(t *testing.T) {
	dir := t.TempDir()
	ix, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	ix.UpdateProfile(citation.Author{Name: "Jane Doe"}, nil)
	ix.UpdateProfile(citation.Author{Name: "Jane Doe", GoogleScholarID: "abc123", HIndex: 3}, nil)
	ix.UpdateProfile(citation.Author{GoogleScholarID: "abc123", Affiliation: "MIT"}, nil)

	files, err := filepath.Glob(filepath.Join(dir, "profile_*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d profile files, want 1 (merges must rewrite in place)", len(files))
	}
}

func TestFindByPublicationsOverlapAndTieBreak(t *testing.T) {
	ix := newTestIndex(t)

	ix.UpdateProfile(citation.Author{Name: "First Author", GoogleScholarID: "first1"},
		[]citation.Publication{
			{Title: "Widgets at Scale"},
			{Title: "A Taxonomy of Sprockets"},
			{Title: "Sprocket Widget Interactions"},
		})
	ix.UpdateProfile(citation.Author{Name: "Second Author", GoogleScholarID: "second2"},
		[]citation.Publication{
			{Title: "Unrelated Work on Gears"},
			{Title: "More Gear Studies"},
		})

	t.Run("below min overlap", func(t *testing.T) {
		if _, ok := ix.FindByPublications([]citation.Publication{{Title: "Widgets at Scale"}}, 2); ok {
			t.Error("single overlap matched with min_overlap=2")
		}
	})

	t.Run("meets min overlap", func(t *testing.T) {
		p, ok := ix.FindByPublications([]citation.Publication{
			{Title: "Widgets at Scale"},
			{Title: "Sprocket Widget Interactions"},
		}, 2)
		if !ok {
			t.Fatal("no match with overlap 2")
		}
		if p.Author.Name != "First Author" {
			t.Errorf("matched %q, want First Author", p.Author.Name)
		}
	})

	t.Run("no match on unknown titles", func(t *testing.T) {
		if _, ok := ix.FindByPublications([]citation.Publication{{Title: "Never Seen Before"}}, 1); ok {
			t.Error("unexpected match")
		}
	})
}

func TestFindByPublicationsFirstInsertedWins(t *testing.T) {
	ix := newTestIndex(t)

	// Distinct titles per profile, then probe with one title from each so
	// both candidates count 1 and the tie goes to the earlier profile.
	ix.UpdateProfile(citation.Author{Name: "Early Bird", GoogleScholarID: "eb1"},
		[]citation.Publication{{Title: "Morning Worm Acquisition Strategies"}})
	ix.UpdateProfile(citation.Author{Name: "Late Riser", GoogleScholarID: "lr2"},
		[]citation.Publication{{Title: "Evening Worm Acquisition Strategies"}})

	p, ok := ix.FindByPublications([]citation.Publication{
		{Title: "Morning Worm Acquisition Strategies"},
		{Title: "Evening Worm Acquisition Strategies"},
	}, 1)
	if !ok {
		t.Fatal("no match")
	}
	if p.Author.Name != "Early Bird" {
		t.Errorf("tie went to %q, want the first-inserted profile", p.Author.Name)
	}
}

func TestCorruptProfileIsMiss(t *testing.T) {
	dir := t.TempDir()
	ix, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ix.UpdateProfile(citation.Author{Name: "Jane Doe"}, nil)

	files, _ := filepath.Glob(filepath.Join(dir, "profile_*.json"))
	if len(files) != 1 {
		t.Fatalf("got %d profile files, want 1", len(files))
	}
	if err := os.WriteFile(files[0], []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := ix.GetByAnyID(Query{Name: "Jane Doe"}); ok {
		t.Fatal("corrupt profile served as hit")
	}
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Error("corrupt profile file not deleted")
	}
}

func TestDeleteProfile(t *testing.T) {
	ix := newTestIndex(t)
	ix.UpdateProfile(citation.Author{Name: "Jane Doe", GoogleScholarID: "abc123"}, nil)

	if !ix.DeleteProfile(Query{GoogleScholarID: "abc123"}) {
		t.Fatal("DeleteProfile returned false")
	}
	if _, ok := ix.GetByAnyID(Query{Name: "Jane Doe"}); ok {
		t.Error("profile still reachable by name after delete")
	}
	if ix.DeleteProfile(Query{GoogleScholarID: "abc123"}) {
		t.Error("second delete reported success")
	}
}

func TestClear(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &now
	ix := newTestIndex(t, WithClock(func() time.Time { return *clock }))

	ix.UpdateProfile(citation.Author{Name: "Old Timer", GoogleScholarID: "old1"}, nil)
	later := now.Add(10 * 24 * time.Hour)
	clock = &later
	ix.UpdateProfile(citation.Author{Name: "New Comer", GoogleScholarID: "new1"}, nil)

	t.Run("clear older than", func(t *testing.T) {
		if n := ix.Clear(5 * 24 * time.Hour); n != 1 {
			t.Fatalf("cleared %d, want 1", n)
		}
		if _, ok := ix.GetByAnyID(Query{Name: "Old Timer"}); ok {
			t.Error("old profile survived")
		}
		if _, ok := ix.GetByAnyID(Query{Name: "New Comer"}); !ok {
			t.Error("fresh profile removed")
		}
	})

	t.Run("clear all", func(t *testing.T) {
		if n := ix.Clear(0); n != 1 {
			t.Fatalf("cleared %d, want 1", n)
		}
		if _, ok := ix.GetByAnyID(Query{Name: "New Comer"}); ok {
			t.Error("profile survived full clear")
		}
	})
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ix, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ix.UpdateProfile(citation.Author{Name: "Jane Doe", GoogleScholarID: "abc123", HIndex: 7}, nil)

	reopened, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := reopened.GetByAnyID(Query{GoogleScholarID: "abc123"})
	if !ok {
		t.Fatal("profile lost across reopen")
	}
	if p.Author.HIndex != 7 {
		t.Errorf("h-index = %d, want 7", p.Author.HIndex)
	}
}
