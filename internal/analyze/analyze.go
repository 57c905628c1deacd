// Package analyze turns a reconciled citation list into the impact
// report: who cites the paper, from where, in what venues, with what
// influence. Pure aggregation; all network work happened upstream.
package analyze

import (
	"sort"
	"time"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/rankings"
	"github.com/matsen/scholarimpact/internal/reconcile"
)

// recencyYears is the "recent citation" window.
const recencyYears = 2

// Result is the impact report. Every field is present in every result:
// a failed analysis returns the same shape with Error set and all
// counts zero, so callers never special-case a short payload.
type Result struct {
	PaperTitle        string `json:"paper_title"`
	PaperYear         int    `json:"paper_year"`
	TotalCitations    int    `json:"total_citations"`
	AnalyzedCitations int    `json:"analyzed_citations"`

	HighProfileAuthors []reconcile.ResolvedAuthor `json:"high_profile_authors"`
	AllAuthors         []reconcile.ResolvedAuthor `json:"all_authors"`

	InstitutionBreakdown map[string]int `json:"institution_breakdown"`
	VenueBreakdown       map[string]int `json:"venue_breakdown"`
	VenueTiers           map[string]int `json:"venue_tiers"`
	YearBreakdown        map[int]int    `json:"year_breakdown"`

	InfluentialCitations []citation.Citation `json:"influential_citations"`
	RecentCitations      int                 `json:"recent_citations"`

	Error string `json:"error,omitempty"`
}

// Aggregator computes impact reports.
type Aggregator struct {
	threshold int
	ranks     rankings.Lookup
	now       func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRankings sets the venue rank lookup.
func WithRankings(r rankings.Lookup) Option {
	return func(a *Aggregator) { a.ranks = r }
}

// WithClock replaces the time source, for recency-window tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an Aggregator with the given high-profile h-index cutoff.
func New(threshold int, opts ...Option) *Aggregator {
	a := &Aggregator{threshold: threshold, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Empty returns the canonical zero result carrying an error message.
func Empty(title, errMsg string) *Result {
	return &Result{
		PaperTitle:           title,
		HighProfileAuthors:   []reconcile.ResolvedAuthor{},
		AllAuthors:           []reconcile.ResolvedAuthor{},
		InstitutionBreakdown: map[string]int{},
		VenueBreakdown:       map[string]int{},
		VenueTiers:           map[string]int{},
		YearBreakdown:        map[int]int{},
		InfluentialCitations: []citation.Citation{},
		Error:                errMsg,
	}
}

// Aggregate builds the report from one reconciled analysis.
// Deterministic given identical input and current date.
func (a *Aggregator) Aggregate(an *reconcile.Analysis) *Result {
	res := Empty("", "")
	if an == nil || an.Paper == nil {
		res.Error = "nothing to aggregate"
		return res
	}
	res.PaperTitle = an.Paper.Title
	res.PaperYear = an.Paper.Year
	res.TotalCitations = an.Paper.CitationCount
	res.AnalyzedCitations = len(an.Citations)

	res.AllAuthors = append(res.AllAuthors, an.Authors...)
	for _, author := range an.Authors {
		if author.HIndex >= a.threshold {
			res.HighProfileAuthors = append(res.HighProfileAuthors, author)
		}
		cat := string(author.InstitutionType)
		if cat == "" {
			cat = string(citation.InstOther)
		}
		res.InstitutionBreakdown[cat]++
	}
	// Descending h-index, original order on ties.
	sort.SliceStable(res.HighProfileAuthors, func(i, j int) bool {
		return res.HighProfileAuthors[i].HIndex > res.HighProfileAuthors[j].HIndex
	})

	currentYear := a.now().Year()
	for _, c := range an.Citations {
		if c.Venue != "" {
			res.VenueBreakdown[c.Venue]++
			res.VenueTiers[a.venueTier(c.Venue)]++
		}
		if c.Year > 0 {
			res.YearBreakdown[c.Year]++
			if c.Year >= currentYear-(recencyYears-1) {
				res.RecentCitations++
			}
		}
		if c.IsInfluential {
			res.InfluentialCitations = append(res.InfluentialCitations, c)
		}
	}
	return res
}

func (a *Aggregator) venueTier(venue string) string {
	if a.ranks != nil {
		if info, err := a.ranks.LookupVenue(venue); err == nil && info != nil {
			return info.Tier
		}
	}
	return "Unranked"
}
