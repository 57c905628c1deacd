// Package reconcile merges citation and author records pulled from
// heterogeneous sources into one canonical view. The structured source
// supplies stable IDs and influence flags; the scraped source supplies
// self-maintained h-indexes and cites-IDs; the identity index remembers
// every resolution so the next run starts warmer.
package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/identity"
	"github.com/matsen/scholarimpact/internal/institution"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/source"
)

// ErrPaperNotFound reports that no source could resolve the paper under
// analysis. The only reconciliation failure that reaches the caller.
var ErrPaperNotFound = errors.New("paper not found in any source")

const (
	// acceptMinCitations is the citation count above which a primary
	// search hit is accepted without consulting the scraped source.
	acceptMinCitations = 10

	// authorsPerCitation caps how many citing authors get resolved.
	authorsPerCitation = 3
)

// Primary is the structured source capability set (Semantic Scholar +
// OpenAlex in production).
type Primary interface {
	source.PaperSource
	source.CitationSource
	source.PublicationSource
	source.DisambiguatingAuthorSource
}

// Secondary is the scraped-source capability set (the Scholar scraper
// or the SerpAPI proxy).
type Secondary interface {
	SearchPaper(ctx context.Context, title string) (*citation.Paper, error)
	GetCitations(ctx context.Context, paperTitle string, limit int) ([]citation.Citation, error)
	GetCitationsByCluster(ctx context.Context, citesID string, limit int) ([]citation.Citation, error)
	GetAuthorByID(ctx context.Context, id string) (*citation.Author, error)
	GetAuthorPublications(ctx context.Context, authorID string, limit int) ([]citation.Publication, error)
}

// Enhancer is the metadata-only fallback (Crossref): DOI, venue, year.
type Enhancer interface {
	SearchPaper(ctx context.Context, title string) (*citation.Paper, error)
}

// Session is the stateful scraping resource owned by the secondary
// source, acquired once per analysis.
type Session interface {
	Acquire() error
	Release()
}

// ResolvedAuthor is a canonical author profile plus the citing papers
// that led to them within one analysis.
type ResolvedAuthor struct {
	citation.Author
	CitingPapers []string `json:"citing_papers"`
}

// Reconciler orchestrates the sources for one analysis at a time.
type Reconciler struct {
	primary   Primary
	secondary Secondary
	enhancer  Enhancer
	fallback  source.AuthorSource // identity-only fallback (ORCID)
	session   Session
	index     *identity.Index
	inst      *institution.Categorizer
	log       logrus.FieldLogger

	// memo is the request-scoped author cache: at most one fetch per
	// distinct identity per analysis run.
	mu   sync.Mutex
	memo map[string]*citation.Author
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPrimary sets the structured source.
func WithPrimary(p Primary) Option {
	return func(r *Reconciler) { r.primary = p }
}

// WithSecondary sets the scraped source.
func WithSecondary(s Secondary) Option {
	return func(r *Reconciler) { r.secondary = s }
}

// WithEnhancer sets the metadata fallback source.
func WithEnhancer(e Enhancer) Option {
	return func(r *Reconciler) { r.enhancer = e }
}

// WithAuthorFallback sets the last-resort author identity source.
func WithAuthorFallback(a source.AuthorSource) Option {
	return func(r *Reconciler) { r.fallback = a }
}

// WithSession sets the scraping session guarding the secondary source.
func WithSession(s Session) Option {
	return func(r *Reconciler) { r.session = s }
}

// WithIndex sets the persistent identity index.
func WithIndex(ix *identity.Index) Option {
	return func(r *Reconciler) { r.index = ix }
}

// WithCategorizer sets the institution categorizer.
func WithCategorizer(c *institution.Categorizer) Option {
	return func(r *Reconciler) { r.inst = c }
}

// WithLogger sets the engine logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reconciler) { r.log = l }
}

// New builds a Reconciler. A primary source is required; everything
// else degrades gracefully when absent.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		log:  logrus.StandardLogger(),
		memo: make(map[string]*citation.Author),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AnalyzeOptions tune one reconciliation run.
type AnalyzeOptions struct {
	// MaxCitations caps the merged citation list.
	MaxCitations int
	// CitesID, when already known (e.g. from the user's own publication
	// list), unlocks the direct secondary citation path.
	CitesID string
	// SkipSecondary disables the scraped source for this run.
	SkipSecondary bool
}

// Analysis is the reconciled output consumed by the aggregator.
type Analysis struct {
	Paper     *citation.Paper    `json:"paper"`
	Citations []citation.Citation `json:"citations"`
	Authors   []ResolvedAuthor   `json:"authors"`
}

// Analyze runs the full pipeline for one paper: resolve, fetch, merge,
// enhance, resolve authors, dedup. Individual source failures are
// logged and absorbed; only a total failure to find the paper is an
// error.
func (r *Reconciler) Analyze(ctx context.Context, title string, opt AnalyzeOptions) (*Analysis, error) {
	if opt.MaxCitations <= 0 {
		opt.MaxCitations = 100
	}
	r.resetMemo()

	secondary := r.secondary
	if opt.SkipSecondary {
		secondary = nil
	}
	if secondary != nil && r.session != nil {
		if err := r.session.Acquire(); err != nil {
			r.log.WithError(err).Warn("scraping session unavailable, continuing without it")
			secondary = nil
		} else {
			defer r.session.Release()
		}
	}

	paper, err := r.resolvePaper(ctx, title, secondary)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}
	if paper.CitesID == "" {
		paper.CitesID = opt.CitesID
	}

	cites, err := r.fetchCitations(ctx, paper, secondary, opt.MaxCitations)
	if err != nil {
		// Context cancellation aborts; source failures already degraded
		// to whatever was fetched.
		if ctx.Err() != nil {
			return nil, err
		}
		r.log.WithError(err).Warn("citation retrieval incomplete")
	}
	r.enhanceCitations(ctx, cites)

	var authors []ResolvedAuthor
	for i := range cites {
		if ctx.Err() != nil {
			break
		}
		authors = append(authors, r.resolveCitationAuthors(ctx, &cites[i], secondary)...)
	}
	authors = DedupAuthors(authors)

	return &Analysis{Paper: paper, Citations: cites, Authors: authors}, nil
}

// resolvePaper applies the acceptance ladder: a primary hit with enough
// citations wins outright; the secondary is consulted otherwise but
// never displaces a primary hit, only fills a total miss.
func (r *Reconciler) resolvePaper(ctx context.Context, title string, secondary Secondary) (*citation.Paper, error) {
	var primaryHit *citation.Paper
	if r.primary != nil {
		p, err := r.primary.SearchPaper(ctx, title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			r.log.WithError(err).Debug("primary paper search failed")
		}
		primaryHit = p
	}
	if primaryHit != nil && primaryHit.CitationCount >= acceptMinCitations {
		return primaryHit, nil
	}
	if secondary != nil {
		sp, err := secondary.SearchPaper(ctx, title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			r.log.WithError(err).Debug("secondary paper search failed")
		}
		if primaryHit == nil {
			return sp, nil
		}
		// Keep the primary hit; borrow only the cites-ID the primary
		// cannot know.
		if sp != nil && primaryHit.CitesID == "" && match.Titles(primaryHit.Title, sp.Title) {
			primaryHit.CitesID = sp.CitesID
		}
	}
	return primaryHit, nil
}

// fetchCitations retrieves primary citations first, then appends
// genuinely new secondary ones up to limit. The direct cluster path is
// taken whenever the cites-ID is known; a title-based secondary search
// runs only when the primary found nothing.
func (r *Reconciler) fetchCitations(ctx context.Context, paper *citation.Paper, secondary Secondary, limit int) ([]citation.Citation, error) {
	var cites []citation.Citation
	if r.primary != nil && paper.PaperID != "" {
		got, err := r.primary.GetCitations(ctx, paper.PaperID, limit)
		if err != nil {
			if ctx.Err() != nil {
				return cites, err
			}
			r.log.WithError(err).Debug("primary citations failed")
		}
		cites = got
	}

	if secondary == nil || len(cites) >= limit {
		return cites, nil
	}

	var scraped []citation.Citation
	var err error
	switch {
	case paper.CitesID != "":
		scraped, err = secondary.GetCitationsByCluster(ctx, paper.CitesID, limit)
	case len(cites) == 0:
		scraped, err = secondary.GetCitations(ctx, paper.Title, limit)
	}
	if err != nil {
		if ctx.Err() != nil {
			return cites, err
		}
		r.log.WithError(err).Debug("secondary citations failed")
	}

	for i := range scraped {
		if len(cites) >= limit {
			break
		}
		if !containsTitle(cites, scraped[i].CitingPaperTitle) {
			cites = append(cites, scraped[i])
		}
	}
	return cites, nil
}

func containsTitle(cites []citation.Citation, title string) bool {
	for i := range cites {
		if match.Titles(cites[i].CitingPaperTitle, title) {
			return true
		}
	}
	return false
}

func (r *Reconciler) resetMemo() {
	r.mu.Lock()
	r.memo = make(map[string]*citation.Author)
	r.mu.Unlock()
}

// memoized returns the run-scoped cached author for key, or runs fetch
// and records its result (including nil, so a failed identity is not
// refetched).
func (r *Reconciler) memoized(key string, fetch func() *citation.Author) *citation.Author {
	r.mu.Lock()
	if a, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return a
	}
	r.mu.Unlock()

	a := fetch()

	r.mu.Lock()
	r.memo[key] = a
	r.mu.Unlock()
	return a
}
