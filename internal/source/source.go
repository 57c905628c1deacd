// Package source defines the capability surface every upstream adapter
// implements, plus the shared error taxonomy. The reconciler only sees
// these interfaces; transports, retries, and rate limits live inside
// each adapter.
package source

import (
	"context"

	"github.com/matsen/scholarimpact/internal/citation"
)

// PaperSource finds the paper under analysis.
type PaperSource interface {
	// SearchPaper resolves a title to the best-matching paper, or
	// (nil, nil) when nothing plausible was found.
	SearchPaper(ctx context.Context, title string) (*citation.Paper, error)
}

// CitationSource lists the papers citing a resolved paper.
type CitationSource interface {
	// GetCitations returns up to limit citing-paper records.
	GetCitations(ctx context.Context, paperID string, limit int) ([]citation.Citation, error)
}

// AuthorSource resolves author profiles.
type AuthorSource interface {
	// GetAuthor searches by plain name; (nil, nil) when not found.
	GetAuthor(ctx context.Context, name string) (*citation.Author, error)

	// GetAuthorByID fetches a profile by this source's native author ID.
	GetAuthorByID(ctx context.Context, id string) (*citation.Author, error)
}

// PublicationSource lists an author's own papers, used both for
// disambiguation by paper overlap and for cites-ID discovery.
type PublicationSource interface {
	GetAuthorPublications(ctx context.Context, authorID string, limit int) ([]citation.Publication, error)
}

// DisambiguatingAuthorSource adds the contextual search used when a
// plain name is too ambiguous: the citing paper's title narrows the
// candidates to that paper's co-author list.
type DisambiguatingAuthorSource interface {
	AuthorSource

	// GetAuthorForPaper resolves name against the co-authors of the
	// given paper; (nil, nil) when no co-author matches.
	GetAuthorForPaper(ctx context.Context, name, paperTitle string) (*citation.Author, error)
}
