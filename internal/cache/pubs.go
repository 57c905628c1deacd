package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/matsen/scholarimpact/internal/citation"
)

// Publications stores the user's own publication lists, keyed by
// Google Scholar author ID. Entries carry cites-IDs that unlock the
// direct, search-free citation path, so they have no TTL; the list only
// changes when the caller explicitly refreshes it.
type Publications struct {
	dir string
}

type pubsEnvelope struct {
	AuthorID     string                 `json:"author_id"`
	Publications []citation.Publication `json:"publications"`
	CachedAt     time.Time              `json:"cached_at"`
}

// NewPublications opens (creating if needed) the publication cache at dir.
func NewPublications(dir string) (*Publications, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Publications{dir: dir}, nil
}

func (p *Publications) path(authorID string) string {
	return filepath.Join(p.dir, "pubs_"+authorID+".json")
}

// Get returns the stored publication list for an author, however old.
// Corrupt entries are deleted and reported as misses.
func (p *Publications) Get(authorID string) ([]citation.Publication, bool) {
	path := p.path(authorID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env pubsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	return env.Publications, true
}

// Put replaces the stored publication list for an author.
func (p *Publications) Put(authorID string, pubs []citation.Publication) error {
	env := pubsEnvelope{AuthorID: authorID, Publications: pubs, CachedAt: time.Now()}
	return writeJSONAtomic(p.path(authorID), env)
}

// Delete removes the stored list, forcing the next read to refetch.
func (p *Publications) Delete(authorID string) error {
	err := os.Remove(p.path(authorID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
