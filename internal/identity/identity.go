// Package identity persists canonical author profiles under many lookup
// keys, so an author first seen as "C. Smith" on one source can be found
// again by Google Scholar ID, ORCID iD, or publication overlap on another.
//
// On disk the index is one directory: an index.json mapping string keys
// to profile filenames, plus one profile_<12 hex>.json per author. A
// profile's ID is assigned at creation and never changes, so merges
// rewrite the same file instead of fragmenting across content-addressed
// snapshots.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/normalize"
)

const (
	// DefaultTTL is how long a stored profile stays fresh.
	DefaultTTL = 30 * 24 * time.Hour

	indexFilename = "index.json"

	// maxStoredPublications caps the publication list kept per profile.
	maxStoredPublications = 20
	// maxIndexedPublications caps how many of those get pub: index keys.
	maxIndexedPublications = 10
)

// Key prefixes in index.json.
const (
	keyName  = "name:"
	keyGS    = "gs:"
	keyS2    = "s2:"
	keyOrcid = "orcid:"
	keyPub   = "pub:"
)

// Profile is the stored record for one author.
type Profile struct {
	Author       citation.Author        `json:"author_info"`
	Publications []citation.Publication `json:"publications,omitempty"`
}

// profileFile is the on-disk envelope around a Profile.
type profileFile struct {
	Profile  Profile   `json:"profile"`
	CachedAt time.Time `json:"cached_at"`
	// Seq is the profile's creation sequence number, used as the
	// deterministic tie-break when publication overlap is equal.
	Seq int64 `json:"seq"`
}

// indexFile is the persisted key map. Seq mirrors each profile's
// creation sequence so overlap tie-breaks need not open every candidate.
type indexFile struct {
	Keys    map[string]string `json:"keys"`
	Seq     map[string]int64  `json:"seq"`
	NextSeq int64             `json:"next_seq"`
}

// Query names an author by whichever identifiers the caller has.
type Query struct {
	Name              string
	GoogleScholarID   string
	SemanticScholarID string
	OrcidID           string
	Publications      []citation.Publication
}

// Index is the profile store. All mutating operations and lazy expiry
// deletes are serialized under one mutex; profile writes go through a
// temp file and rename.
type Index struct {
	dir string
	ttl time.Duration
	now func() time.Time
	log logrus.FieldLogger

	mu  sync.Mutex
	idx indexFile
}

// Option configures an Index.
type Option func(*Index)

// WithTTL overrides the 30-day profile freshness window.
func WithTTL(d time.Duration) Option {
	return func(ix *Index) { ix.ttl = d }
}

// WithLogger sets the logger used for swallowed I/O errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(ix *Index) { ix.log = l }
}

// WithClock replaces the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

// New opens (creating if needed) the profile store rooted at dir.
func New(dir string, opts ...Option) (*Index, error) {
	ix := &Index{
		dir: dir,
		ttl: DefaultTTL,
		now: time.Now,
		log: logrus.StandardLogger(),
		idx: indexFile{Keys: map[string]string{}, Seq: map[string]int64{}},
	}
	for _, opt := range opts {
		opt(ix)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating profile dir: %w", err)
	}
	ix.loadIndex()
	return ix, nil
}

// loadIndex reads index.json. A missing or corrupt index means starting
// empty; profiles on disk stay reachable once re-indexed by later writes.
func (ix *Index) loadIndex() {
	data, err := os.ReadFile(filepath.Join(ix.dir, indexFilename))
	if err != nil {
		return
	}
	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		ix.log.WithError(err).Warn("identity index unreadable, starting empty")
		return
	}
	if idx.Keys == nil {
		idx.Keys = map[string]string{}
	}
	if idx.Seq == nil {
		idx.Seq = map[string]int64{}
	}
	ix.idx = idx
}

func (ix *Index) saveIndex() error {
	return writeJSONAtomic(filepath.Join(ix.dir, indexFilename), ix.idx)
}

// GetByAnyID returns the freshest-path profile for any identifier in q.
// Strong IDs are tried first (gs, s2, orcid in that order), then the
// normalized name, then publication-title keys when publications are
// given. The first key whose profile is not expired wins; expired
// profiles are deleted on the way past.
func (ix *Index) GetByAnyID(q Query) (*Profile, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.getByAnyIDLocked(q)
}

func (ix *Index) getByAnyIDLocked(q Query) (*Profile, bool) {
	for _, key := range q.lookupKeys() {
		filename, ok := ix.idx.Keys[key]
		if !ok {
			continue
		}
		pf, ok := ix.loadProfileLocked(filename)
		if !ok {
			continue
		}
		return &pf.Profile, true
	}
	return nil, false
}

// lookupKeys returns q's index keys in lookup priority order.
func (q Query) lookupKeys() []string {
	var keys []string
	if q.GoogleScholarID != "" {
		keys = append(keys, keyGS+q.GoogleScholarID)
	}
	if q.SemanticScholarID != "" {
		keys = append(keys, keyS2+q.SemanticScholarID)
	}
	if q.OrcidID != "" {
		keys = append(keys, keyOrcid+q.OrcidID)
	}
	if n := normalize.Name(q.Name); n != "" {
		keys = append(keys, keyName+n)
	}
	for _, pub := range q.Publications {
		if k := normalize.TitleKey(pub.Title); k != "" {
			keys = append(keys, keyPub+k)
		}
	}
	return keys
}

// FindByPublications disambiguates by publication overlap: it derives
// pub: keys for the given publications, counts hits per candidate
// profile, and returns the candidate with the most hits provided that
// count is at least minOverlap. Equal counts go to the profile created
// first (lowest sequence number).
func (ix *Index) FindByPublications(pubs []citation.Publication, minOverlap int) (*Profile, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.findByPublicationsLocked(pubs, minOverlap)
}

func (ix *Index) findByPublicationsLocked(pubs []citation.Publication, minOverlap int) (*Profile, bool) {
	if minOverlap < 1 {
		minOverlap = 1
	}
	counts := make(map[string]int)
	seen := make(map[string]bool)
	for _, pub := range pubs {
		k := normalize.TitleKey(pub.Title)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if filename, ok := ix.idx.Keys[keyPub+k]; ok {
			counts[filename]++
		}
	}

	type candidate struct {
		filename string
		count    int
		seq      int64
	}
	cands := make([]candidate, 0, len(counts))
	for filename, n := range counts {
		if n >= minOverlap {
			cands = append(cands, candidate{filename, n, ix.idx.Seq[filename]})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].count != cands[j].count {
			return cands[i].count > cands[j].count
		}
		return cands[i].seq < cands[j].seq
	})

	for _, c := range cands {
		if pf, ok := ix.loadProfileLocked(c.filename); ok {
			return &pf.Profile, true
		}
	}
	return nil, false
}

// UpdateProfile merges author (and its known publications) into an
// existing profile when one can be found by ID, name, or publication
// overlap, or creates a new profile otherwise. Reports whether the
// result was persisted; write failures are logged, never raised.
func (ix *Index) UpdateProfile(author citation.Author, pubs []citation.Publication) bool {
	q := Query{
		Name:              author.Name,
		GoogleScholarID:   author.GoogleScholarID,
		SemanticScholarID: author.SemanticScholarID,
		OrcidID:           author.OrcidID,
	}
	if len(q.lookupKeys()) == 0 {
		return false
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	filename, pf := ix.resolveForUpdateLocked(q, pubs)
	if pf == nil {
		filename = profileFilename(author)
		pf = &profileFile{Seq: ix.idx.NextSeq}
		ix.idx.NextSeq++
		pf.Profile.Author = author
	} else {
		mergeAuthor(&pf.Profile.Author, author)
	}
	pf.Profile.Publications = mergePublications(pf.Profile.Publications, pubs)
	pf.CachedAt = ix.now()

	if err := writeJSONAtomic(filepath.Join(ix.dir, filename), pf); err != nil {
		ix.log.WithError(err).WithField("file", filename).Warn("profile write failed")
		return false
	}

	ix.idx.Seq[filename] = pf.Seq
	for _, key := range profileKeys(pf.Profile) {
		ix.idx.Keys[key] = filename
	}
	if err := ix.saveIndex(); err != nil {
		ix.log.WithError(err).Warn("identity index write failed")
		return false
	}
	return true
}

// resolveForUpdateLocked finds the existing profile an update should
// land on: by identifier first, then by publication overlap of 2+.
func (ix *Index) resolveForUpdateLocked(q Query, pubs []citation.Publication) (string, *profileFile) {
	for _, key := range q.lookupKeys() {
		if filename, ok := ix.idx.Keys[key]; ok {
			if pf, ok := ix.loadProfileLocked(filename); ok {
				return filename, pf
			}
		}
	}
	if len(pubs) == 0 {
		return "", nil
	}
	// Re-run the overlap search but keep the filename.
	counts := make(map[string]int)
	seen := make(map[string]bool)
	for _, pub := range pubs {
		k := normalize.TitleKey(pub.Title)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if filename, ok := ix.idx.Keys[keyPub+k]; ok {
			counts[filename]++
		}
	}
	best, bestCount, bestSeq := "", 0, int64(0)
	for filename, n := range counts {
		seq := ix.idx.Seq[filename]
		if n > bestCount || (n == bestCount && n > 0 && seq < bestSeq) {
			best, bestCount, bestSeq = filename, n, seq
		}
	}
	if bestCount < 2 {
		return "", nil
	}
	if pf, ok := ix.loadProfileLocked(best); ok {
		return best, pf
	}
	return "", nil
}

// DeleteProfile removes the profile reachable from q and every index key
// pointing at it. Reports whether a profile was deleted.
func (ix *Index) DeleteProfile(q Query) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var filename string
	for _, key := range q.lookupKeys() {
		if f, ok := ix.idx.Keys[key]; ok {
			filename = f
			break
		}
	}
	if filename == "" {
		return false
	}
	if err := os.Remove(filepath.Join(ix.dir, filename)); err != nil && !os.IsNotExist(err) {
		ix.log.WithError(err).WithField("file", filename).Warn("profile delete failed")
		return false
	}
	ix.dropFilenameLocked(filename)
	if err := ix.saveIndex(); err != nil {
		ix.log.WithError(err).Warn("identity index write failed")
	}
	return true
}

// Clear deletes stored profiles and returns how many were removed.
// maxAge <= 0 clears everything and resets the index; otherwise only
// profiles older than maxAge go.
func (ix *Index) Clear(maxAge time.Duration) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		ix.log.WithError(err).Warn("profile dir unreadable")
		return 0
	}

	count := 0
	cutoff := ix.now().Add(-maxAge)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == indexFilename || !strings.HasPrefix(name, "profile_") {
			continue
		}
		if maxAge > 0 {
			pf, ok := ix.readProfileRaw(name)
			if ok && pf.CachedAt.After(cutoff) {
				continue
			}
		}
		if err := os.Remove(filepath.Join(ix.dir, name)); err != nil && !os.IsNotExist(err) {
			ix.log.WithError(err).WithField("file", name).Warn("profile delete failed")
			continue
		}
		ix.dropFilenameLocked(name)
		count++
	}
	if maxAge <= 0 {
		ix.idx = indexFile{Keys: map[string]string{}, Seq: map[string]int64{}, NextSeq: ix.idx.NextSeq}
	}
	if err := ix.saveIndex(); err != nil {
		ix.log.WithError(err).Warn("identity index write failed")
	}
	return count
}

// dropFilenameLocked removes every index entry pointing at filename.
func (ix *Index) dropFilenameLocked(filename string) {
	for key, f := range ix.idx.Keys {
		if f == filename {
			delete(ix.idx.Keys, key)
		}
	}
	delete(ix.idx.Seq, filename)
}

// loadProfileLocked reads a profile file, treating corrupt or expired
// files as misses. Both are deleted in place along with their keys.
func (ix *Index) loadProfileLocked(filename string) (*profileFile, bool) {
	pf, ok := ix.readProfileRaw(filename)
	if !ok || ix.now().Sub(pf.CachedAt) > ix.ttl {
		_ = os.Remove(filepath.Join(ix.dir, filename))
		ix.dropFilenameLocked(filename)
		if err := ix.saveIndex(); err != nil {
			ix.log.WithError(err).Warn("identity index write failed")
		}
		return nil, false
	}
	return pf, true
}

func (ix *Index) readProfileRaw(filename string) (*profileFile, bool) {
	data, err := os.ReadFile(filepath.Join(ix.dir, filename))
	if err != nil {
		return nil, false
	}
	var pf profileFile
	if err := json.Unmarshal(data, &pf); err != nil {
		ix.log.WithField("file", filename).Debug("corrupt profile treated as miss")
		return nil, false
	}
	return &pf, true
}

// profileKeys derives every index key a profile should be reachable by.
func profileKeys(p Profile) []string {
	q := Query{
		Name:              p.Author.Name,
		GoogleScholarID:   p.Author.GoogleScholarID,
		SemanticScholarID: p.Author.SemanticScholarID,
		OrcidID:           p.Author.OrcidID,
	}
	keys := q.lookupKeys()
	indexed := 0
	for _, pub := range p.Publications {
		if indexed == maxIndexedPublications {
			break
		}
		k := normalize.TitleKey(pub.Title)
		if k == "" {
			continue
		}
		keys = append(keys, keyPub+k)
		indexed++
	}
	return keys
}

// profileFilename assigns the stable profile ID from the first-seen
// author record. Later merges keep writing to this same file.
func profileFilename(author citation.Author) string {
	payload, _ := json.Marshal(struct {
		Name  string `json:"name"`
		GS    string `json:"gs"`
		S2    string `json:"s2"`
		Orcid string `json:"orcid"`
	}{author.Name, author.GoogleScholarID, author.SemanticScholarID, author.OrcidID})
	sum := sha256.Sum256(payload)
	return "profile_" + hex.EncodeToString(sum[:6]) + ".json"
}

// mergeAuthor folds incoming into existing. Existing values win unless
// empty or "Unknown"; the h-index moves only strictly upward, and its
// source label moves with it, so a google_scholar figure is never
// displaced by an equal-or-lower reading from elsewhere.
func mergeAuthor(existing *citation.Author, incoming citation.Author) {
	fill := func(dst *string, src string) {
		if src != "" && (*dst == "" || *dst == "Unknown") {
			*dst = src
		}
	}
	fill(&existing.Name, incoming.Name)
	fill(&existing.Affiliation, incoming.Affiliation)
	fill(&existing.SemanticScholarID, incoming.SemanticScholarID)
	fill(&existing.GoogleScholarID, incoming.GoogleScholarID)
	fill(&existing.OrcidID, incoming.OrcidID)
	fill(&existing.Homepage, incoming.Homepage)
	if incoming.InstitutionType != "" &&
		(existing.InstitutionType == "" || existing.InstitutionType == citation.InstOther) {
		existing.InstitutionType = incoming.InstitutionType
	}
	if incoming.WorksCount > existing.WorksCount {
		existing.WorksCount = incoming.WorksCount
	}
	if incoming.CitationCount > existing.CitationCount {
		existing.CitationCount = incoming.CitationCount
	}
	if incoming.HIndex > existing.HIndex {
		existing.HIndex = incoming.HIndex
		if incoming.HIndexSource != "" {
			existing.HIndexSource = incoming.HIndexSource
		}
	} else if existing.HIndexSource == "" && incoming.HIndexSource != "" && incoming.HIndex == existing.HIndex {
		existing.HIndexSource = incoming.HIndexSource
	}
}

// mergePublications unions by normalized title key, existing first,
// capped at maxStoredPublications.
func mergePublications(existing, incoming []citation.Publication) []citation.Publication {
	seen := make(map[string]bool, len(existing))
	out := make([]citation.Publication, 0, len(existing)+len(incoming))
	add := func(pubs []citation.Publication) {
		for _, p := range pubs {
			k := normalize.TitleKey(p.Title)
			if k == "" || seen[k] {
				continue
			}
			if len(out) == maxStoredPublications {
				return
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	add(existing)
	add(incoming)
	return out
}

// writeJSONAtomic writes v as JSON via a temp file and rename, so a
// crash never leaves a half-written cache entry behind.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
