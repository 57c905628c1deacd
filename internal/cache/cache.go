// Package cache stores analysis results and publication lists as JSON
// files, one file per key. Result entries expire after seven days;
// publication lists never expire and are replaced only on explicit
// refresh.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is the freshness window for analysis results.
const DefaultTTL = 7 * 24 * time.Hour

// Key identifies one analysis result. Title is canonicalized before
// hashing so "Deep Learning " and "deep learning" share an entry.
type Key struct {
	Title           string `json:"paper_title"`
	HIndexThreshold int    `json:"h_index_threshold"`
	MaxCitations    int    `json:"max_citations"`
	DataSource      string `json:"data_source"`
}

// digest returns the lowercase hex cache key: a sha256 over a canonical
// JSON form with sorted keys. Must stay stable across releases or every
// cached result silently misses.
func (k Key) digest() string {
	canonical := fmt.Sprintf(
		`{"data_source":%q,"h_index_threshold":%d,"max_citations":%d,"paper_title":%q}`,
		k.DataSource, k.HIndexThreshold, k.MaxCitations,
		strings.ToLower(strings.TrimSpace(k.Title)),
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

type resultEnvelope struct {
	Key      Key             `json:"key"`
	Result   json.RawMessage `json:"result"`
	CachedAt time.Time       `json:"cached_at"`
}

// Entry describes one stored result for listing purposes.
type Entry struct {
	Key      Key       `json:"key"`
	CachedAt time.Time `json:"cached_at"`
	Age      string    `json:"age"`
}

// Results is the TTL'd analysis-result cache.
type Results struct {
	dir string
	ttl time.Duration
	now func() time.Time
	log logrus.FieldLogger
}

// Option configures a Results cache.
type Option func(*Results)

// WithTTL overrides the seven-day freshness window.
func WithTTL(d time.Duration) Option {
	return func(c *Results) { c.ttl = d }
}

// WithLogger sets the logger used for swallowed I/O errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Results) { c.log = l }
}

// WithClock replaces the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *Results) { c.now = now }
}

// NewResults opens (creating if needed) the result cache rooted at dir.
func NewResults(dir string, opts ...Option) (*Results, error) {
	c := &Results{dir: dir, ttl: DefaultTTL, now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return c, nil
}

func (c *Results) path(k Key) string {
	return filepath.Join(c.dir, "result_"+k.digest()+".json")
}

// Get unmarshals a fresh cached result into out. Expired or corrupt
// entries are deleted and reported as misses.
func (c *Results) Get(k Key, out any) bool {
	path := c.path(k)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.WithField("file", filepath.Base(path)).Debug("corrupt cache entry deleted")
		_ = os.Remove(path)
		return false
	}
	if c.now().Sub(env.CachedAt) > c.ttl {
		_ = os.Remove(path)
		return false
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		_ = os.Remove(path)
		return false
	}
	return true
}

// Put stores v under k. Reports success; failures are logged, never raised.
func (c *Results) Put(k Key, v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).Warn("result not serializable")
		return false
	}
	env := resultEnvelope{Key: k, Result: raw, CachedAt: c.now()}
	if err := writeJSONAtomic(c.path(k), env); err != nil {
		c.log.WithError(err).Warn("result cache write failed")
		return false
	}
	return true
}

// List returns all readable entries, freshest first left to the caller
// to sort; corrupt files are skipped, not deleted.
func (c *Results) List() []Entry {
	files, err := filepath.Glob(filepath.Join(c.dir, "result_*.json"))
	if err != nil {
		return nil
	}
	entries := make([]Entry, 0, len(files))
	now := c.now()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var env resultEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		entries = append(entries, Entry{
			Key:      env.Key,
			CachedAt: env.CachedAt,
			Age:      now.Sub(env.CachedAt).Round(time.Minute).String(),
		})
	}
	return entries
}

// Clear deletes cached results and returns how many were removed.
// maxAge <= 0 clears everything; otherwise only entries older than maxAge.
func (c *Results) Clear(maxAge time.Duration) int {
	files, err := filepath.Glob(filepath.Join(c.dir, "result_*.json"))
	if err != nil {
		return 0
	}
	count := 0
	cutoff := c.now().Add(-maxAge)
	for _, f := range files {
		if maxAge > 0 {
			data, err := os.ReadFile(f)
			if err == nil {
				var env resultEnvelope
				if json.Unmarshal(data, &env) == nil && env.CachedAt.After(cutoff) {
					continue
				}
			}
		}
		if err := os.Remove(f); err == nil {
			count++
		}
	}
	return count
}

// writeJSONAtomic writes v as JSON via a temp file and rename.
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
