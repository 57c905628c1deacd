// Package rankings serves venue and university rank lookups from a
// local SQLite database. The data is reference material loaded once
// from prepared ranking tables and read-only at analysis time.
package rankings

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// RankInfo is one ranking entry.
type RankInfo struct {
	Rank   int    `json:"rank"`
	Tier   string `json:"tier"`
	Source string `json:"source,omitempty"`
}

// Lookup answers rank queries by free-text name.
type Lookup interface {
	// LookupVenue returns (nil, nil) for unranked venues.
	LookupVenue(name string) (*RankInfo, error)
	// LookupUniversity returns (nil, nil) for unranked institutions.
	LookupUniversity(name string) (*RankInfo, error)
}

// DB is a SQLite-backed Lookup.
type DB struct {
	db *sql.DB
}

// Open opens or creates the rankings database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening rankings database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating rankings schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS venue_ranks (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			rank INTEGER NOT NULL,
			tier TEXT NOT NULL,
			source TEXT
		);

		CREATE TABLE IF NOT EXISTS university_ranks (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			rank INTEGER NOT NULL,
			tier TEXT NOT NULL,
			source TEXT
		);
	`
	_, err := db.Exec(schema)
	return err
}

// LookupVenue finds a venue rank by exact name, falling back to a
// substring match in either direction.
func (d *DB) LookupVenue(name string) (*RankInfo, error) {
	return d.lookup("venue_ranks", name)
}

// LookupUniversity finds a university rank the same way.
func (d *DB) LookupUniversity(name string) (*RankInfo, error) {
	return d.lookup("university_ranks", name)
}

func (d *DB) lookup(table, name string) (*RankInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var info RankInfo
	var src sql.NullString
	err := d.db.QueryRow(
		`SELECT rank, tier, source FROM `+table+` WHERE name = ? COLLATE NOCASE`, name,
	).Scan(&info.Rank, &info.Tier, &src)
	if err == sql.ErrNoRows {
		err = d.db.QueryRow(
			`SELECT rank, tier, source FROM `+table+`
			 WHERE instr(lower(?), lower(name)) > 0 OR instr(lower(name), lower(?)) > 0
			 ORDER BY rank ASC LIMIT 1`, name, name,
		).Scan(&info.Rank, &info.Tier, &src)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rank lookup: %w", err)
	}
	info.Source = src.String
	return &info, nil
}

// PutVenue inserts or replaces one venue entry, used by the loader.
func (d *DB) PutVenue(name string, info RankInfo) error {
	return d.put("venue_ranks", name, info)
}

// PutUniversity inserts or replaces one university entry.
func (d *DB) PutUniversity(name string, info RankInfo) error {
	return d.put("university_ranks", name, info)
}

func (d *DB) put(table, name string, info RankInfo) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO `+table+` (name, rank, tier, source) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(name), info.Rank, info.Tier, info.Source,
	)
	return err
}

// Static is an in-memory Lookup for tests and for runs with no
// rankings database configured.
type Static struct {
	Venues       map[string]RankInfo
	Universities map[string]RankInfo
}

// LookupVenue matches by case-insensitive exact name, then substring.
func (s *Static) LookupVenue(name string) (*RankInfo, error) {
	return staticLookup(s.Venues, name), nil
}

// LookupUniversity matches the same way.
func (s *Static) LookupUniversity(name string) (*RankInfo, error) {
	return staticLookup(s.Universities, name), nil
}

func staticLookup(m map[string]RankInfo, name string) *RankInfo {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	for k, v := range m {
		if strings.ToLower(k) == name {
			info := v
			return &info
		}
	}
	for k, v := range m {
		lk := strings.ToLower(k)
		if strings.Contains(name, lk) || strings.Contains(lk, name) {
			info := v
			return &info
		}
	}
	return nil
}
