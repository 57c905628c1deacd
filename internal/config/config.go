// Package config handles the per-user configuration stored in
// ~/.scholarimpact/config.json, plus the derived cache directory layout.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config is the persisted user configuration.
type Config struct {
	HIndexThreshold int    `json:"h_index_threshold"` // high-profile cutoff
	MaxCitations    int    `json:"max_citations"`     // citations fetched per analysis
	DataSource      string `json:"data_source"`       // "api" or "scholar"
	ScholarID       string `json:"scholar_id,omitempty"`
	RankingsDB      string `json:"rankings_db,omitempty"`
	CacheDir        string `json:"cache_dir,omitempty"`
}

const (
	// AppDir is the dot-directory under the user's home.
	AppDir     = ".scholarimpact"
	ConfigFile = "config.json"

	// Subdirectories of the cache root.
	ResultsDir  = "results"
	ProfilesDir = "profiles"
	PubsDir     = "publications"
)

// ValidDataSources lists the supported data_source values.
var ValidDataSources = []string{"api", "scholar"}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		HIndexThreshold: 20,
		MaxCitations:    100,
		DataSource:      "api",
	}
}

// Root returns the application directory path.
func Root() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, AppDir), nil
}

// Path returns the config file path.
func Path() (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ConfigFile), nil
}

// EffectiveCacheDir resolves the cache root: the configured override or
// the default under the application directory.
func (c *Config) EffectiveCacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "cache"), nil
}

// Load reads the user configuration, returning defaults when no file
// exists yet.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to an explicit path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Get returns a settable field by its JSON name.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "h_index_threshold":
		return strconv.Itoa(c.HIndexThreshold), nil
	case "max_citations":
		return strconv.Itoa(c.MaxCitations), nil
	case "data_source":
		return c.DataSource, nil
	case "scholar_id":
		return c.ScholarID, nil
	case "rankings_db":
		return c.RankingsDB, nil
	case "cache_dir":
		return c.CacheDir, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Set updates a settable field by its JSON name.
func (c *Config) Set(key, value string) error {
	switch key {
	case "h_index_threshold":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("h_index_threshold must be a non-negative integer")
		}
		c.HIndexThreshold = n
	case "max_citations":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("max_citations must be a positive integer")
		}
		c.MaxCitations = n
	case "data_source":
		for _, v := range ValidDataSources {
			if value == v {
				c.DataSource = value
				return nil
			}
		}
		return fmt.Errorf("data_source must be one of %v", ValidDataSources)
	case "scholar_id":
		c.ScholarID = value
	case "rankings_db":
		c.RankingsDB = value
	case "cache_dir":
		c.CacheDir = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
