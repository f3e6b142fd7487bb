// Package config loads and validates the TOML configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	OverridesPath string `toml:"overrides_path"`
	SnapshotPath  string `toml:"snapshot_path"`
}

// AniList contains configuration for the upstream GraphQL catalog.
type AniList struct {
	BaseURL       string `toml:"base_url"`
	MinIntervalMS int    `toml:"min_interval_ms"`
	TimeoutSec    int    `toml:"timeout_seconds"`
	PageSize      int    `toml:"page_size"`
}

// Jikan contains configuration for the community wiki API.
type Jikan struct {
	BaseURL       string `toml:"base_url"`
	MinIntervalMS int    `toml:"min_interval_ms"`
	TimeoutSec    int    `toml:"timeout_seconds"`
}

// Scrape contains configuration for the unofficial stream-listing endpoint.
type Scrape struct {
	Enabled       bool   `toml:"enabled"`
	BaseURL       string `toml:"base_url"`
	MinIntervalMS int    `toml:"min_interval_ms"`
	TimeoutSec    int    `toml:"timeout_seconds"`
}

// Resolver contains tuning for dub-status resolution.
type Resolver struct {
	Workers             int `toml:"workers"`
	PopularityThreshold int `toml:"popularity_threshold"`
	MemoTTLHours        int `toml:"memo_ttl_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths    Paths    `toml:"paths"`
	AniList  AniList  `toml:"anilist"`
	Jikan    Jikan    `toml:"jikan"`
	Scrape   Scrape   `toml:"scrape"`
	Resolver Resolver `toml:"resolver"`
	Logging  Logging  `toml:"logging"`
}

// Default returns the built-in configuration values.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".local", "share", "dubtrack")
	return Config{
		Paths: Paths{
			DataDir:       base,
			LogDir:        filepath.Join(base, "logs"),
			OverridesPath: filepath.Join(base, "overrides.json"),
			SnapshotPath:  filepath.Join(base, "snapshot.db"),
		},
		AniList: AniList{
			BaseURL:       "https://graphql.anilist.co",
			MinIntervalMS: 700,
			TimeoutSec:    15,
			PageSize:      50,
		},
		Jikan: Jikan{
			BaseURL:       "https://api.jikan.moe/v4",
			MinIntervalMS: 1000,
			TimeoutSec:    15,
		},
		Scrape: Scrape{
			Enabled:       true,
			BaseURL:       "https://animeschedule.net/api/v3",
			MinIntervalMS: 1500,
			TimeoutSec:    10,
		},
		Resolver: Resolver{
			Workers:             3,
			PopularityThreshold: 50000,
			MemoTTLHours:        6,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "dubtrack", "config.toml")
}

// Load reads the config file at path, layering it over defaults. A missing
// file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.AniList.BaseURL) == "" {
		problems = append(problems, "anilist.base_url must not be empty")
	}
	if c.AniList.PageSize <= 0 || c.AniList.PageSize > 50 {
		problems = append(problems, "anilist.page_size must be between 1 and 50")
	}
	if c.AniList.MinIntervalMS < 0 || c.Jikan.MinIntervalMS < 0 || c.Scrape.MinIntervalMS < 0 {
		problems = append(problems, "min_interval_ms values must not be negative")
	}
	if c.Resolver.Workers <= 0 {
		problems = append(problems, "resolver.workers must be positive")
	}
	if c.Resolver.MemoTTLHours <= 0 {
		problems = append(problems, "resolver.memo_ttl_hours must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EnsureDirectories creates the directories the application writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the annotated sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
