// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"dubtrack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OverridesPath = filepath.Join(base, "overrides.json")
	cfg.Paths.SnapshotPath = filepath.Join(base, "snapshot.db")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithOverridesPath overrides the dub override file location.
func WithOverridesPath(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.OverridesPath = path
	}
}
