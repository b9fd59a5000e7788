// Package testsupport provides shared helpers for package tests: isolated
// configurations and task stores backed by per-test temp directories.
package testsupport

import (
	"path/filepath"
	"testing"

	"storyforge/internal/config"
	"storyforge/internal/queue"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// WithTextGenKey sets the text backend API key.
func WithTextGenKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.TextGen.APIKey = key
	}
}

// WithLocalBackends points the generation backends at a closed local port so
// no test traffic leaves the machine.
func WithLocalBackends() ConfigOption {
	return func(cfg *config.Config) {
		cfg.TextGen.BaseURL = "http://127.0.0.1:1"
		cfg.ImageGen.BaseURL = "http://127.0.0.1:1"
	}
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.TextGen.APIKey = "test-key"
	cfg.ImageGen.Enabled = false
	cfg.Decision.Enabled = false
	cfg.Ingest.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// NewStore opens a task store on a fresh test config and closes it when the
// test finishes.
func NewStore(t testing.TB, opts ...ConfigOption) *queue.Store {
	t.Helper()

	store, err := queue.Open(NewConfig(t, opts...))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close test store: %v", err)
		}
	})
	return store
}
