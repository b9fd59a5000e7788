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
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Pipeline contains orchestrator scheduling and retry settings.
type Pipeline struct {
	MaxConcurrentTasks  int    `toml:"max_concurrent_tasks"`
	RetryLimit          int    `toml:"retry_limit"`
	StageTimeout        int    `toml:"stage_timeout"`
	QueuePollInterval   int    `toml:"queue_poll_interval"`
	ErrorRetryInterval  int    `toml:"error_retry_interval"`
	CompletedRetention  int    `toml:"completed_retention"`
	MinImagesPerStory   int    `toml:"min_images_per_story"`
	MaxImagesPerStory   int    `toml:"max_images_per_story"`
	DefaultStoryType    string `toml:"default_story_type"`
	DefaultAudience     string `toml:"default_audience"`
	DefaultAngle        string `toml:"default_angle"`
	DefaultVisualStyle  string `toml:"default_visual_style"`
}

// TextGen contains connection settings for the generative text backend.
type TextGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ImageGen contains connection settings for the image generation backend.
// When disabled, stories are published with visual prompts but no rendered
// images.
type ImageGen struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Analysis contains content analysis thresholds.
type Analysis struct {
	MinContentLength int `toml:"min_content_length"`
}

// Decision contains settings for the autonomous decision engine.
type Decision struct {
	Enabled            bool `toml:"enabled"`
	CycleInterval      int  `toml:"cycle_interval"`
	MinTrendVolume     int  `toml:"min_trend_volume"`
	AdaptationInterval int  `toml:"adaptation_interval"`
}

// Ingest contains NATS trend-signal subscription settings.
type Ingest struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for StoryForge.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Pipeline: orchestrator concurrency, retries, timeouts, defaults
//   - TextGen: generative text backend connection
//   - ImageGen: image generation backend connection
//   - Analysis: content analysis thresholds
//   - Decision: autonomous content selection engine
//   - Ingest: NATS trend-signal subscription
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	TextGen  TextGen  `toml:"textgen"`
	ImageGen ImageGen `toml:"imagegen"`
	Analysis Analysis `toml:"analysis"`
	Decision Decision `toml:"decision"`
	Ingest   Ingest   `toml:"ingest"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/storyforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("storyforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "storyforge.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "storyforged.lock")
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file and returns the location it
// was written to. An empty path targets the default config location.
func CreateSample(path string) (string, error) {
	var err error
	if path == "" {
		path, err = DefaultConfigPath()
	} else {
		path, err = expandPath(path)
	}
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return path, nil
}
