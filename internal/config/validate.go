package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTextGen(); err != nil {
		return err
	}
	if err := c.validateImageGen(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.max_concurrent_tasks": c.Pipeline.MaxConcurrentTasks,
		"pipeline.stage_timeout":        c.Pipeline.StageTimeout,
		"pipeline.queue_poll_interval":  c.Pipeline.QueuePollInterval,
		"pipeline.error_retry_interval": c.Pipeline.ErrorRetryInterval,
		"pipeline.completed_retention":  c.Pipeline.CompletedRetention,
	}); err != nil {
		return err
	}
	if c.Pipeline.RetryLimit < 0 {
		return errors.New("pipeline.retry_limit must be >= 0")
	}
	if c.Pipeline.MinImagesPerStory < 1 {
		return errors.New("pipeline.min_images_per_story must be >= 1")
	}
	if c.Pipeline.MaxImagesPerStory < c.Pipeline.MinImagesPerStory {
		return errors.New("pipeline.max_images_per_story must be >= pipeline.min_images_per_story")
	}
	return nil
}

func (c *Config) validateTextGen() error {
	if strings.TrimSpace(c.TextGen.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/storyforge/config.toml"
		}
		return fmt.Errorf("textgen.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'storyforge config init')", defaultPath)
	}
	if strings.TrimSpace(c.TextGen.BaseURL) == "" {
		return errors.New("textgen.base_url must be set")
	}
	if strings.TrimSpace(c.TextGen.Model) == "" {
		return errors.New("textgen.model must be set")
	}
	return nil
}

func (c *Config) validateImageGen() error {
	if !c.ImageGen.Enabled {
		return nil
	}
	if strings.TrimSpace(c.ImageGen.BaseURL) == "" {
		return errors.New("imagegen.base_url must be set when imagegen.enabled is true")
	}
	if strings.TrimSpace(c.ImageGen.APIKey) == "" {
		return errors.New("imagegen.api_key must be set when imagegen.enabled is true")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if !c.Ingest.Enabled {
		return nil
	}
	if c.Ingest.URL == "" {
		return errors.New("ingest.url must be set when ingest.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
