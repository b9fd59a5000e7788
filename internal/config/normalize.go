package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeTextGen()
	c.normalizeImageGen()
	c.normalizeAnalysis()
	c.normalizeDecision()
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.MaxConcurrentTasks <= 0 {
		c.Pipeline.MaxConcurrentTasks = defaultMaxConcurrentTasks
	}
	if c.Pipeline.RetryLimit < 0 {
		c.Pipeline.RetryLimit = defaultRetryLimit
	}
	if c.Pipeline.StageTimeout <= 0 {
		c.Pipeline.StageTimeout = defaultStageTimeout
	}
	if c.Pipeline.QueuePollInterval <= 0 {
		c.Pipeline.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Pipeline.ErrorRetryInterval <= 0 {
		c.Pipeline.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Pipeline.CompletedRetention <= 0 {
		c.Pipeline.CompletedRetention = defaultCompletedRetention
	}
	if c.Pipeline.MinImagesPerStory <= 0 {
		c.Pipeline.MinImagesPerStory = defaultMinImagesPerStory
	}
	if c.Pipeline.MaxImagesPerStory <= 0 {
		c.Pipeline.MaxImagesPerStory = defaultMaxImagesPerStory
	}
	c.Pipeline.DefaultStoryType = strings.ToLower(strings.TrimSpace(c.Pipeline.DefaultStoryType))
	if c.Pipeline.DefaultStoryType == "" {
		c.Pipeline.DefaultStoryType = defaultStoryType
	}
	c.Pipeline.DefaultAudience = strings.ToLower(strings.TrimSpace(c.Pipeline.DefaultAudience))
	if c.Pipeline.DefaultAudience == "" {
		c.Pipeline.DefaultAudience = defaultAudience
	}
	c.Pipeline.DefaultAngle = strings.ToLower(strings.TrimSpace(c.Pipeline.DefaultAngle))
	if c.Pipeline.DefaultAngle == "" {
		c.Pipeline.DefaultAngle = defaultAngle
	}
	c.Pipeline.DefaultVisualStyle = strings.TrimSpace(c.Pipeline.DefaultVisualStyle)
	if c.Pipeline.DefaultVisualStyle == "" {
		c.Pipeline.DefaultVisualStyle = defaultVisualStyle
	}
}

func (c *Config) normalizeTextGen() {
	c.TextGen.APIKey = strings.TrimSpace(c.TextGen.APIKey)
	if c.TextGen.APIKey == "" {
		if value, ok := os.LookupEnv("STORYFORGE_TEXTGEN_API_KEY"); ok {
			c.TextGen.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.TextGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.TextGen.BaseURL = strings.TrimSpace(c.TextGen.BaseURL)
	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = defaultTextGenBaseURL
	}
	c.TextGen.Model = strings.TrimSpace(c.TextGen.Model)
	if c.TextGen.Model == "" {
		c.TextGen.Model = defaultTextGenModel
	}
	c.TextGen.Referer = strings.TrimSpace(c.TextGen.Referer)
	c.TextGen.Title = strings.TrimSpace(c.TextGen.Title)
	if c.TextGen.TimeoutSeconds <= 0 {
		c.TextGen.TimeoutSeconds = defaultTextGenTimeout
	}
}

func (c *Config) normalizeImageGen() {
	c.ImageGen.APIKey = strings.TrimSpace(c.ImageGen.APIKey)
	if c.ImageGen.APIKey == "" {
		if value, ok := os.LookupEnv("STORYFORGE_IMAGEGEN_API_KEY"); ok {
			c.ImageGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.ImageGen.BaseURL = strings.TrimSpace(c.ImageGen.BaseURL)
	c.ImageGen.Model = strings.TrimSpace(c.ImageGen.Model)
	if c.ImageGen.TimeoutSeconds <= 0 {
		c.ImageGen.TimeoutSeconds = defaultImageGenTimeout
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.MinContentLength <= 0 {
		c.Analysis.MinContentLength = defaultMinContentLength
	}
}

func (c *Config) normalizeDecision() {
	if c.Decision.CycleInterval <= 0 {
		c.Decision.CycleInterval = defaultDecisionCycle
	}
	if c.Decision.MinTrendVolume <= 0 {
		c.Decision.MinTrendVolume = defaultMinTrendVolume
	}
	if c.Decision.AdaptationInterval <= 0 {
		c.Decision.AdaptationInterval = defaultAdaptationInterval
	}
}

func (c *Config) normalizeIngest() {
	c.Ingest.URL = strings.TrimSpace(c.Ingest.URL)
	c.Ingest.Subject = strings.TrimSpace(c.Ingest.Subject)
	if c.Ingest.Subject == "" {
		c.Ingest.Subject = defaultIngestSubject
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
