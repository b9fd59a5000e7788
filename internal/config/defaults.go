package config

const (
	defaultDataDir            = "~/.local/share/storyforge"
	defaultLogDir             = "~/.local/share/storyforge/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMaxConcurrentTasks = 3
	defaultRetryLimit         = 3
	defaultStageTimeout       = 300
	defaultQueuePollInterval  = 1
	defaultErrorRetryInterval = 5
	defaultCompletedRetention = 3600
	defaultMinImagesPerStory  = 3
	defaultMaxImagesPerStory  = 5
	defaultStoryType          = "breaking_news"
	defaultAudience           = "general"
	defaultAngle              = "informative"
	defaultVisualStyle        = "photorealistic"
	defaultTextGenBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultTextGenModel       = "google/gemini-3-flash-preview"
	defaultTextGenTimeout     = 60
	defaultImageGenTimeout    = 120
	defaultMinContentLength   = 100
	defaultDecisionCycle      = 300
	defaultMinTrendVolume     = 1000
	defaultAdaptationInterval = 3600
	defaultIngestSubject      = "storyforge.trends"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Pipeline: Pipeline{
			MaxConcurrentTasks: defaultMaxConcurrentTasks,
			RetryLimit:         defaultRetryLimit,
			StageTimeout:       defaultStageTimeout,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			CompletedRetention: defaultCompletedRetention,
			MinImagesPerStory:  defaultMinImagesPerStory,
			MaxImagesPerStory:  defaultMaxImagesPerStory,
			DefaultStoryType:   defaultStoryType,
			DefaultAudience:    defaultAudience,
			DefaultAngle:       defaultAngle,
			DefaultVisualStyle: defaultVisualStyle,
		},
		TextGen: TextGen{
			BaseURL:        defaultTextGenBaseURL,
			Model:          defaultTextGenModel,
			TimeoutSeconds: defaultTextGenTimeout,
		},
		ImageGen: ImageGen{
			TimeoutSeconds: defaultImageGenTimeout,
		},
		Analysis: Analysis{
			MinContentLength: defaultMinContentLength,
		},
		Decision: Decision{
			CycleInterval:      defaultDecisionCycle,
			MinTrendVolume:     defaultMinTrendVolume,
			AdaptationInterval: defaultAdaptationInterval,
		},
		Ingest: Ingest{
			URL:     "nats://127.0.0.1:4222",
			Subject: defaultIngestSubject,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
