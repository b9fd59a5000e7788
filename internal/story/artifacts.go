package story

import "time"

// Outcome describes how completely a pipeline stage produced its artifact.
type Outcome string

const (
	// OutcomeFull means every generation call succeeded.
	OutcomeFull Outcome = "full"
	// OutcomeDegraded means at least one generation call fell back to a
	// deterministic template.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeEmpty means generation was skipped entirely, for example when
	// content is below the analysis length threshold.
	OutcomeEmpty Outcome = "empty"
)

// RawContent is the submitted article or signal payload a task carries
// through the pipeline.
type RawContent struct {
	Title       string            `json:"title"`
	Summary     string            `json:"summary,omitempty"`
	Body        string            `json:"body"`
	URL         string            `json:"url,omitempty"`
	SourceName  string            `json:"source_name,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Text returns the analyzable text of the content: body when present,
// otherwise the summary.
func (c RawContent) Text() string {
	if c.Body != "" {
		return c.Body
	}
	return c.Summary
}

// Analysis is the content analyzer's artifact.
type Analysis struct {
	Category            string   `json:"category"`
	QualityScore        float64  `json:"quality_score"`
	RelevanceScore      float64  `json:"relevance_score"`
	EngagementPotential float64  `json:"engagement_potential"`
	Sentiment           string   `json:"sentiment"`
	SentimentScore      float64  `json:"sentiment_score"`
	Entities            []string `json:"entities,omitempty"`
	Topics              []string `json:"topics,omitempty"`
	StoryPotential      float64  `json:"story_potential"`
	TargetAudience      string   `json:"target_audience,omitempty"`
	ContentLength       int      `json:"content_length"`
	ReadabilityScore    float64  `json:"readability_score"`
	EmotionalAppeal     float64  `json:"emotional_appeal"`
	TrendingKeywords    []string `json:"trending_keywords,omitempty"`
	GeographicRelevance string   `json:"geographic_relevance,omitempty"`
	TimeSensitivity     string   `json:"time_sensitivity,omitempty"`
	Fingerprint         string   `json:"fingerprint,omitempty"`
	Outcome             Outcome  `json:"outcome"`
	AnalyzedAt          time.Time `json:"analyzed_at"`
}

// Section is one planned segment of a story.
type Section struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose,omitempty"`
	Tone    string `json:"tone,omitempty"`
}

// StoryContent is the narrative generator's artifact.
type StoryContent struct {
	Title              string    `json:"title"`
	Headline           string    `json:"headline"`
	Subheadline        string    `json:"subheadline,omitempty"`
	Body               string    `json:"body"`
	Summary            string    `json:"summary"`
	Captions           []string  `json:"captions,omitempty"`
	Hashtags           []string  `json:"hashtags,omitempty"`
	CallToAction       string    `json:"call_to_action,omitempty"`
	Sections           []Section `json:"sections,omitempty"`
	VisualDescriptions []string  `json:"visual_descriptions,omitempty"`
	EmotionalJourney   []string  `json:"emotional_journey,omitempty"`
	TargetAudience     string    `json:"target_audience,omitempty"`
	ReadingTime        int       `json:"reading_time_seconds"`
	Complexity         string    `json:"complexity,omitempty"`
	Outcome            Outcome   `json:"outcome"`
}

// Focus identifies what an image prompt should depict.
type Focus string

const (
	FocusHero        Focus = "hero"
	FocusDetail      Focus = "detail"
	FocusContext     Focus = "context"
	FocusEmotion     Focus = "emotion"
	FocusAction      Focus = "action"
	FocusConsequence Focus = "consequence"
)

// SupportingFocusCycle is the rotation supporting prompts follow after the
// hero image.
var SupportingFocusCycle = []Focus{FocusDetail, FocusContext, FocusEmotion, FocusAction, FocusConsequence}

// ImagePrompt is a single visual generation request.
type ImagePrompt struct {
	Text             string   `json:"text"`
	Style            string   `json:"style,omitempty"`
	Mood             string   `json:"mood,omitempty"`
	ColorPalette     []string `json:"color_palette,omitempty"`
	CompositionNotes string   `json:"composition_notes,omitempty"`
	TargetEmotion    string   `json:"target_emotion,omitempty"`
	Focus            Focus    `json:"focus"`
	AspectRatio      string   `json:"aspect_ratio,omitempty"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// ImageRef is a generated image attached to a published story.
type ImageRef struct {
	URL         string    `json:"url"`
	Prompt      string    `json:"prompt"`
	Caption     string    `json:"caption,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Provenance records where a published story came from.
type Provenance struct {
	TaskID         string    `json:"task_id"`
	Source         string    `json:"source"`
	StoryType      string    `json:"story_type"`
	TargetAudience string    `json:"target_audience,omitempty"`
	NarrativeAngle string    `json:"narrative_angle,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	PublishedAt    time.Time `json:"published_at"`
}

// Package is the assembled, publishable result of a pipeline run.
type Package struct {
	Story      StoryContent `json:"story"`
	Images     []ImageRef   `json:"images,omitempty"`
	Analysis   Analysis     `json:"analysis"`
	Provenance Provenance   `json:"provenance"`
}
