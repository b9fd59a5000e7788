package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"storyforge/internal/config"
	"storyforge/internal/logging"
	"storyforge/internal/services/textgen"
	"storyforge/internal/story"
)

// TextBackend is the slice of the text-generation client the analyzer needs.
type TextBackend interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	maxEntities     = 20
	maxKeywords     = 15
	maxPromptRunes  = 2000
	defaultCategory = "world"
	emptyCategory   = "unknown"

	qualityLengthTarget   = 2000.0
	engagementIdealLength = 1500.0
)

// Analyzer scores and classifies raw content. Deterministic statistics are
// always computed locally; category, entity, and keyword extraction go
// through the text backend with conservative defaults when a call fails.
type Analyzer struct {
	backend   TextBackend
	minLength int
	log       *slog.Logger
	now       func() time.Time
}

// Option adjusts analyzer construction.
type Option func(*Analyzer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds an Analyzer from configuration.
func New(backend TextBackend, cfg config.Analysis, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Analyzer{
		backend:   backend,
		minLength: cfg.MinContentLength,
		log:       logging.NewComponentLogger(logger, "analyzer"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces the analysis artifact for one content item. Content below
// the minimum length short-circuits to an empty result without touching the
// backend. Backend failures degrade the result instead of failing the task.
func (a *Analyzer) Analyze(ctx context.Context, content story.RawContent, source string) (story.Analysis, error) {
	text := normalizeText(content.Text())
	stats := computeTextStats(text)

	if stats.Length < a.minLength {
		a.log.Info("content below minimum length, skipping analysis",
			slog.Int("length", stats.Length),
			slog.Int("min_length", a.minLength),
		)
		return story.Analysis{
			Category:      emptyCategory,
			ContentLength: stats.Length,
			Outcome:       story.OutcomeEmpty,
			AnalyzedAt:    a.now().UTC(),
		}, nil
	}

	polarity, subjectivity := scoreSentiment(text)
	emotionalAppeal := clampUnit(math.Abs(polarity) * subjectivity)

	degraded := false

	classification, err := a.classify(ctx, content.Title, text)
	if err != nil {
		a.log.Warn("classification fell back to defaults", logging.Error(err))
		classification = defaultClassification()
		degraded = true
	}

	entities, err := a.extractEntities(ctx, content.Title, text)
	if err != nil {
		a.log.Warn("entity extraction fell back to defaults", logging.Error(err))
		entities = nil
		degraded = true
	}

	keywords, err := a.extractKeywords(ctx, content.Title, text)
	if err != nil {
		a.log.Warn("keyword extraction fell back to defaults", logging.Error(err))
		keywords = nil
		degraded = true
	}

	lengthScore := clampUnit(float64(stats.Length) / qualityLengthTarget)
	quality := mean(lengthScore, stats.Readability, 0.7)

	lengthFit := clampUnit(1 - math.Abs(float64(stats.Length)-engagementIdealLength)/engagementIdealLength)
	engagement := mean(emotionalAppeal, lengthFit, 0.5)

	relevance := clampUnit(classification.RelevanceScore)
	potential := clampUnit(classification.StoryPotential)
	if potential == 0 {
		potential = mean(quality, engagement, relevance)
	}

	outcome := story.OutcomeFull
	if degraded {
		outcome = story.OutcomeDegraded
	}

	analysis := story.Analysis{
		Category:            classification.Category,
		QualityScore:        clampUnit(quality),
		RelevanceScore:      relevance,
		EngagementPotential: clampUnit(engagement),
		Sentiment:           sentimentLabel(polarity),
		SentimentScore:      polarity,
		Entities:            entities,
		Topics:              classification.Topics,
		StoryPotential:      potential,
		TargetAudience:      classification.TargetAudience,
		ContentLength:       stats.Length,
		ReadabilityScore:    stats.Readability,
		EmotionalAppeal:     emotionalAppeal,
		TrendingKeywords:    keywords,
		GeographicRelevance: classification.GeographicRelevance,
		TimeSensitivity:     classification.TimeSensitivity,
		Fingerprint:         fingerprint(text),
		Outcome:             outcome,
		AnalyzedAt:          a.now().UTC(),
	}

	a.log.Info("content analyzed",
		slog.String("category", analysis.Category),
		slog.String("sentiment", analysis.Sentiment),
		slog.Float64("quality", analysis.QualityScore),
		slog.String(logging.FieldSource, source),
		slog.String(logging.FieldOutcome, string(outcome)),
	)
	return analysis, nil
}

type classification struct {
	Category            string   `json:"category"`
	Topics              []string `json:"topics"`
	TargetAudience      string   `json:"target_audience"`
	TimeSensitivity     string   `json:"time_sensitivity"`
	GeographicRelevance string   `json:"geographic_relevance"`
	RelevanceScore      float64  `json:"relevance_score"`
	StoryPotential      float64  `json:"story_potential"`
}

func defaultClassification() classification {
	return classification{
		Category:            defaultCategory,
		TargetAudience:      "general",
		TimeSensitivity:     "evergreen",
		GeographicRelevance: "global",
		RelevanceScore:      0.5,
		StoryPotential:      0,
	}
}

const classifySystemPrompt = `You are a news content analyst. Classify the article and respond with JSON only:
{"category": "one of technology, science, business, politics, health, sports, entertainment, world",
 "topics": ["up to five short topic labels"],
 "target_audience": "general, professional, youth, or academic",
 "time_sensitivity": "breaking, timely, or evergreen",
 "geographic_relevance": "local, national, or global",
 "relevance_score": 0.0 to 1.0,
 "story_potential": 0.0 to 1.0}`

func (a *Analyzer) classify(ctx context.Context, title, text string) (classification, error) {
	payload, err := a.backend.CompleteJSON(ctx, classifySystemPrompt, buildPrompt(title, text))
	if err != nil {
		return classification{}, err
	}
	var result classification
	if err := textgen.DecodeModelJSON(payload, &result); err != nil {
		return classification{}, err
	}
	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	if result.Category == "" {
		result.Category = defaultCategory
	}
	if result.TargetAudience == "" {
		result.TargetAudience = "general"
	}
	if len(result.Topics) > 5 {
		result.Topics = result.Topics[:5]
	}
	return result, nil
}

const entitySystemPrompt = `You are a named-entity extractor. Respond with JSON only:
{"entities": ["people, organizations, and places mentioned in the article"]}`

func (a *Analyzer) extractEntities(ctx context.Context, title, text string) ([]string, error) {
	payload, err := a.backend.CompleteJSON(ctx, entitySystemPrompt, buildPrompt(title, text))
	if err != nil {
		return nil, err
	}
	var result struct {
		Entities []string `json:"entities"`
	}
	if err := textgen.DecodeModelJSON(payload, &result); err != nil {
		return nil, err
	}
	return dedupeStrings(result.Entities, maxEntities), nil
}

const keywordSystemPrompt = `You are a trend analyst. Respond with JSON only:
{"keywords": ["short search-friendly keywords a reader would use to find this story"]}`

func (a *Analyzer) extractKeywords(ctx context.Context, title, text string) ([]string, error) {
	payload, err := a.backend.CompleteJSON(ctx, keywordSystemPrompt, buildPrompt(title, text))
	if err != nil {
		return nil, err
	}
	var result struct {
		Keywords []string `json:"keywords"`
	}
	if err := textgen.DecodeModelJSON(payload, &result); err != nil {
		return nil, err
	}
	return dedupeStrings(result.Keywords, maxKeywords), nil
}

func buildPrompt(title, text string) string {
	runes := []rune(text)
	if len(runes) > maxPromptRunes {
		text = string(runes[:maxPromptRunes])
	}
	return fmt.Sprintf("Title: %s\n\nArticle:\n%s", title, text)
}

func dedupeStrings(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
		if len(out) == limit {
			break
		}
	}
	return out
}
