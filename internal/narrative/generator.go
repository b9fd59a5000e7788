package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyforge/internal/logging"
	"storyforge/internal/services/textgen"
	"storyforge/internal/story"
)

// TextBackend is the slice of the text-generation client the generator needs.
type TextBackend interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	// readingPaceWPM is the assumed reading speed; the buffer accounts for
	// pauses on captions and images.
	readingPaceWPM     = 300.0
	readingTimeBuffer  = 1.2
	minReadingTimeSecs = 30

	maxSourceRunes = 2500
)

var titleCaser = cases.Title(language.English)

// Generator turns analyzed content into structured story text in three
// phases: a structure plan, the prose expansion, and auxiliary artifacts
// (captions, hashtags, visual descriptions). Each phase degrades to a
// deterministic template when its backend call fails.
type Generator struct {
	backend TextBackend
	log     *slog.Logger
}

// New builds a Generator.
func New(backend TextBackend, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		backend: backend,
		log:     logging.NewComponentLogger(logger, "narrative"),
	}
}

// Generate produces the story artifact for one analyzed content item. It
// never fails on a malformed model response; the result's Outcome records
// whether any phase fell back.
func (g *Generator) Generate(ctx context.Context, content story.RawContent, analysis story.Analysis, storyType, angle, audience string) (story.StoryContent, error) {
	if storyType == "" || !KnownStoryType(storyType) {
		storyType = fallbackStructureType
	}

	degraded := false

	sections, err := g.planStructure(ctx, content, analysis, storyType, angle, audience)
	if err != nil {
		g.log.Warn("structure plan fell back to canonical sections",
			slog.String(logging.FieldStoryType, storyType), logging.Error(err))
		sections = canonicalSections(storyType)
		degraded = true
	}

	prose, err := g.writeProse(ctx, content, analysis, sections, storyType, angle, audience)
	if err != nil {
		g.log.Warn("prose generation fell back to template",
			slog.String(logging.FieldStoryType, storyType), logging.Error(err))
		prose = fallbackProse(content, analysis, storyType)
		degraded = true
	}

	captions, err := g.writeCaptions(ctx, prose.Title, prose.Summary)
	if err != nil {
		g.log.Warn("caption generation fell back to template", logging.Error(err))
		captions = fallbackCaptions(prose.Title, analysis.Category)
		degraded = true
	}

	hashtags, err := g.writeHashtags(ctx, prose.Title, analysis)
	if err != nil {
		g.log.Warn("hashtag generation fell back to template", logging.Error(err))
		hashtags = fallbackHashtags(analysis)
		degraded = true
	}

	visuals, err := g.writeVisualDescriptions(ctx, prose.Title, prose.Summary, storyType)
	if err != nil {
		g.log.Warn("visual description generation fell back to template", logging.Error(err))
		visuals = fallbackVisualDescriptions(prose.Title, analysis.Category)
		degraded = true
	}

	outcome := story.OutcomeFull
	if degraded {
		outcome = story.OutcomeDegraded
	}

	result := story.StoryContent{
		Title:              prose.Title,
		Headline:           prose.Headline,
		Subheadline:        prose.Subheadline,
		Body:               prose.Body,
		Summary:            prose.Summary,
		Captions:           captions,
		Hashtags:           hashtags,
		CallToAction:       prose.CallToAction,
		Sections:           sections,
		VisualDescriptions: visuals,
		EmotionalJourney:   prose.EmotionalJourney,
		TargetAudience:     audience,
		ReadingTime:        ReadingTime(prose.Body),
		Complexity:         prose.Complexity,
		Outcome:            outcome,
	}

	g.log.Info("story generated",
		slog.String(logging.FieldStoryType, storyType),
		slog.Int("reading_time_seconds", result.ReadingTime),
		slog.String(logging.FieldOutcome, string(outcome)),
	)
	return result, nil
}

// ReadingTime estimates reading duration in seconds from word count alone.
func ReadingTime(body string) int {
	words := len(strings.Fields(body))
	seconds := int(float64(words) / readingPaceWPM * 60 * readingTimeBuffer)
	if seconds < minReadingTimeSecs {
		return minReadingTimeSecs
	}
	return seconds
}

const structureSystemPrompt = `You are a story architect. Plan the section structure for a short-form news story. Respond with JSON only:
{"sections": [{"name": "section name", "purpose": "what the section accomplishes", "tone": "tone for the section"}]}`

func (g *Generator) planStructure(ctx context.Context, content story.RawContent, analysis story.Analysis, storyType, angle, audience string) ([]story.Section, error) {
	user := fmt.Sprintf(`Title: %s
Category: %s
Story type: %s
Narrative angle: %s
Target audience: %s
Canonical sections for this type: %s

Article:
%s`,
		content.Title, analysis.Category, storyType, angle, audience,
		strings.Join(sectionNames(canonicalSections(storyType)), ", "),
		truncateRunes(content.Text(), maxSourceRunes))

	payload, err := g.backend.CompleteJSON(ctx, structureSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Sections []story.Section `json:"sections"`
	}
	if err := textgen.DecodeModelJSON(payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Sections) == 0 {
		return nil, fmt.Errorf("model returned no sections")
	}
	return decoded.Sections, nil
}

type proseResult struct {
	Title            string   `json:"title"`
	Headline         string   `json:"headline"`
	Subheadline      string   `json:"subheadline"`
	Body             string   `json:"body"`
	Summary          string   `json:"summary"`
	EmotionalJourney []string `json:"emotional_journey"`
	CallToAction     string   `json:"call_to_action"`
	Complexity       string   `json:"complexity"`
}

const proseSystemPrompt = `You are a digital news writer. Expand the given structure into full story prose. Respond with JSON only:
{"title": "...", "headline": "...", "subheadline": "...", "body": "full prose covering every section",
 "summary": "two-sentence summary", "emotional_journey": ["emotion per section"],
 "call_to_action": "...", "complexity": "simple, moderate, or complex"}`

func (g *Generator) writeProse(ctx context.Context, content story.RawContent, analysis story.Analysis, sections []story.Section, storyType, angle, audience string) (proseResult, error) {
	var plan strings.Builder
	for _, section := range sections {
		fmt.Fprintf(&plan, "- %s: %s (tone: %s)\n", section.Name, section.Purpose, section.Tone)
	}
	user := fmt.Sprintf(`Structure:
%s
Story type: %s
Narrative angle: %s
Target audience: %s
Category: %s
Sentiment: %s

Source title: %s
Source article:
%s`,
		plan.String(), storyType, angle, audience, analysis.Category, analysis.Sentiment,
		content.Title, truncateRunes(content.Text(), maxSourceRunes))

	payload, err := g.backend.CompleteJSON(ctx, proseSystemPrompt, user)
	if err != nil {
		return proseResult{}, err
	}
	var decoded proseResult
	if err := textgen.DecodeModelJSON(payload, &decoded); err != nil {
		return proseResult{}, err
	}
	if decoded.Title == "" || decoded.Body == "" {
		return proseResult{}, fmt.Errorf("model returned empty title or body")
	}
	if decoded.Summary == "" {
		decoded.Summary = truncateRunes(decoded.Body, 200)
	}
	return decoded, nil
}

const captionSystemPrompt = `You write short social captions for news stories. Respond with JSON only:
{"captions": ["three captions, each 20 to 100 characters"]}`

func (g *Generator) writeCaptions(ctx context.Context, title, summary string) ([]string, error) {
	payload, err := g.backend.CompleteJSON(ctx, captionSystemPrompt,
		fmt.Sprintf("Title: %s\nSummary: %s", title, summary))
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Captions []string `json:"captions"`
	}
	if err := textgen.DecodeModelJSON(payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Captions) == 0 {
		return nil, fmt.Errorf("model returned no captions")
	}
	return decoded.Captions, nil
}

const hashtagSystemPrompt = `You write hashtags for news stories. Respond with JSON only:
{"hashtags": ["three to eight hashtags without the # prefix"]}`

func (g *Generator) writeHashtags(ctx context.Context, title string, analysis story.Analysis) ([]string, error) {
	payload, err := g.backend.CompleteJSON(ctx, hashtagSystemPrompt,
		fmt.Sprintf("Title: %s\nCategory: %s\nKeywords: %s",
			title, analysis.Category, strings.Join(analysis.TrendingKeywords, ", ")))
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Hashtags []string `json:"hashtags"`
	}
	if err := textgen.DecodeModelJSON(payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Hashtags) == 0 {
		return nil, fmt.Errorf("model returned no hashtags")
	}
	return normalizeHashtags(decoded.Hashtags), nil
}

const visualSystemPrompt = `You describe images for a visual news story. Respond with JSON only:
{"descriptions": ["three to five concrete scene descriptions an illustrator could draw"]}`

func (g *Generator) writeVisualDescriptions(ctx context.Context, title, summary, storyType string) ([]string, error) {
	payload, err := g.backend.CompleteJSON(ctx, visualSystemPrompt,
		fmt.Sprintf("Title: %s\nStory type: %s\nSummary: %s", title, storyType, summary))
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Descriptions []string `json:"descriptions"`
	}
	if err := textgen.DecodeModelJSON(payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Descriptions) == 0 {
		return nil, fmt.Errorf("model returned no descriptions")
	}
	return decoded.Descriptions, nil
}

func sectionNames(sections []story.Section) []string {
	names := make([]string, len(sections))
	for i, section := range sections {
		names[i] = section.Name
	}
	return names
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
