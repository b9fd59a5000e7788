package narrative_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storyforge/internal/narrative"
	"storyforge/internal/story"
)

type stubBackend struct {
	responses map[string]string
	failOn    map[string]bool
	calls     []string
}

func (s *stubBackend) CompleteJSON(_ context.Context, systemPrompt, _ string) (string, error) {
	key := promptKind(systemPrompt)
	s.calls = append(s.calls, key)
	if s.failOn[key] {
		return "", errors.New("backend unavailable")
	}
	if response, ok := s.responses[key]; ok {
		return response, nil
	}
	return "", errors.New("unexpected prompt")
}

func promptKind(systemPrompt string) string {
	switch {
	case strings.Contains(systemPrompt, "story architect"):
		return "structure"
	case strings.Contains(systemPrompt, "news writer"):
		return "prose"
	case strings.Contains(systemPrompt, "captions"):
		return "captions"
	case strings.Contains(systemPrompt, "hashtags"):
		return "hashtags"
	case strings.Contains(systemPrompt, "describe images"):
		return "visuals"
	default:
		return "unknown"
	}
}

func workingBackend() *stubBackend {
	return &stubBackend{
		responses: map[string]string{
			"structure": `{"sections": [{"name": "hook", "purpose": "grab attention", "tone": "urgent"},
				{"name": "key_facts", "purpose": "lay out the facts", "tone": "clear"}]}`,
			"prose": `{"title": "Fusion Milestone Reached", "headline": "Lab sustains fusion reaction for a full minute",
				"subheadline": "A first for the field", "body": "` + strings.Repeat("word ", 600) + `",
				"summary": "A lab sustained fusion for sixty seconds. The result moves practical power closer.",
				"emotional_journey": ["surprise", "hope"], "call_to_action": "Read the full paper.", "complexity": "moderate"}`,
			"captions": `{"captions": ["Fusion held for a full minute", "A new record for clean energy"]}`,
			"hashtags": `{"hashtags": ["#fusion", "energy", " #science "]}`,
			"visuals":  `{"descriptions": ["A glowing toroidal reactor chamber", "Scientists watching a control room display"]}`,
		},
		failOn: map[string]bool{},
	}
}

func sampleContent() story.RawContent {
	return story.RawContent{
		Title: "Fusion lab sets duration record",
		Body:  "Researchers sustained a fusion reaction for sixty seconds, a duration record for the field.",
	}
}

func sampleAnalysis() story.Analysis {
	return story.Analysis{
		Category:         "science",
		Sentiment:        "positive",
		TrendingKeywords: []string{"fusion energy", "clean power"},
	}
}

func TestGenerateFullOutcome(t *testing.T) {
	backend := workingBackend()
	g := narrative.New(backend, nil)

	got, err := g.Generate(context.Background(), sampleContent(), sampleAnalysis(), "breaking_news", "informative", "general")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Outcome != story.OutcomeFull {
		t.Fatalf("outcome = %q, want full", got.Outcome)
	}
	if got.Title != "Fusion Milestone Reached" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Sections) != 2 || got.Sections[0].Name != "hook" {
		t.Errorf("sections = %+v", got.Sections)
	}
	for _, tag := range got.Hashtags {
		if strings.HasPrefix(tag, "#") {
			t.Errorf("hashtag %q kept its prefix", tag)
		}
	}
	// 600 words at 300 wpm with the 20% buffer is 144 seconds.
	if got.ReadingTime != 144 {
		t.Errorf("reading time = %d, want 144", got.ReadingTime)
	}
	if len(backend.calls) != 5 {
		t.Errorf("backend calls = %v", backend.calls)
	}
}

func TestGenerateStructureFallback(t *testing.T) {
	backend := workingBackend()
	backend.failOn["structure"] = true
	g := narrative.New(backend, nil)

	got, err := g.Generate(context.Background(), sampleContent(), sampleAnalysis(), "breaking_news", "informative", "general")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Outcome != story.OutcomeDegraded {
		t.Fatalf("outcome = %q, want degraded", got.Outcome)
	}
	names := make([]string, len(got.Sections))
	for i, s := range got.Sections {
		names[i] = s.Name
	}
	want := "hook,key_facts,impact,what_next"
	if strings.Join(names, ",") != want {
		t.Fatalf("canonical sections = %v, want %s", names, want)
	}
}

func TestGenerateAllBackendsFailStillProducesStory(t *testing.T) {
	backend := &stubBackend{failOn: map[string]bool{
		"structure": true, "prose": true, "captions": true, "hashtags": true, "visuals": true,
	}}
	g := narrative.New(backend, nil)

	got, err := g.Generate(context.Background(), sampleContent(), sampleAnalysis(), "explainer", "informative", "general")
	if err != nil {
		t.Fatalf("generate must degrade, got error: %v", err)
	}
	if got.Outcome != story.OutcomeDegraded {
		t.Fatalf("outcome = %q, want degraded", got.Outcome)
	}
	if got.Title == "" || got.Body == "" || got.Summary == "" {
		t.Fatalf("fallback story incomplete: %+v", got)
	}
	if len(got.Captions) == 0 || len(got.Hashtags) == 0 || len(got.VisualDescriptions) == 0 {
		t.Fatalf("fallback artifacts missing: %+v", got)
	}
	if got.ReadingTime < 30 {
		t.Fatalf("reading time below floor: %d", got.ReadingTime)
	}
}

func TestGenerateUnknownStoryTypeUsesAnalysisStructure(t *testing.T) {
	backend := workingBackend()
	backend.failOn["structure"] = true
	g := narrative.New(backend, nil)

	got, err := g.Generate(context.Background(), sampleContent(), sampleAnalysis(), "no_such_type", "informative", "general")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Sections[0].Name != "context" {
		t.Fatalf("expected in_depth_analysis fallback structure, got %+v", got.Sections)
	}
}

func TestReadingTimeDeterministic(t *testing.T) {
	body := strings.Repeat("steady prose flows onward ", 100)
	first := narrative.ReadingTime(body)
	second := narrative.ReadingTime(body)
	if first != second {
		t.Fatalf("reading time not deterministic: %d vs %d", first, second)
	}
	if narrative.ReadingTime("") != 30 {
		t.Fatalf("empty body floor = %d, want 30", narrative.ReadingTime(""))
	}
	// 400 words at 300 wpm with the buffer is 96 seconds.
	if first != 96 {
		t.Fatalf("reading time = %d, want 96", first)
	}
}

func TestStoryTypesTable(t *testing.T) {
	types := narrative.StoryTypes()
	if len(types) != 10 {
		t.Fatalf("story types = %d, want 10", len(types))
	}
	for _, required := range []string{"breaking_news", "explainer", "timeline", "comparison"} {
		if !narrative.KnownStoryType(required) {
			t.Errorf("missing story type %q", required)
		}
	}
}
