package visual_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storyforge/internal/story"
	"storyforge/internal/visual"
)

type stubBackend struct {
	err   error
	calls int
}

func (s *stubBackend) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	mood := "calm"
	if strings.Contains(userPrompt, "Focus: hero") {
		mood = "striking"
	}
	return `{"prompt": "a detailed scene", "mood": "` + mood + `",
		"color_palette": ["teal", "amber"], "composition_notes": "rule of thirds", "target_emotion": "awe"}`, nil
}

func sampleStory() story.StoryContent {
	return story.StoryContent{
		Title:              "Harbor cleanup ahead of schedule",
		Summary:            "Volunteers cleared the harbor months early.",
		VisualDescriptions: []string{"volunteers hauling nets", "a clean shoreline at sunset"},
	}
}

func TestGenerateExactCountHeroFirst(t *testing.T) {
	backend := &stubBackend{}
	g := visual.New(backend, nil)

	prompts, err := g.Generate(context.Background(), sampleStory(), "environment", "digital art", 4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(prompts) != 4 {
		t.Fatalf("count = %d, want 4", len(prompts))
	}
	if prompts[0].Focus != story.FocusHero {
		t.Fatalf("first focus = %q, want hero", prompts[0].Focus)
	}
	if prompts[0].Mood != "striking" {
		t.Errorf("hero mood = %q", prompts[0].Mood)
	}
	wantFocus := []story.Focus{story.FocusDetail, story.FocusContext, story.FocusEmotion}
	for i, want := range wantFocus {
		if prompts[i+1].Focus != want {
			t.Errorf("prompt %d focus = %q, want %q", i+1, prompts[i+1].Focus, want)
		}
	}
	if backend.calls != 4 {
		t.Errorf("backend calls = %d", backend.calls)
	}
}

func TestGenerateFocusCycleWraps(t *testing.T) {
	g := visual.New(&stubBackend{}, nil)

	prompts, err := g.Generate(context.Background(), sampleStory(), "science", "illustration", 8)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// Supporting prompts cycle detail..consequence; index 6 is supporting
	// slot 5, which wraps back to detail.
	if prompts[6].Focus != story.FocusDetail {
		t.Errorf("cycle did not wrap: prompt 6 focus = %q, want detail", prompts[6].Focus)
	}
	seen := map[story.Focus]int{}
	for _, p := range prompts[1:6] {
		seen[p.Focus]++
	}
	for focus, count := range seen {
		if count != 1 {
			t.Errorf("focus %q appeared %d times inside one cycle", focus, count)
		}
	}
}

func TestGenerateFallbackKeepsCountInvariant(t *testing.T) {
	backend := &stubBackend{err: errors.New("image backend down")}
	g := visual.New(backend, nil)

	prompts, err := g.Generate(context.Background(), sampleStory(), "technology", "concept art", 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("count = %d, want 3", len(prompts))
	}
	for i, p := range prompts {
		if !p.Fallback {
			t.Errorf("prompt %d not marked fallback", i)
		}
		if !strings.Contains(p.Text, "concept art") || !strings.Contains(p.Text, "Harbor cleanup ahead of schedule") {
			t.Errorf("fallback prompt %d missing style or title: %q", i, p.Text)
		}
		if strings.Join(p.ColorPalette, ",") != "blue,silver,white,neon" {
			t.Errorf("prompt %d palette = %v", i, p.ColorPalette)
		}
	}
}

func TestGenerateRejectsNonPositiveCount(t *testing.T) {
	g := visual.New(&stubBackend{}, nil)
	if _, err := g.Generate(context.Background(), sampleStory(), "world", "digital art", 0); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestPaletteFor(t *testing.T) {
	if strings.Join(visual.PaletteFor("science"), ",") != "blue,green,purple,white" {
		t.Errorf("science palette = %v", visual.PaletteFor("science"))
	}
	if len(visual.PaletteFor("unknown-category")) == 0 {
		t.Error("default palette empty")
	}
}
