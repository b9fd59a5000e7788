package visual

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storyforge/internal/logging"
	"storyforge/internal/services/textgen"
	"storyforge/internal/story"
)

// TextBackend is the slice of the text-generation client the generator needs.
type TextBackend interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const defaultAspectRatio = "16:9"

// Generator turns story text into image-generation prompts. The first prompt
// is always the hero; supporting prompts rotate through the focus cycle so a
// story gets visual variety without repetition.
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
		log:     logging.NewComponentLogger(logger, "visual"),
	}
}

// Generate returns exactly n prompts for the story. Individual backend
// failures substitute a deterministic fallback prompt, so the length
// invariant always holds.
func (g *Generator) Generate(ctx context.Context, content story.StoryContent, category, style string, n int) ([]story.ImagePrompt, error) {
	if n <= 0 {
		return nil, fmt.Errorf("image count must be positive, got %d", n)
	}

	prompts := make([]story.ImagePrompt, 0, n)
	fallbacks := 0
	for i := 0; i < n; i++ {
		focus := story.FocusHero
		if i > 0 {
			focus = story.SupportingFocusCycle[(i-1)%len(story.SupportingFocusCycle)]
		}

		prompt, err := g.generateOne(ctx, content, category, style, focus, i)
		if err != nil {
			g.log.Warn("image prompt fell back to template",
				slog.Int("index", i),
				slog.String("focus", string(focus)),
				logging.Error(err),
			)
			prompt = fallbackPrompt(content, category, style, focus)
			fallbacks++
		}
		prompts = append(prompts, prompt)
	}

	g.log.Info("image prompts generated",
		slog.Int("count", len(prompts)),
		slog.Int("fallbacks", fallbacks),
	)
	return prompts, nil
}

type promptResult struct {
	Prompt           string   `json:"prompt"`
	Mood             string   `json:"mood"`
	ColorPalette     []string `json:"color_palette"`
	CompositionNotes string   `json:"composition_notes"`
	TargetEmotion    string   `json:"target_emotion"`
}

const promptSystemTemplate = `You write prompts for an image-generation model illustrating news stories. Respond with JSON only:
{"prompt": "one concrete visual scene under 1000 characters", "mood": "...",
 "color_palette": ["colors"], "composition_notes": "...", "target_emotion": "..."}`

func (g *Generator) generateOne(ctx context.Context, content story.StoryContent, category, style string, focus story.Focus, index int) (story.ImagePrompt, error) {
	brief := focusBrief(focus)
	var visualHint string
	if len(content.VisualDescriptions) > 0 {
		visualHint = content.VisualDescriptions[index%len(content.VisualDescriptions)]
	}

	user := fmt.Sprintf(`Story title: %s
Summary: %s
Category: %s
Style: %s
Focus: %s — %s
Suggested scene: %s`,
		content.Title, content.Summary, category, style, focus, brief, visualHint)

	payload, err := g.backend.CompleteJSON(ctx, promptSystemTemplate, user)
	if err != nil {
		return story.ImagePrompt{}, err
	}
	var decoded promptResult
	if err := textgen.DecodeModelJSON(payload, &decoded); err != nil {
		return story.ImagePrompt{}, err
	}
	if strings.TrimSpace(decoded.Prompt) == "" {
		return story.ImagePrompt{}, fmt.Errorf("model returned empty prompt")
	}

	palette := decoded.ColorPalette
	if len(palette) == 0 {
		palette = PaletteFor(category)
	}
	return story.ImagePrompt{
		Text:             decoded.Prompt,
		Style:            style,
		Mood:             decoded.Mood,
		ColorPalette:     palette,
		CompositionNotes: decoded.CompositionNotes,
		TargetEmotion:    decoded.TargetEmotion,
		Focus:            focus,
		AspectRatio:      defaultAspectRatio,
	}, nil
}

func focusBrief(focus story.Focus) string {
	switch focus {
	case story.FocusHero:
		return "the single image that captures the whole story, strong enough to work as a thumbnail"
	case story.FocusDetail:
		return "a close-up of one telling detail from the story"
	case story.FocusContext:
		return "the wider setting or environment the story happens in"
	case story.FocusEmotion:
		return "the human reaction or feeling at the center of the story"
	case story.FocusAction:
		return "the key event of the story in motion"
	case story.FocusConsequence:
		return "what the world looks like after this story plays out"
	default:
		return "a scene from the story"
	}
}

// fallbackPrompt builds a deterministic prompt from the style, category
// fragments, and story title.
func fallbackPrompt(content story.StoryContent, category, style string, focus story.Focus) story.ImagePrompt {
	palette := PaletteFor(category)
	text := fmt.Sprintf("%s, %s scene, %s, illustrating %q, %s color scheme",
		style, category, focusBrief(focus), content.Title, strings.Join(palette, " and "))

	mood := "engaging"
	if focus == story.FocusHero {
		mood = "striking"
	}
	return story.ImagePrompt{
		Text:             text,
		Style:            style,
		Mood:             mood,
		ColorPalette:     palette,
		CompositionNotes: "clear single subject, uncluttered background",
		TargetEmotion:    "interest",
		Focus:            focus,
		AspectRatio:      defaultAspectRatio,
		Fallback:         true,
	}
}
