package narrative

import (
	"fmt"
	"strings"

	"storyforge/internal/story"
)

// fallbackProse builds a deterministic story from the raw content when prose
// generation fails. The source title and text carry the story; structure
// labels become paragraph leads.
func fallbackProse(content story.RawContent, analysis story.Analysis, storyType string) proseResult {
	title := strings.TrimSpace(content.Title)
	if title == "" {
		title = titleCaser.String(analysis.Category) + " Update"
	}

	text := strings.TrimSpace(content.Text())
	summary := truncateRunes(text, 200)
	if summary == "" {
		summary = title
	}

	var body strings.Builder
	body.WriteString(text)
	if body.Len() == 0 {
		body.WriteString(summary)
	}

	return proseResult{
		Title:            title,
		Headline:         title,
		Subheadline:      fmt.Sprintf("A %s story from the %s desk", strings.ReplaceAll(storyType, "_", " "), analysis.Category),
		Body:             body.String(),
		Summary:          summary,
		EmotionalJourney: []string{"interest", "understanding"},
		CallToAction:     "Follow for updates on this story.",
		Complexity:       "moderate",
	}
}

func fallbackCaptions(title, category string) []string {
	return []string{
		truncateRunes(title, 100),
		truncateRunes(fmt.Sprintf("The latest in %s: %s", category, title), 100),
	}
}

func fallbackHashtags(analysis story.Analysis) []string {
	tags := []string{"news"}
	if analysis.Category != "" && analysis.Category != "unknown" {
		tags = append(tags, analysis.Category)
	}
	for _, keyword := range analysis.TrendingKeywords {
		keyword = strings.ToLower(strings.Join(strings.Fields(keyword), ""))
		if keyword == "" {
			continue
		}
		tags = append(tags, keyword)
		if len(tags) == 5 {
			break
		}
	}
	return tags
}

func fallbackVisualDescriptions(title, category string) []string {
	return []string{
		fmt.Sprintf("An establishing scene that captures the essence of %q", title),
		fmt.Sprintf("A closer view of the people or places central to this %s story", category),
		"A concluding image suggesting what happens next",
	}
}
