package decision

import (
	"storyforge/internal/queue"
	"storyforge/internal/story"
)

// Candidate is one piece of collectable content a source proposes for the
// pipeline.
type Candidate struct {
	Content    story.RawContent
	Source     queue.Source
	Kind       string // breaking_news, trending, scheduled, user_submitted
	Category   string
	Volume     int
	GrowthRate float64
	Breaking   bool
}

// priorityWeights maps a candidate kind to its submission priority.
var priorityWeights = map[string]int{
	"breaking_news":  10,
	"trending":       8,
	"user_submitted": 7,
	"scheduled":      5,
}

const defaultPriority = 5

// boostedCategories get a score multiplier; these consistently outperform in
// engagement.
var boostedCategories = map[string]struct{}{
	"technology": {},
	"science":    {},
	"business":   {},
}

const categoryMultiplier = 1.5

// PriorityFor returns the submission priority for a candidate kind.
func PriorityFor(kind string) int {
	if weight, ok := priorityWeights[kind]; ok {
		return weight
	}
	return defaultPriority
}

// Score rates a candidate 0-100: trend volume buckets, growth rate, a
// breaking-news bonus, and article completeness, with a category boost
// applied last.
func Score(candidate Candidate) float64 {
	score := volumeScore(candidate.Volume) +
		growthScore(candidate.GrowthRate) +
		completenessScore(candidate.Content)

	if candidate.Breaking {
		score += 20
	}
	if _, ok := boostedCategories[candidate.Category]; ok {
		score *= categoryMultiplier
	}
	if score > 100 {
		score = 100
	}
	return score
}

func volumeScore(volume int) float64 {
	switch {
	case volume > 100000:
		return 40
	case volume > 10000:
		return 30
	case volume > 1000:
		return 20
	case volume > 100:
		return 10
	default:
		return 0
	}
}

func growthScore(rate float64) float64 {
	if rate < 0 {
		rate = -rate
	}
	switch {
	case rate > 1000:
		return 30
	case rate > 500:
		return 25
	case rate > 100:
		return 20
	case rate > 50:
		return 15
	case rate > 10:
		return 10
	default:
		return 0
	}
}

// completenessScore rewards candidates whose article payload is ready for
// the pipeline.
func completenessScore(content story.RawContent) float64 {
	score := 0.0
	if content.Title != "" {
		score += 4
	}
	if len(content.Body) >= 200 {
		score += 8
	} else if content.Body != "" {
		score += 4
	}
	if content.Summary != "" {
		score += 2
	}
	if content.URL != "" {
		score += 2
	}
	if content.SourceName != "" {
		score += 2
	}
	if content.PublishedAt != nil {
		score += 2
	}
	return score
}
