package narrative

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"storyforge/internal/story"
)

//go:embed structures.yaml
var structuresYAML []byte

// fallbackStructureType is used when a requested story type has no canonical
// section list.
const fallbackStructureType = "in_depth_analysis"

var canonicalStructures = mustLoadStructures()

func mustLoadStructures() map[string][]string {
	structures := make(map[string][]string)
	if err := yaml.Unmarshal(structuresYAML, &structures); err != nil {
		panic(fmt.Sprintf("narrative: parse embedded structures: %v", err))
	}
	return structures
}

// StoryTypes returns the known story types in sorted order.
func StoryTypes() []string {
	types := make([]string, 0, len(canonicalStructures))
	for name := range canonicalStructures {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// KnownStoryType reports whether a story type has a canonical structure.
func KnownStoryType(storyType string) bool {
	_, ok := canonicalStructures[storyType]
	return ok
}

// canonicalSections builds the deterministic fallback plan for a story type.
func canonicalSections(storyType string) []story.Section {
	names, ok := canonicalStructures[storyType]
	if !ok {
		names = canonicalStructures[fallbackStructureType]
	}
	sections := make([]story.Section, len(names))
	for i, name := range names {
		sections[i] = story.Section{
			Name:    name,
			Purpose: "cover the " + name + " of the story",
			Tone:    "clear",
		}
	}
	return sections
}
