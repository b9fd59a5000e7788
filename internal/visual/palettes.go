package visual

// categoryPalettes maps a content category to the default color palette used
// when the backend omits one or the call fails.
var categoryPalettes = map[string][]string{
	"technology":    {"blue", "silver", "white", "neon"},
	"business":      {"blue", "gray", "gold", "white"},
	"politics":      {"red", "blue", "white", "gold"},
	"sports":        {"bright colors", "team colors", "dynamic"},
	"entertainment": {"vibrant", "colorful", "eye-catching"},
	"science":       {"blue", "green", "purple", "white"},
	"world":         {"earth tones", "cultural colors", "diverse"},
	"health":        {"green", "blue", "white", "clean"},
	"environment":   {"green", "blue", "brown", "natural"},
}

var defaultPalette = []string{"balanced", "neutral", "editorial"}

// PaletteFor returns the default palette for a category.
func PaletteFor(category string) []string {
	if palette, ok := categoryPalettes[category]; ok {
		out := make([]string, len(palette))
		copy(out, palette)
		return out
	}
	out := make([]string, len(defaultPalette))
	copy(out, defaultPalette)
	return out
}
