// Package visual generates image prompts for a story: a hero prompt first,
// then supporting prompts rotating through a fixed focus cycle. Backend
// failures substitute deterministic fallback prompts, so callers always get
// exactly the number of prompts they asked for.
package visual
