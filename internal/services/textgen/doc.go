// Package textgen is the client for the generative text backend. It speaks
// the OpenAI-compatible chat completion protocol, retries transient HTTP
// failures with exponential backoff (honoring Retry-After), and knows how to
// decode model JSON that arrives wrapped in code fences or prose.
package textgen
