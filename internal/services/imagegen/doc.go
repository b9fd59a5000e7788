// Package imagegen is the client for the image generation backend. It posts
// visual prompts and returns references to the hosted results, retrying
// transient failures the same way the text backend client does.
package imagegen
