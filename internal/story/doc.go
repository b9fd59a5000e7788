// Package story defines the artifacts the pipeline produces: content
// analysis, narrative text, image prompts, and the assembled publishable
// package. Types here are plain data with JSON tags so the queue store can
// persist them without translation.
package story
