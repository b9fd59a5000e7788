// Command storyforge is the CLI for the storyforge pipeline: it submits
// articles, inspects task status, and maintains the shared task queue. The
// long-running pipeline itself is storyforged.
package main
