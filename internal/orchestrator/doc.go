// Package orchestrator is the pipeline core. It owns the priority-ordered
// pending set, dispatches a bounded number of tasks concurrently, drives
// each through analysis, narrative generation, image generation, and
// assembly, persists every status transition, and applies the retry policy
// with a priority bump so retried tasks do not starve.
package orchestrator
