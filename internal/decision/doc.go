// Package decision is the optional policy layer above the orchestrator. It
// collects candidate content from registered sources each cycle, scores and
// deduplicates it, enqueues the best with source-dependent priorities, and
// adapts its defaults from aggregated performance metrics.
package decision
