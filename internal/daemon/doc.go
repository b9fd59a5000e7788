// Package daemon assembles the pipeline from configuration and manages its
// lifecycle: single-instance locking, crash recovery of interrupted tasks,
// and coordinated shutdown of the scheduler, decision engine, and trend
// ingestion.
package daemon
