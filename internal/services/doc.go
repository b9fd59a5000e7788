// Package services holds cross-cutting helpers for external backend
// integrations: the sentinel error taxonomy used for retry classification
// and context annotations that thread task, stage, and request identifiers
// through backend calls.
package services
