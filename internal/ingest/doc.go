// Package ingest subscribes to trend signals on a NATS subject and feeds
// them to the decision engine as candidates.
package ingest
