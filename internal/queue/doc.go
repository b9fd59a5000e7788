// Package queue persists pipeline tasks in SQLite and exposes the task
// lifecycle used by the orchestrator: pending tasks are claimed by stage
// handlers, advanced through the processing statuses, and finally land in
// published or failed. The store retries on SQLITE_BUSY and keeps every
// timestamp in RFC 3339 UTC so the database stays portable.
package queue
