package queue

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"storyforge/internal/story"
)

// Status represents the lifecycle of a pipeline task.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAnalyzing        Status = "analyzing"
	StatusGeneratingStory  Status = "generating_story"
	StatusGeneratingImages Status = "generating_images"
	StatusAssembling       Status = "assembling"
	StatusPublished        Status = "published"
	StatusFailed           Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusAnalyzing,
	StatusGeneratingStory,
	StatusGeneratingImages,
	StatusAssembling,
	StatusPublished,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAnalyzing:        {},
	StatusGeneratingStory:  {},
	StatusGeneratingImages: {},
	StatusAssembling:       {},
}

// Source identifies where submitted content came from.
type Source string

const (
	SourceExternalFeed   Source = "external_feed"
	SourceTrendingSignal Source = "trending_signal"
	SourceScraped        Source = "scraped"
	SourceUserSubmitted  Source = "user_submitted"
)

// Task represents a pipeline task persisted in SQLite.
type Task struct {
	ID             string
	Source         Source
	Content        story.RawContent
	Status         Status
	Priority       int
	RetryCount     int
	StoryType      string
	TargetAudience string
	NarrativeAngle string
	Metadata       map[string]string
	ErrorMessage   string
	Result         *story.Package
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status ends the task lifecycle.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// IsProcessing reports whether the status reflects an in-flight stage.
func IsProcessing(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsProcessing returns true when the task is mid-stage.
func (t Task) IsProcessing() bool {
	return IsProcessing(t.Status)
}

// SetFailed marks the task as terminally failed with the given error message.
func (t *Task) SetFailed(message string) {
	t.Status = StatusFailed
	t.ErrorMessage = message
	now := time.Now().UTC()
	t.CompletedAt = &now
}

// RecordRetryError appends an error to the task metadata so the retry history
// survives re-enqueueing.
func (t *Task) RecordRetryError(message string) {
	if t.Metadata == nil {
		t.Metadata = make(map[string]string)
	}
	key := fmt.Sprintf("error_%d", t.RetryCount)
	t.Metadata[key] = message
}

// NewTaskID derives a stable task identifier from the submission time and a
// fingerprint of the content text: task_<UTC timestamp>_<fingerprint mod 10000>.
func NewTaskID(content story.RawContent, now time.Time) string {
	sum := sha256.Sum256([]byte(content.Title + "\n" + content.Text()))
	fingerprint := binary.BigEndian.Uint64(sum[:8]) % 10000
	return fmt.Sprintf("task_%s_%d", now.UTC().Format("20060102_150405"), fingerprint)
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Published  int
	Failed     int
}
