package queue_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storyforge/internal/queue"
	"storyforge/internal/story"
	"storyforge/internal/testsupport"
)

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	return testsupport.NewStore(t)
}

func sampleTask(id string) *queue.Task {
	return &queue.Task{
		ID:     id,
		Source: queue.SourceExternalFeed,
		Content: story.RawContent{
			Title:      "Hydrogen plant opens",
			Body:       "The first commercial hydrogen plant in the region began operating today.",
			URL:        "https://example.com/hydrogen",
			SourceName: "Example Wire",
		},
		Status:         queue.StatusPending,
		Priority:       3,
		StoryType:      "breaking_news",
		TargetAudience: "general",
		NarrativeAngle: "informative",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task_20260101_120000_42")
	task.Metadata = map[string]string{"error_0": "backend timeout"}
	task.RetryCount = 1
	completed := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	task.CompletedAt = &completed
	task.Result = &story.Package{
		Story: story.StoryContent{
			Title:       "Hydrogen Arrives",
			Headline:    "Region powers up first hydrogen plant",
			Body:        "Full story body.",
			ReadingTime: 45,
			Outcome:     story.OutcomeFull,
		},
		Images: []story.ImageRef{{
			URL:     "https://img.example.com/1.png",
			Prompt:  "wide shot of an industrial hydrogen facility",
			Caption: "The new plant at dawn",
		}},
	}

	if err := store.Insert(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected task, got nil")
	}
	if got.Source != queue.SourceExternalFeed {
		t.Errorf("source = %q", got.Source)
	}
	if got.Content.Title != task.Content.Title || got.Content.Body != task.Content.Body {
		t.Errorf("content round trip mismatch: %+v", got.Content)
	}
	if got.Priority != 3 || got.RetryCount != 1 {
		t.Errorf("priority/retry = %d/%d", got.Priority, got.RetryCount)
	}
	if got.Metadata["error_0"] != "backend timeout" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.Result == nil || got.Result.Story.Title != "Hydrogen Arrives" {
		t.Errorf("result round trip mismatch: %+v", got.Result)
	}
	if len(got.Result.Images) != 1 || got.Result.Images[0].Caption != "The new plant at dawn" {
		t.Errorf("images round trip mismatch: %+v", got.Result.Images)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, completed)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetByID(context.Background(), "task_nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task_20260101_120000_7")
	if err := store.Insert(ctx, task); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := store.Insert(ctx, sampleTask(task.ID))
	if !errors.Is(err, queue.ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestListOrdersByPriorityThenAge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	low := sampleTask("task_a")
	low.Priority = 1
	low.CreatedAt = base
	high := sampleTask("task_b")
	high.Priority = 9
	high.CreatedAt = base.Add(time.Minute)
	mid := sampleTask("task_c")
	mid.Priority = 5
	mid.CreatedAt = base.Add(2 * time.Minute)

	for _, task := range []*queue.Task{low, high, mid} {
		if err := store.Insert(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	tasks, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, len(tasks))
	for i, task := range tasks {
		got[i] = task.ID
	}
	want := []string{"task_b", "task_c", "task_a"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestUpdatePersistsStatusTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task_20260101_120000_8")
	if err := store.Insert(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}

	task.Status = queue.StatusAnalyzing
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != queue.StatusAnalyzing {
		t.Fatalf("status = %q, want analyzing", got.Status)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("updated_at %v precedes created_at %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestResetIncomplete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stuck := sampleTask("task_stuck")
	stuck.Status = queue.StatusGeneratingStory
	done := sampleTask("task_done")
	done.Status = queue.StatusPublished
	failed := sampleTask("task_failed")
	failed.SetFailed("backend unreachable")

	for _, task := range []*queue.Task{stuck, done, failed} {
		if err := store.Insert(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	reset, err := store.ResetIncomplete(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}

	got, err := store.GetByID(ctx, "task_stuck")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	gotDone, _ := store.GetByID(ctx, "task_done")
	if gotDone.Status != queue.StatusPublished {
		t.Fatalf("published task touched: %q", gotDone.Status)
	}
}

func TestPurgeCompletedBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := sampleTask("task_old")
	old.Status = queue.StatusPublished
	oldDone := time.Now().UTC().Add(-2 * time.Hour)
	old.CompletedAt = &oldDone

	fresh := sampleTask("task_fresh")
	fresh.Status = queue.StatusPublished
	freshDone := time.Now().UTC().Add(-time.Minute)
	fresh.CompletedAt = &freshDone

	active := sampleTask("task_active")

	for _, task := range []*queue.Task{old, fresh, active} {
		if err := store.Insert(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	removed, err := store.PurgeCompletedBefore(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if got, _ := store.GetByID(ctx, "task_old"); got != nil {
		t.Fatal("old task survived purge")
	}
	if got, _ := store.GetByID(ctx, "task_fresh"); got == nil {
		t.Fatal("fresh task purged")
	}
}

func TestStatsAndHealth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending := sampleTask("task_p")
	working := sampleTask("task_w")
	working.Status = queue.StatusAssembling
	published := sampleTask("task_ok")
	published.Status = queue.StatusPublished
	failed := sampleTask("task_bad")
	failed.SetFailed("oops")

	for _, task := range []*queue.Task{pending, working, published, failed} {
		if err := store.Insert(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusAssembling] != 1 {
		t.Fatalf("stats = %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 4 || health.Pending != 1 || health.Processing != 1 || health.Published != 1 || health.Failed != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestClearVariants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	published := sampleTask("task_ok")
	published.Status = queue.StatusPublished
	failed := sampleTask("task_bad")
	failed.SetFailed("oops")
	pending := sampleTask("task_p")

	for _, task := range []*queue.Task{published, failed, pending} {
		if err := store.Insert(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	if n, err := store.ClearPublished(ctx); err != nil || n != 1 {
		t.Fatalf("clear published = %d, %v", n, err)
	}
	if n, err := store.ClearFailed(ctx); err != nil || n != 1 {
		t.Fatalf("clear failed = %d, %v", n, err)
	}
	if n, err := store.Clear(ctx); err != nil || n != 1 {
		t.Fatalf("clear all = %d, %v", n, err)
	}
}

func TestNewTaskIDFormat(t *testing.T) {
	content := story.RawContent{Title: "A", Body: "B"}
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := queue.NewTaskID(content, when)
	if !strings.HasPrefix(id, "task_20260314_092653_") {
		t.Fatalf("id = %q", id)
	}
	if id != queue.NewTaskID(content, when) {
		t.Fatal("task id not deterministic")
	}
	other := queue.NewTaskID(story.RawContent{Title: "C", Body: "D"}, when)
	if other == id {
		t.Fatalf("distinct content produced same id %q", id)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  queue.Status
		ok    bool
	}{
		{"pending", queue.StatusPending, true},
		{" Published ", queue.StatusPublished, true},
		{"GENERATING_IMAGES", queue.StatusGeneratingImages, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.input)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseStatus(%q) = %q, %v", tc.input, got, ok)
		}
	}
}
