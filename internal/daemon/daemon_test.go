package daemon_test

import (
	"context"
	"testing"
	"time"

	"storyforge/internal/config"
	"storyforge/internal/daemon"
	"storyforge/internal/queue"
	"storyforge/internal/story"
	"storyforge/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithLocalBackends())
}

func TestStartStop(t *testing.T) {
	cfg := testConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Running() {
		t.Fatal("daemon not running after start")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second start succeeded")
	}

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("stop did not complete")
	}
	if d.Running() {
		t.Fatal("daemon still running after stop")
	}
}

func TestSingleInstanceLock(t *testing.T) {
	cfg := testConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	first, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}
}

func TestStartResetsInterruptedTasks(t *testing.T) {
	cfg := testConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	stuck := &queue.Task{
		ID:        "task_interrupted",
		Source:    queue.SourceScraped,
		Content:   story.RawContent{Title: "left behind", Body: "body"},
		Status:    queue.StatusGeneratingStory,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), stuck); err != nil {
		t.Fatalf("insert: %v", err)
	}

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	// The reset happens synchronously during Start, before the scheduler
	// can dispatch the task.
	got, err := store.GetByID(context.Background(), stuck.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status == queue.StatusGeneratingStory {
		t.Fatalf("interrupted task not reset: %q", got.Status)
	}
}
