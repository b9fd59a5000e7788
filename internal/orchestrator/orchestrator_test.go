package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyforge/internal/config"
	"storyforge/internal/narrative"
	"storyforge/internal/orchestrator"
	"storyforge/internal/queue"
	"storyforge/internal/services"
	"storyforge/internal/story"
	"storyforge/internal/testsupport"
)

type fnAnalyzer func(ctx context.Context, content story.RawContent, source string) (story.Analysis, error)

func (f fnAnalyzer) Analyze(ctx context.Context, content story.RawContent, source string) (story.Analysis, error) {
	return f(ctx, content, source)
}

type fnStory func(ctx context.Context, content story.RawContent, analysis story.Analysis, storyType, angle, audience string) (story.StoryContent, error)

func (f fnStory) Generate(ctx context.Context, content story.RawContent, analysis story.Analysis, storyType, angle, audience string) (story.StoryContent, error) {
	return f(ctx, content, analysis, storyType, angle, audience)
}

type fnPrompts func(ctx context.Context, content story.StoryContent, category, style string, n int) ([]story.ImagePrompt, error)

func (f fnPrompts) Generate(ctx context.Context, content story.StoryContent, category, style string, n int) ([]story.ImagePrompt, error) {
	return f(ctx, content, category, style, n)
}

type fnImages func(ctx context.Context, prompt story.ImagePrompt) (story.ImageRef, error)

func (f fnImages) Generate(ctx context.Context, prompt story.ImagePrompt) (story.ImageRef, error) {
	return f(ctx, prompt)
}

func okStages() orchestrator.Stages {
	return orchestrator.Stages{
		Analyzer: fnAnalyzer(func(_ context.Context, _ story.RawContent, _ string) (story.Analysis, error) {
			return story.Analysis{Category: "science", Outcome: story.OutcomeFull}, nil
		}),
		Story: fnStory(func(_ context.Context, content story.RawContent, _ story.Analysis, _, _, _ string) (story.StoryContent, error) {
			body := strings.Repeat("steady prose continues onward through the story ", 60)
			return story.StoryContent{
				Title:              "Generated: " + content.Title,
				Body:               body,
				Summary:            "summary",
				VisualDescriptions: []string{"a", "b", "c"},
				ReadingTime:        narrative.ReadingTime(body),
				Outcome:            story.OutcomeFull,
			}, nil
		}),
		Prompts: fnPrompts(func(_ context.Context, _ story.StoryContent, _, style string, n int) ([]story.ImagePrompt, error) {
			prompts := make([]story.ImagePrompt, n)
			for i := range prompts {
				focus := story.FocusHero
				if i > 0 {
					focus = story.SupportingFocusCycle[(i-1)%len(story.SupportingFocusCycle)]
				}
				prompts[i] = story.ImagePrompt{Text: "scene", Style: style, Focus: focus}
			}
			return prompts, nil
		}),
		Images: fnImages(func(_ context.Context, prompt story.ImagePrompt) (story.ImageRef, error) {
			return story.ImageRef{URL: "https://img.example/" + string(prompt.Focus), Prompt: prompt.Text}, nil
		}),
	}
}

func testPipelineConfig() config.Pipeline {
	cfg := config.Default().Pipeline
	cfg.MaxConcurrentTasks = 2
	cfg.RetryLimit = 3
	cfg.QueuePollInterval = 1
	cfg.StageTimeout = 30
	return cfg
}

func TestSetMaxConcurrentClampsToOne(t *testing.T) {
	store := testsupport.NewStore(t)
	o := orchestrator.New(store, okStages(), testPipelineConfig(), nil)

	if got := o.MaxConcurrent(); got != 2 {
		t.Fatalf("initial limit = %d, want 2", got)
	}
	o.SetMaxConcurrent(4)
	if got := o.MaxConcurrent(); got != 4 {
		t.Errorf("limit = %d, want 4", got)
	}
	o.SetMaxConcurrent(0)
	if got := o.MaxConcurrent(); got != 4 {
		t.Errorf("limit = %d after invalid set, want 4", got)
	}
}

func newStore(t *testing.T) *queue.Store {
	t.Helper()
	return testsupport.NewStore(t)
}

func articleContent(title string) story.RawContent {
	return story.RawContent{
		Title: title,
		Body:  strings.Repeat("This article carries enough substance to clear the analysis threshold. ", 30),
	}
}

func startOrchestrator(t *testing.T, o *orchestrator.Orchestrator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("orchestrator did not stop")
		}
	})
	return cancel
}

func waitForStatus(t *testing.T, o *orchestrator.Orchestrator, taskID string, want queue.Status) orchestrator.View {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		view, err := o.Status(context.Background(), taskID)
		if err == nil && view.Status == want {
			return view
		}
		time.Sleep(25 * time.Millisecond)
	}
	view, err := o.Status(context.Background(), taskID)
	t.Fatalf("task %s never reached %s (last: %+v, err: %v)", taskID, want, view, err)
	return orchestrator.View{}
}

func TestEndToEndPublish(t *testing.T) {
	store := newStore(t)
	o := orchestrator.New(store, okStages(), testPipelineConfig(), nil)
	startOrchestrator(t, o)

	id, err := o.Submit(context.Background(), orchestrator.Submission{
		Content:  articleContent("Deep sea survey finds new species"),
		Source:   queue.SourceExternalFeed,
		Priority: 5,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	view := waitForStatus(t, o, id, queue.StatusPublished)
	if view.Result == nil {
		t.Fatal("published task has no result")
	}
	if view.Result.Story.Title == "" || view.Result.Story.Body == "" {
		t.Errorf("story incomplete: %+v", view.Result.Story)
	}
	if len(view.Result.Images) != 3 {
		t.Errorf("images = %d, want 3", len(view.Result.Images))
	}
	if rt := view.Result.Story.ReadingTime; rt < 30 {
		t.Errorf("reading time = %d, want at least 30", rt)
	}
	if view.Result.Provenance.TaskID != id {
		t.Errorf("provenance task id = %q", view.Result.Provenance.TaskID)
	}

	// Persisted row matches the observed terminal state.
	persisted, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get persisted: %v", err)
	}
	if persisted.Status != queue.StatusPublished || persisted.Result == nil {
		t.Errorf("persisted = %+v", persisted)
	}
}

func TestRetentionSweepKeepsPersistedRows(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	cfg.CompletedRetention = 1

	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	o := orchestrator.New(store, okStages(), cfg, nil, orchestrator.WithClock(clock))
	startOrchestrator(t, o)

	id, err := o.Submit(context.Background(), orchestrator.Submission{
		Content: articleContent("Archive survives the retention window"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, o, id, queue.StatusPublished)

	// Age the completed entry past the retention window and give the
	// scheduler time for at least one sweep.
	offset.Store(int64(2 * time.Hour))
	time.Sleep(2500 * time.Millisecond)

	persisted, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get persisted: %v", err)
	}
	if persisted == nil {
		t.Fatal("published row removed by retention sweep")
	}
	if persisted.Status != queue.StatusPublished || persisted.Result == nil {
		t.Errorf("persisted = %+v", persisted)
	}

	// The in-memory index may have evicted the task; Status still resolves
	// through the store.
	view, err := o.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("status after sweep: %v", err)
	}
	if view.Status != queue.StatusPublished || view.Result == nil {
		t.Errorf("view = %+v", view)
	}
}

func TestStatusSafeDuringExecution(t *testing.T) {
	store := newStore(t)
	o := orchestrator.New(store, okStages(), testPipelineConfig(), nil)
	startOrchestrator(t, o)

	id, err := o.Submit(context.Background(), orchestrator.Submission{
		Content: articleContent("Concurrent readers watch the pipeline"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Hammer Status from several goroutines while the task moves through
	// the pipeline; the race detector flags unsynchronized task writes.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := o.Status(context.Background(), id); err != nil {
					t.Errorf("status: %v", err)
					return
				}
			}
		}()
	}

	waitForStatus(t, o, id, queue.StatusPublished)
	close(stop)
	wg.Wait()
}

func TestPriorityOrderingWithFIFOTieBreak(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	cfg.MaxConcurrentTasks = 1

	var mu sync.Mutex
	var order []string
	stages := okStages()
	stages.Analyzer = fnAnalyzer(func(_ context.Context, content story.RawContent, _ string) (story.Analysis, error) {
		mu.Lock()
		order = append(order, content.Title)
		mu.Unlock()
		return story.Analysis{Category: "world"}, nil
	})

	o := orchestrator.New(store, stages, cfg, nil)

	// Submit before the scheduler starts so dispatch order is decided
	// purely by the pending set.
	ids := map[string]string{}
	for _, spec := range []struct {
		title    string
		priority int
	}{
		{"low", 1},
		{"high", 9},
		{"mid-first", 5},
		{"mid-second", 5},
	} {
		id, err := o.Submit(context.Background(), orchestrator.Submission{
			Content:  articleContent(spec.title),
			Priority: spec.priority,
		})
		if err != nil {
			t.Fatalf("submit %s: %v", spec.title, err)
		}
		ids[spec.title] = id
	}

	startOrchestrator(t, o)
	for _, title := range []string{"low", "high", "mid-first", "mid-second"} {
		waitForStatus(t, o, ids[title], queue.StatusPublished)
	}

	mu.Lock()
	got := strings.Join(order, ",")
	mu.Unlock()
	if got != "high,mid-first,mid-second,low" {
		t.Fatalf("dispatch order = %s", got)
	}
}

func TestConcurrencyNeverExceedsLimit(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	cfg.MaxConcurrentTasks = 2

	var inflight, peak atomic.Int64
	stages := okStages()
	stages.Analyzer = fnAnalyzer(func(_ context.Context, _ story.RawContent, _ string) (story.Analysis, error) {
		current := inflight.Add(1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inflight.Add(-1)
		return story.Analysis{Category: "world"}, nil
	})

	o := orchestrator.New(store, stages, cfg, nil)
	startOrchestrator(t, o)

	var ids []string
	for i := 0; i < 6; i++ {
		id, err := o.Submit(context.Background(), orchestrator.Submission{
			Content: articleContent("burst " + strings.Repeat("x", i+1)),
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitForStatus(t, o, id, queue.StatusPublished)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestRetryThenPublish(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	cfg.MaxConcurrentTasks = 1

	var attempts atomic.Int64
	stages := okStages()
	stages.Analyzer = fnAnalyzer(func(_ context.Context, _ story.RawContent, _ string) (story.Analysis, error) {
		if attempts.Add(1) <= 2 {
			return story.Analysis{}, errors.New("transient backend hiccup")
		}
		return story.Analysis{Category: "world"}, nil
	})

	o := orchestrator.New(store, stages, cfg, nil)
	startOrchestrator(t, o)

	id, err := o.Submit(context.Background(), orchestrator.Submission{
		Content:  articleContent("flaky stage"),
		Priority: 2,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	view := waitForStatus(t, o, id, queue.StatusPublished)
	if view.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", view.RetryCount)
	}
	if view.Priority != 4 {
		t.Errorf("priority = %d, want 4 after two bumps", view.Priority)
	}
}

func TestExhaustedRetriesFail(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	cfg.MaxConcurrentTasks = 1
	cfg.RetryLimit = 3

	var attempts atomic.Int64
	stages := okStages()
	stages.Analyzer = fnAnalyzer(func(_ context.Context, _ story.RawContent, _ string) (story.Analysis, error) {
		attempts.Add(1)
		return story.Analysis{}, errors.New("permanent outage")
	})

	o := orchestrator.New(store, stages, cfg, nil)
	startOrchestrator(t, o)

	id, err := o.Submit(context.Background(), orchestrator.Submission{Content: articleContent("doomed")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	view := waitForStatus(t, o, id, queue.StatusFailed)
	if view.RetryCount != cfg.RetryLimit {
		t.Errorf("retry count = %d, want %d", view.RetryCount, cfg.RetryLimit)
	}
	if view.ErrorMessage == "" {
		t.Error("failed task has no error message")
	}

	// No further dispatch after terminal failure.
	settled := attempts.Load()
	time.Sleep(1500 * time.Millisecond)
	if attempts.Load() != settled {
		t.Fatalf("task dispatched after terminal failure: %d -> %d", settled, attempts.Load())
	}
	if settled != int64(cfg.RetryLimit)+1 {
		t.Errorf("attempts = %d, want %d", settled, cfg.RetryLimit+1)
	}
}

func TestPermanentErrorSkipsRetry(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	cfg.MaxConcurrentTasks = 1

	stages := okStages()
	stages.Story = fnStory(func(_ context.Context, _ story.RawContent, _ story.Analysis, _, _, _ string) (story.StoryContent, error) {
		return story.StoryContent{}, services.Wrap(services.ErrValidation, "narrative", "generate", "unusable input", nil)
	})

	o := orchestrator.New(store, stages, cfg, nil)
	startOrchestrator(t, o)

	id, err := o.Submit(context.Background(), orchestrator.Submission{Content: articleContent("invalid")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	view := waitForStatus(t, o, id, queue.StatusFailed)
	if view.RetryCount != 0 {
		t.Errorf("validation error was retried %d times", view.RetryCount)
	}
}

func TestStatusUnknownTask(t *testing.T) {
	store := newStore(t)
	o := orchestrator.New(store, okStages(), testPipelineConfig(), nil)

	_, err := o.Status(context.Background(), "task_never_existed")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	store := newStore(t)
	o := orchestrator.New(store, okStages(), testPipelineConfig(), nil)

	if _, err := o.Submit(context.Background(), orchestrator.Submission{}); !errors.Is(err, services.ErrValidation) {
		t.Errorf("empty content: err = %v", err)
	}
	if _, err := o.Submit(context.Background(), orchestrator.Submission{
		Content:  articleContent("negative"),
		Priority: -1,
	}); !errors.Is(err, services.ErrValidation) {
		t.Errorf("negative priority: err = %v", err)
	}
}

func TestSubmitAppliesDefaults(t *testing.T) {
	store := newStore(t)
	cfg := testPipelineConfig()
	o := orchestrator.New(store, okStages(), cfg, nil)

	id, err := o.Submit(context.Background(), orchestrator.Submission{Content: articleContent("defaults")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	task, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.StoryType != cfg.DefaultStoryType {
		t.Errorf("story type = %q, want %q", task.StoryType, cfg.DefaultStoryType)
	}
	if task.Source != queue.SourceUserSubmitted {
		t.Errorf("source = %q", task.Source)
	}
	if task.TargetAudience != cfg.DefaultAudience {
		t.Errorf("audience = %q", task.TargetAudience)
	}
}

func TestRunReloadsPersistedPending(t *testing.T) {
	store := newStore(t)

	// A pending task persisted by a previous process.
	task := &queue.Task{
		ID:        "task_restart_1",
		Source:    queue.SourceScraped,
		Content:   articleContent("survived a restart"),
		Status:    queue.StatusPending,
		StoryType: "breaking_news",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), task); err != nil {
		t.Fatalf("insert: %v", err)
	}

	o := orchestrator.New(store, okStages(), testPipelineConfig(), nil)
	startOrchestrator(t, o)
	waitForStatus(t, o, task.ID, queue.StatusPublished)
}
