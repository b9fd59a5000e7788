package orchestrator

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyforge/internal/config"
	"storyforge/internal/logging"
	"storyforge/internal/queue"
	"storyforge/internal/services"
	"storyforge/internal/story"
)

// Analyzer scores and classifies raw content.
type Analyzer interface {
	Analyze(ctx context.Context, content story.RawContent, source string) (story.Analysis, error)
}

// StoryGenerator produces story text from analyzed content.
type StoryGenerator interface {
	Generate(ctx context.Context, content story.RawContent, analysis story.Analysis, storyType, angle, audience string) (story.StoryContent, error)
}

// PromptGenerator produces image prompts for a story.
type PromptGenerator interface {
	Generate(ctx context.Context, content story.StoryContent, category, style string, n int) ([]story.ImagePrompt, error)
}

// ImageBackend renders one prompt into an image reference.
type ImageBackend interface {
	Generate(ctx context.Context, prompt story.ImagePrompt) (story.ImageRef, error)
}

// Stages bundles the pipeline collaborators.
type Stages struct {
	Analyzer Analyzer
	Story    StoryGenerator
	Prompts  PromptGenerator
	// Images may be nil when image generation is disabled; stories then
	// publish without images.
	Images ImageBackend
}

// Orchestrator owns the task lifecycle: a priority-ordered pending set,
// bounded concurrent dispatch, the retry policy, and persistence of every
// status transition. It is the sole mutator of tasks after submission.
type Orchestrator struct {
	store  *queue.Store
	stages Stages
	cfg    config.Pipeline
	log    *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	pending       pendingHeap
	inflight      map[string]*queue.Task
	completed     map[string]completedEntry
	seq           uint64
	maxConcurrent int

	wg sync.WaitGroup
}

type completedEntry struct {
	task *queue.Task
	at   time.Time
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an Orchestrator. One instance per process drives the pipeline;
// Run must be started exactly once.
func New(store *queue.Store, stages Stages, cfg config.Pipeline, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		store:         store,
		stages:        stages,
		cfg:           cfg,
		log:           logging.NewComponentLogger(logger, "orchestrator"),
		now:           time.Now,
		inflight:      make(map[string]*queue.Task),
		completed:     make(map[string]completedEntry),
		maxConcurrent: cfg.MaxConcurrentTasks,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submission describes one submitted unit of work. Zero selector fields fall
// back to the configured defaults.
type Submission struct {
	Content        story.RawContent
	Source         queue.Source
	Priority       int
	StoryType      string
	TargetAudience string
	NarrativeAngle string
}

// Submit constructs a pending task, persists it, and inserts it into the
// pending set. It returns the task id immediately and never blocks on
// pipeline execution.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (string, error) {
	if sub.Content.Text() == "" && sub.Content.Title == "" {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "submit", "content is empty", nil)
	}
	if sub.Priority < 0 {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "submit", "priority must be non-negative", nil)
	}
	if sub.Source == "" {
		sub.Source = queue.SourceUserSubmitted
	}
	if sub.StoryType == "" {
		sub.StoryType = o.cfg.DefaultStoryType
	}
	if sub.TargetAudience == "" {
		sub.TargetAudience = o.cfg.DefaultAudience
	}
	if sub.NarrativeAngle == "" {
		sub.NarrativeAngle = o.cfg.DefaultAngle
	}

	now := o.now().UTC()
	task := &queue.Task{
		ID:             queue.NewTaskID(sub.Content, now),
		Source:         sub.Source,
		Content:        sub.Content,
		Status:         queue.StatusPending,
		Priority:       sub.Priority,
		StoryType:      sub.StoryType,
		TargetAudience: sub.TargetAudience,
		NarrativeAngle: sub.NarrativeAngle,
		CreatedAt:      now,
	}

	err := o.store.Insert(ctx, task)
	if errors.Is(err, queue.ErrDuplicateTask) {
		task.ID = fmt.Sprintf("%s_%s", task.ID, uuid.NewString()[:8])
		err = o.store.Insert(ctx, task)
	}
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "orchestrator", "submit", "persist task", err)
	}

	o.mu.Lock()
	o.seq++
	heap.Push(&o.pending, pendingEntry{task: task, seq: o.seq})
	o.mu.Unlock()

	o.log.Info("task submitted",
		slog.String(logging.FieldTaskID, task.ID),
		slog.String(logging.FieldSource, string(task.Source)),
		slog.Int("priority", task.Priority),
		slog.String(logging.FieldStoryType, task.StoryType),
	)
	return task.ID, nil
}

// View is a read-only snapshot of a task.
type View struct {
	ID           string
	Status       queue.Status
	Priority     int
	RetryCount   int
	StoryType    string
	ErrorMessage string
	Result       *story.Package
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func viewOf(task *queue.Task) View {
	return View{
		ID:           task.ID,
		Status:       task.Status,
		Priority:     task.Priority,
		RetryCount:   task.RetryCount,
		StoryType:    task.StoryType,
		ErrorMessage: task.ErrorMessage,
		Result:       task.Result,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		CompletedAt:  task.CompletedAt,
	}
}

// Status returns a snapshot of the task, consulting the in-memory indices
// first and the store as a fallback. Unknown ids return ErrNotFound.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (View, error) {
	o.mu.Lock()
	if task, ok := o.inflight[taskID]; ok {
		view := viewOf(task)
		o.mu.Unlock()
		return view, nil
	}
	if entry, ok := o.completed[taskID]; ok {
		view := viewOf(entry.task)
		o.mu.Unlock()
		return view, nil
	}
	for _, entry := range o.pending {
		if entry.task.ID == taskID {
			view := viewOf(entry.task)
			o.mu.Unlock()
			return view, nil
		}
	}
	o.mu.Unlock()

	task, err := o.store.GetByID(ctx, taskID)
	if err != nil {
		return View{}, services.Wrap(services.ErrTransient, "orchestrator", "status", "read task", err)
	}
	if task == nil {
		return View{}, services.Wrap(services.ErrNotFound, "orchestrator", "status", "unknown task "+taskID, nil)
	}
	return viewOf(task), nil
}

// Counts reports aggregate queue state from the store.
func (o *Orchestrator) Counts(ctx context.Context) (queue.HealthSummary, error) {
	return o.store.Health(ctx)
}

// MaxConcurrent returns the current dispatch limit.
func (o *Orchestrator) MaxConcurrent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxConcurrent
}

// SetMaxConcurrent adjusts the dispatch limit at runtime. Values below one
// are ignored. A lowered limit never interrupts in-flight tasks; it applies
// as they finish.
func (o *Orchestrator) SetMaxConcurrent(n int) {
	if n < 1 {
		return
	}
	o.mu.Lock()
	changed := n != o.maxConcurrent
	o.maxConcurrent = n
	o.mu.Unlock()
	if changed {
		o.log.Info("concurrency limit adjusted", slog.Int("max_concurrent", n))
	}
}

// Run is the scheduling loop. It dispatches pending tasks while the in-flight
// count is under the limit, sweeps expired completed tasks, and exits after a
// graceful drain once ctx is cancelled. Start it exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.loadPending(ctx); err != nil {
		o.log.Warn("could not reload pending tasks", logging.Error(err))
	}

	poll := secondsOrDefault(o.cfg.QueuePollInterval, 1)
	errorPoll := secondsOrDefault(o.cfg.ErrorRetryInterval, 5)

	o.log.Info("scheduler started",
		slog.Int("max_concurrent", o.MaxConcurrent()),
		slog.Duration("poll_interval", poll),
	)

	interval := poll
	for {
		if err := o.loadPending(ctx); err != nil {
			o.log.Warn("pending scan failed", logging.Error(err))
			interval = errorPoll
		} else {
			interval = poll
		}
		o.dispatch(ctx)
		o.sweepCompleted()

		select {
		case <-ctx.Done():
			o.log.Info("scheduler stopping, draining in-flight tasks")
			o.wg.Wait()
			o.log.Info("scheduler stopped")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// loadPending folds persisted pending rows into the in-memory pending set.
// It runs on startup (picking up tasks the daemon reset) and every poll
// cycle, so tasks inserted by other processes get scheduled too.
func (o *Orchestrator) loadPending(ctx context.Context) error {
	tasks, err := o.store.List(ctx, queue.StatusPending)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	known := make(map[string]struct{}, len(o.pending)+len(o.inflight)+len(o.completed))
	for _, entry := range o.pending {
		known[entry.task.ID] = struct{}{}
	}
	for id := range o.inflight {
		known[id] = struct{}{}
	}
	for id := range o.completed {
		known[id] = struct{}{}
	}

	added := 0
	for _, task := range tasks {
		if _, ok := known[task.ID]; ok {
			continue
		}
		o.seq++
		heap.Push(&o.pending, pendingEntry{task: task, seq: o.seq})
		added++
	}
	if added > 0 {
		o.log.Info("picked up pending tasks", slog.Int("count", added))
	}
	return nil
}

// dispatch moves tasks from the pending heap into execution until the
// concurrency limit is reached.
func (o *Orchestrator) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	for {
		o.mu.Lock()
		if len(o.inflight) >= o.maxConcurrent || o.pending.Len() == 0 {
			o.mu.Unlock()
			return
		}
		entry := heap.Pop(&o.pending).(pendingEntry)
		o.inflight[entry.task.ID] = entry.task
		o.mu.Unlock()

		o.wg.Add(1)
		go func(task *queue.Task) {
			defer o.wg.Done()
			o.execute(ctx, task)
		}(entry.task)
	}
}

// sweepCompleted evicts terminal tasks older than the retention window from
// the in-memory index. Persisted rows are untouched; deleting them is an
// explicit maintenance action through the queue clear and prune commands.
func (o *Orchestrator) sweepCompleted() {
	retention := secondsOrDefault(o.cfg.CompletedRetention, 3600)
	cutoff := o.now().UTC().Add(-retention)

	o.mu.Lock()
	for id, entry := range o.completed {
		if entry.at.Before(cutoff) {
			delete(o.completed, id)
		}
	}
	o.mu.Unlock()
}

func secondsOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
