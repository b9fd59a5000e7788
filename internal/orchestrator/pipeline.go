package orchestrator

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"

	"storyforge/internal/logging"
	"storyforge/internal/queue"
	"storyforge/internal/services"
	"storyforge/internal/story"
)

// execute drives one task through the pipeline. Stage errors never escape:
// they funnel into the retry policy, and a cancelled scheduler leaves the
// task untouched for the next start to reset.
func (o *Orchestrator) execute(ctx context.Context, task *queue.Task) {
	log := o.log.With(slog.String(logging.FieldTaskID, task.ID))

	err := o.runPipeline(services.WithTaskID(ctx, task.ID), task)
	if err == nil {
		o.retire(task)
		log.Info("task published",
			slog.Int("retry_count", task.RetryCount),
			slog.String(logging.FieldOutcome, string(task.Result.Story.Outcome)),
		)
		return
	}

	if ctx.Err() != nil {
		// Shutdown mid-stage: abandon in-flight state; the next start
		// resets non-terminal tasks to pending.
		o.mu.Lock()
		delete(o.inflight, task.ID)
		o.mu.Unlock()
		log.Info("task abandoned for restart", slog.String("status", string(task.Status)))
		return
	}

	o.handleFailure(ctx, task, err, log)
}

func (o *Orchestrator) runPipeline(ctx context.Context, task *queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrTransient, "orchestrator", "pipeline",
				fmt.Sprintf("stage panic: %v", r), nil)
		}
	}()

	o.persistTransition(ctx, task, queue.StatusAnalyzing)
	analysis, err := o.analyzeStage(ctx, task)
	if err != nil {
		return err
	}

	o.persistTransition(ctx, task, queue.StatusGeneratingStory)
	content, err := o.storyStage(ctx, task, analysis)
	if err != nil {
		return err
	}

	o.persistTransition(ctx, task, queue.StatusGeneratingImages)
	images, err := o.imageStage(ctx, task, content, analysis)
	if err != nil {
		return err
	}

	o.persistTransition(ctx, task, queue.StatusAssembling)
	o.assemble(task, analysis, content, images)
	o.persistTransition(ctx, task, queue.StatusPublished)
	return nil
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := secondsOrDefault(o.cfg.StageTimeout, 300)
	return context.WithTimeout(ctx, timeout)
}

func (o *Orchestrator) analyzeStage(ctx context.Context, task *queue.Task) (story.Analysis, error) {
	stageCtx, cancel := o.stageContext(services.WithStage(ctx, "analyze"))
	defer cancel()
	analysis, err := o.stages.Analyzer.Analyze(stageCtx, task.Content, string(task.Source))
	if err != nil {
		return story.Analysis{}, services.Wrap(services.ErrTransient, "orchestrator", "analyze", "content analysis", err)
	}
	return analysis, nil
}

func (o *Orchestrator) storyStage(ctx context.Context, task *queue.Task, analysis story.Analysis) (story.StoryContent, error) {
	stageCtx, cancel := o.stageContext(services.WithStage(ctx, "generate_story"))
	defer cancel()
	content, err := o.stages.Story.Generate(stageCtx, task.Content, analysis, task.StoryType, task.NarrativeAngle, task.TargetAudience)
	if err != nil {
		return story.StoryContent{}, services.Wrap(services.ErrTransient, "orchestrator", "generate_story", "narrative generation", err)
	}
	return content, nil
}

// imageStage generates prompts for the story, then renders them. Individual
// render failures are skipped; a story may publish with fewer images than
// prompts.
func (o *Orchestrator) imageStage(ctx context.Context, task *queue.Task, content story.StoryContent, analysis story.Analysis) ([]story.ImageRef, error) {
	stageCtx, cancel := o.stageContext(services.WithStage(ctx, "generate_images"))
	defer cancel()

	n := clampInt(len(content.VisualDescriptions), o.cfg.MinImagesPerStory, o.cfg.MaxImagesPerStory)
	prompts, err := o.stages.Prompts.Generate(stageCtx, content, analysis.Category, o.cfg.DefaultVisualStyle, n)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "generate_images", "prompt generation", err)
	}

	if o.stages.Images == nil {
		return nil, nil
	}

	var images []story.ImageRef
	for i, prompt := range prompts {
		image, renderErr := o.stages.Images.Generate(stageCtx, prompt)
		if renderErr != nil {
			o.log.Warn("image render skipped",
				slog.String(logging.FieldTaskID, task.ID),
				slog.Int("prompt_index", i),
				logging.Error(renderErr),
			)
			continue
		}
		images = append(images, image)
	}
	return images, nil
}

func (o *Orchestrator) assemble(task *queue.Task, analysis story.Analysis, content story.StoryContent, images []story.ImageRef) {
	now := o.now().UTC()
	result := &story.Package{
		Story:    content,
		Images:   images,
		Analysis: analysis,
		Provenance: story.Provenance{
			TaskID:         task.ID,
			Source:         string(task.Source),
			StoryType:      task.StoryType,
			TargetAudience: task.TargetAudience,
			NarrativeAngle: task.NarrativeAngle,
			CreatedAt:      task.CreatedAt,
			PublishedAt:    now,
		},
	}
	o.mu.Lock()
	task.Result = result
	task.ErrorMessage = ""
	task.CompletedAt = &now
	o.mu.Unlock()
}

// mutatePersist applies writes to the task under the orchestrator lock, then
// persists a snapshot outside it. Status reads task fields under the same
// lock, so it never observes a half-applied update.
func (o *Orchestrator) mutatePersist(ctx context.Context, task *queue.Task, mutate func()) error {
	o.mu.Lock()
	mutate()
	snapshot := *task
	o.mu.Unlock()

	err := o.store.Update(ctx, &snapshot)

	o.mu.Lock()
	task.UpdatedAt = snapshot.UpdatedAt
	o.mu.Unlock()
	return err
}

// persistTransition records a status change before the next stage begins so
// a crash leaves a durable record of the last completed stage. Persistence
// errors are logged and the task continues in memory.
func (o *Orchestrator) persistTransition(ctx context.Context, task *queue.Task, status queue.Status) {
	err := o.mutatePersist(ctx, task, func() {
		task.Status = status
	})
	if err != nil {
		o.log.Warn("status transition not persisted",
			slog.String(logging.FieldTaskID, task.ID),
			slog.String("status", string(status)),
			logging.Error(err),
		)
	}
}

// handleFailure applies the retry policy: under the limit the task bounces
// back to pending with a priority bump; otherwise it fails terminally.
func (o *Orchestrator) handleFailure(ctx context.Context, task *queue.Task, stageErr error, log *slog.Logger) {
	if services.Permanent(stageErr) || task.RetryCount >= o.cfg.RetryLimit {
		err := o.mutatePersist(ctx, task, func() {
			task.RecordRetryError(stageErr.Error())
			task.SetFailed(stageErr.Error())
		})
		if err != nil {
			log.Warn("terminal failure not persisted", logging.Error(err))
		}
		o.retire(task)
		log.Error("task failed",
			slog.Int("retry_count", task.RetryCount),
			logging.Error(stageErr),
		)
		return
	}

	err := o.mutatePersist(ctx, task, func() {
		task.RecordRetryError(stageErr.Error())
		task.RetryCount++
		task.Priority++
		task.Status = queue.StatusPending
		task.ErrorMessage = stageErr.Error()
	})
	if err != nil {
		log.Warn("retry state not persisted", logging.Error(err))
	}

	o.mu.Lock()
	delete(o.inflight, task.ID)
	o.seq++
	heap.Push(&o.pending, pendingEntry{task: task, seq: o.seq})
	o.mu.Unlock()

	log.Warn("task re-queued for retry",
		slog.Int("retry_count", task.RetryCount),
		slog.Int("priority", task.Priority),
		logging.Error(stageErr),
	)
}

// retire moves a terminal task from the in-flight index to the completed
// index, where the retention sweep eventually evicts it.
func (o *Orchestrator) retire(task *queue.Task) {
	o.mu.Lock()
	delete(o.inflight, task.ID)
	o.completed[task.ID] = completedEntry{task: task, at: o.now().UTC()}
	o.mu.Unlock()
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if high > 0 && value > high {
		return high
	}
	return value
}
