package decision

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"storyforge/internal/config"
	"storyforge/internal/logging"
	"storyforge/internal/narrative"
	"storyforge/internal/orchestrator"
	"storyforge/internal/queue"
)

// Source supplies candidate content for a collection cycle.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Candidate, error)
}

// Submitter is the slice of the orchestrator the engine needs.
type Submitter interface {
	Submit(ctx context.Context, sub orchestrator.Submission) (string, error)
	Counts(ctx context.Context) (queue.HealthSummary, error)
}

// ConcurrencyTuner is implemented by submitters whose dispatch limit can be
// adjusted at runtime. Adaptation uses it when available.
type ConcurrencyTuner interface {
	MaxConcurrent() int
	SetMaxConcurrent(n int)
}

// Engine periodically collects candidates from its sources, scores them,
// and enqueues the best into the orchestrator. It also records performance
// samples each cycle and adapts its defaults from windowed averages.
type Engine struct {
	submitter Submitter
	metrics   *Metrics
	cfg       config.Decision
	log       *slog.Logger
	now       func() time.Time

	mu               sync.Mutex
	sources          []Source
	fingerprints     map[string]time.Time
	defaultStoryType string
	lastAdaptation   time.Time
	baseConcurrency  int
}

// fingerprintTTL bounds the dedup set: a candidate seen longer ago than this
// may be selected again, and its entry is evicted on the next cycle.
const fingerprintTTL = 24 * time.Hour

// Option adjusts engine construction.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Engine.
func New(submitter Submitter, metrics *Metrics, cfg config.Decision, defaultStoryType string, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		submitter:        submitter,
		metrics:          metrics,
		cfg:              cfg,
		log:              logging.NewComponentLogger(logger, "decision"),
		now:              time.Now,
		fingerprints:     make(map[string]time.Time),
		defaultStoryType: defaultStoryType,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a candidate source. Safe to call before Run starts.
func (e *Engine) Register(source Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, source)
}

// DefaultStoryType returns the story type the engine currently assigns to
// trending candidates; adaptation may change it over time.
func (e *Engine) DefaultStoryType() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultStoryType
}

// Run executes collection cycles until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.cfg.CycleInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	e.log.Info("decision engine started", slog.Duration("cycle_interval", interval))

	for {
		e.Cycle(ctx)
		select {
		case <-ctx.Done():
			e.log.Info("decision engine stopped")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Cycle runs one collect-score-enqueue pass. Exported so ingest-driven
// signals and tests can trigger a pass without waiting for the timer.
func (e *Engine) Cycle(ctx context.Context) {
	candidates := e.collect(ctx)
	selected := e.selectCandidates(candidates)

	for _, candidate := range selected {
		storyType := candidate.Kind
		if !narrative.KnownStoryType(storyType) {
			storyType = e.DefaultStoryType()
		}
		id, err := e.submitter.Submit(ctx, orchestrator.Submission{
			Content:   candidate.Content,
			Source:    candidate.Source,
			Priority:  PriorityFor(candidate.Kind),
			StoryType: storyType,
		})
		if err != nil {
			e.log.Warn("candidate submission failed",
				slog.String("title", candidate.Content.Title),
				logging.Error(err),
			)
			continue
		}
		e.log.Info("candidate enqueued",
			slog.String(logging.FieldTaskID, id),
			slog.String("kind", candidate.Kind),
			slog.Float64("score", Score(candidate)),
		)
	}

	e.recordCycleMetrics(ctx)
	e.maybeAdapt(ctx)
}

func (e *Engine) collect(ctx context.Context) []Candidate {
	e.mu.Lock()
	sources := make([]Source, len(e.sources))
	copy(sources, e.sources)
	e.mu.Unlock()

	var candidates []Candidate
	for _, source := range sources {
		collected, err := source.Collect(ctx)
		if err != nil {
			e.log.Warn("source collection failed",
				slog.String(logging.FieldSource, source.Name()),
				logging.Error(err),
			)
			continue
		}
		candidates = append(candidates, collected...)
	}
	return candidates
}

// selectCandidates filters by trend volume and dedup fingerprint, then keeps
// the highest-scoring candidates, one per category per cycle.
func (e *Engine) selectCandidates(candidates []Candidate) []Candidate {
	minVolume := e.cfg.MinTrendVolume
	var eligible []Candidate
	for _, candidate := range candidates {
		if candidate.Source == queue.SourceTrendingSignal && candidate.Volume < minVolume {
			continue
		}
		if candidate.Content.Title == "" && candidate.Content.Text() == "" {
			continue
		}
		eligible = append(eligible, candidate)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return Score(eligible[i]) > Score(eligible[j])
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	for key, seen := range e.fingerprints {
		if now.Sub(seen) > fingerprintTTL {
			delete(e.fingerprints, key)
		}
	}

	var selected []Candidate
	perCategory := make(map[string]struct{})
	for _, candidate := range eligible {
		key := candidate.Content.Title + "|" + candidate.Content.URL
		if _, seen := e.fingerprints[key]; seen {
			continue
		}
		if _, taken := perCategory[candidate.Category]; taken {
			continue
		}
		e.fingerprints[key] = now
		perCategory[candidate.Category] = struct{}{}
		selected = append(selected, candidate)
	}
	return selected
}

func (e *Engine) recordCycleMetrics(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	counts, err := e.submitter.Counts(ctx)
	if err != nil {
		e.log.Warn("queue counts unavailable", logging.Error(err))
		return
	}
	if err := e.metrics.Record(ctx, MetricQueueDepth, float64(counts.Pending+counts.Processing)); err != nil {
		e.log.Warn("metric not recorded", logging.Error(err))
	}
	if err := e.metrics.Record(ctx, MetricPublishedTotal, float64(counts.Published)); err != nil {
		e.log.Warn("metric not recorded", logging.Error(err))
	}
	if err := e.metrics.Record(ctx, MetricFailedTotal, float64(counts.Failed)); err != nil {
		e.log.Warn("metric not recorded", logging.Error(err))
	}
}

// maybeAdapt shifts the default story type when the failure share over the
// adaptation window crosses a threshold: a struggling pipeline gets the
// simpler explainer treatment, a healthy one returns to analysis pieces. When
// the submitter exposes a tunable dispatch limit, the limit is widened under
// a healthy backlog and narrowed back toward its starting value otherwise.
func (e *Engine) maybeAdapt(ctx context.Context) {
	if e.metrics == nil || e.cfg.AdaptationInterval <= 0 {
		return
	}
	interval := time.Duration(e.cfg.AdaptationInterval) * time.Second

	e.mu.Lock()
	due := e.now().Sub(e.lastAdaptation) >= interval
	if due {
		e.lastAdaptation = e.now()
	}
	e.mu.Unlock()
	if !due {
		return
	}

	window := 2 * interval
	published, okPub, err := e.metrics.WindowAverage(ctx, MetricPublishedTotal, window)
	if err != nil {
		e.log.Warn("adaptation read failed", logging.Error(err))
		return
	}
	failed, okFail, err := e.metrics.WindowAverage(ctx, MetricFailedTotal, window)
	if err != nil {
		e.log.Warn("adaptation read failed", logging.Error(err))
		return
	}
	if !okPub || !okFail {
		return
	}

	total := published + failed
	if total == 0 {
		return
	}
	failureShare := failed / total

	e.mu.Lock()
	previous := e.defaultStoryType
	if failureShare > 0.5 {
		e.defaultStoryType = "explainer"
	} else if failureShare < 0.1 {
		e.defaultStoryType = "in_depth_analysis"
	}
	changed := previous != e.defaultStoryType
	current := e.defaultStoryType
	e.mu.Unlock()

	if changed {
		e.log.Info("adapted default story type",
			slog.String("from", previous),
			slog.String("to", current),
			slog.Float64("failure_share", failureShare),
		)
	}

	e.adaptConcurrency(ctx, window, failureShare)

	if _, err := e.metrics.PruneBefore(ctx, e.now().Add(-24*time.Hour)); err != nil {
		e.log.Warn("metric prune failed", logging.Error(err))
	}
}

func (e *Engine) adaptConcurrency(ctx context.Context, window time.Duration, failureShare float64) {
	tuner, ok := e.submitter.(ConcurrencyTuner)
	if !ok {
		return
	}

	current := tuner.MaxConcurrent()
	e.mu.Lock()
	if e.baseConcurrency == 0 {
		e.baseConcurrency = current
	}
	base := e.baseConcurrency
	e.mu.Unlock()

	depth, okDepth, err := e.metrics.WindowAverage(ctx, MetricQueueDepth, window)
	if err != nil {
		e.log.Warn("adaptation read failed", logging.Error(err))
		return
	}
	if !okDepth {
		return
	}

	target := current
	switch {
	case failureShare > 0.5 && current > 1:
		// Back off when over half the recent outcomes failed.
		target = current - 1
	case failureShare < 0.1 && depth > float64(current) && current < 2*base:
		target = current + 1
	case failureShare < 0.5 && depth <= float64(base) && current > base:
		target = current - 1
	}
	if target == current {
		return
	}

	tuner.SetMaxConcurrent(target)
	e.log.Info("adapted concurrency limit",
		slog.Int("from", current),
		slog.Int("to", target),
		slog.Float64("queue_depth_avg", depth),
		slog.Float64("failure_share", failureShare),
	)
}
