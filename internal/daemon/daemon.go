package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"storyforge/internal/analyzer"
	"storyforge/internal/config"
	"storyforge/internal/decision"
	"storyforge/internal/ingest"
	"storyforge/internal/logging"
	"storyforge/internal/narrative"
	"storyforge/internal/orchestrator"
	"storyforge/internal/queue"
	"storyforge/internal/services/imagegen"
	"storyforge/internal/services/textgen"
	"storyforge/internal/visual"
)

// Daemon wires the pipeline components together and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *queue.Store
	orch   *orchestrator.Orchestrator
	engine *decision.Engine
	ingest *ingest.Subscriber

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with all components wired from configuration. The
// store must already be open; the daemon takes over its lifecycle on Start.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	textClient := textgen.NewClient(cfg.TextGen)

	stages := orchestrator.Stages{
		Analyzer: analyzer.New(textClient, cfg.Analysis, logger),
		Story:    narrative.New(textClient, logger),
		Prompts:  visual.New(textClient, logger),
	}
	if cfg.ImageGen.Enabled {
		stages.Images = imagegen.NewClient(cfg.ImageGen)
	}

	orch := orchestrator.New(store, stages, cfg.Pipeline, logger)

	d := &Daemon{
		cfg:      cfg,
		log:      logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		orch:     orch,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	if cfg.Decision.Enabled {
		metrics := decision.NewMetrics(store.DB())
		d.engine = decision.New(orch, metrics, cfg.Decision, cfg.Pipeline.DefaultStoryType, logger)
		if cfg.Ingest.Enabled {
			d.ingest = ingest.NewSubscriber(cfg.Ingest, logger)
			d.engine.Register(d.ingest)
		}
	}

	return d, nil
}

// Orchestrator exposes the task API for in-process callers.
func (d *Daemon) Orchestrator() *orchestrator.Orchestrator {
	return d.orch
}

// Start acquires the instance lock, resets tasks a previous process left
// mid-stage, and launches the scheduler and optional decision loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("another storyforged instance holds %s", d.lockPath)
	}

	reset, err := d.store.ResetIncomplete(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset incomplete tasks: %w", err)
	}
	if reset > 0 {
		d.log.Info("reset interrupted tasks to pending", slog.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.ingest != nil {
		if err := d.ingest.Start(runCtx); err != nil {
			// Trend ingestion is best-effort; the pipeline works without it.
			d.log.Warn("trend ingestion unavailable", logging.Error(err))
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.orch.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("scheduler exited", logging.Error(err))
		}
	}()

	if d.engine != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.engine.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.Error("decision engine exited", logging.Error(err))
			}
		}()
	}

	d.running.Store(true)
	d.log.Info("storyforged started",
		slog.String("database", d.store.Path()),
		slog.String("lock", d.lockPath),
	)
	return nil
}

// Stop shuts down the loops, waits for in-flight work to drain, and releases
// the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.cancel()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.log.Warn("lock release failed", logging.Error(err))
	}
	d.running.Store(false)
	d.log.Info("storyforged stopped")
}

// Running reports whether the daemon loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
