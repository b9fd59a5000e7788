package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"storyforge/internal/config"
	"storyforge/internal/daemon"
	"storyforge/internal/logging"
	"storyforge/internal/queue"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if !exists {
		logger.Info("no config file found, using defaults", "path", path)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("storyforged shutting down")
	d.Stop()
}
