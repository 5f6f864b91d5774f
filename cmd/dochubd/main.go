package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/daemon"
	"github.com/maverikod/mcp-dochub-server/internal/executor"
	"github.com/maverikod/mcp-dochub-server/internal/logging"
	"github.com/maverikod/mcp-dochub-server/internal/queue"
	"github.com/maverikod/mcp-dochub-server/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ~/.config/dochub/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return
	}
	defer store.Close()

	registry := executor.NewRegistry()
	if err := registerExecutors(registry, cfg); err != nil {
		logger.Error("register executors", logging.Error(err))
		return
	}

	manager := workflow.NewManager(cfg, store, registry, logger)

	d, err := daemon.New(cfg, store, manager, registry, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("dochubd shutting down")
	d.Stop()
}
