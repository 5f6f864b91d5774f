package main

import (
	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/executor"
	"github.com/maverikod/mcp-dochub-server/internal/services/docker"
	"github.com/maverikod/mcp-dochub-server/internal/services/ollama"
)

// registerExecutors wires every supported operation kind into the registry.
func registerExecutors(registry *executor.Registry, cfg *config.Config) error {
	dockerClient := docker.NewClient(cfg)
	ollamaClient := ollama.NewClient(cfg)

	executors := []executor.Executor{
		docker.NewPushExecutor(dockerClient),
		docker.NewPullExecutor(dockerClient),
		docker.NewBuildExecutor(dockerClient),
		ollama.NewPullExecutor(ollamaClient),
		ollama.NewRunExecutor(ollamaClient),
	}
	for _, exec := range executors {
		if err := registry.Register(exec); err != nil {
			return err
		}
	}
	return nil
}
