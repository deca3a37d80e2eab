// Package main provides the entry point for the driftsync daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/driftsyncapp/driftsync-daemon/internal/di"
	"github.com/driftsyncapp/driftsync-daemon/internal/di/providers"
	"github.com/driftsyncapp/driftsync-daemon/internal/errors"
	"github.com/driftsyncapp/driftsync-daemon/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Create DI container and build the service graph.
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap daemon: %v\n", err)
		return errors.ExitCodeFor(err)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	runnerHandle := do.MustInvoke[*providers.RunnerHandle](injector)

	// Install watches and run the startup phase before consuming events.
	if err := runnerHandle.Initialize(); err != nil {
		log.Error("initialization failed", "error", err)
		return errors.ExitCodeFor(err)
	}
	runnerHandle.Watcher.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("driftsync daemon running")
	err := runnerHandle.Run(ctx)

	log.Info("shutting down")
	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
	}
	_ = log.Close()

	if err != nil {
		return errors.ExitCodeFor(err)
	}
	return 0
}
