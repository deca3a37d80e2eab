// Package providers contains the DI providers wiring configuration, logging,
// the watcher and the pipeline together.
package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do/v2"

	"github.com/driftsyncapp/driftsync-daemon/internal/action"
	"github.com/driftsyncapp/driftsync-daemon/internal/config"
	"github.com/driftsyncapp/driftsync-daemon/internal/errors"
	"github.com/driftsyncapp/driftsync-daemon/internal/logger"
	"github.com/driftsyncapp/driftsync-daemon/internal/pipeline"
	"github.com/driftsyncapp/driftsync-daemon/internal/runner"
	"github.com/driftsyncapp/driftsync-daemon/internal/status"
	"github.com/driftsyncapp/driftsync-daemon/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// ProvideConfig loads the daemon configuration.
func ProvideConfig(do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideMirror loads and validates the mirror-definition file.
func ProvideMirror(i do.Injector) (*config.Mirror, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return config.LoadMirror(cfg.Mirror.Path)
}

// ProvideLogger provides the logger. The mirror file's settings block
// overrides the daemon-level log configuration; the file next to the sync
// definitions is the operator's source of truth.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	settings := do.MustInvoke[*config.Mirror](i).ResolveSettings()

	levelName := cfg.Logger.Level
	if settings.LogLevel != "" {
		levelName = settings.LogLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, errors.Configf("invalid log level: %v", err)
	}

	file := cfg.Logger.File
	if settings.LogFile != "" {
		file = settings.LogFile
	}

	return logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       level,
		File:        file,
		MaxSizeMB:   cfg.Logger.MaxSizeMB,
		MaxBackups:  cfg.Logger.MaxBackups,
	}), nil
}

// WatcherHandle wraps the watcher with lifecycle control.
type WatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Start begins reading kernel events until the handle is shut down.
func (h *WatcherHandle) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.Watcher.Start(ctx) }()
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	return h.Watcher.Stop()
}

// ProvideWatcher provides the platform watcher backend.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	w, err := watcher.New(log.Logger, watcher.Options{})
	if err != nil {
		return nil, err
	}
	return &WatcherHandle{Watcher: w}, nil
}

// ProvideRegistry builds the origin registry from the mirror file.
func ProvideRegistry(i do.Injector) (*pipeline.Registry, error) {
	mirror := do.MustInvoke[*config.Mirror](i)
	log := do.MustInvoke[*logger.Logger](i)
	settings := mirror.ResolveSettings()

	defaults := pipeline.OriginConfig{
		Delay:        settings.Delay,
		MaxProcesses: settings.MaxProcesses,
		MaxActions:   settings.MaxActions,
	}
	registry := pipeline.NewRegistry(defaults, log.Logger)

	for _, block := range mirror.Sync {
		cfg := pipeline.OriginConfig{
			Move:         block.Move,
			MaxProcesses: block.MaxProcesses,
			MaxActions:   block.MaxActions,
			Delay:        block.ParsedDelay(),
			Exclude:      block.Exclude,
			Action:       resolveAction(block.Action, log),
			Startup:      resolveStartup(block.Startup, log),
		}
		if _, err := registry.Add(block.Source, block.Target, cfg); err != nil {
			return nil, err
		}
		log.Info("origin configured", "source", block.Source, "target", block.Target)
	}

	return registry, nil
}

// resolveAction maps an action declaration onto a pipeline action. The
// default and the literal "rsync" use the built-in rsync transport; anything
// else is a command template.
func resolveAction(decl string, log *logger.Logger) pipeline.Action {
	switch decl {
	case "", "rsync":
		return action.Rsync("rsync", nil, log.Logger)
	default:
		return action.Command(strings.Fields(decl), log.Logger)
	}
}

// resolveStartup maps a startup declaration. Empty means warmstart.
func resolveStartup(decl string, log *logger.Logger) pipeline.StartupAction {
	switch decl {
	case "":
		return nil
	case "rsync":
		return action.RsyncStartup("rsync", nil, log.Logger)
	default:
		return action.CommandStartup(strings.Fields(decl), log.Logger)
	}
}

// RunnerHandle wraps the runner together with its watcher.
type RunnerHandle struct {
	*runner.Runner
	Watcher *WatcherHandle
}

// ProvideRunner provides the event-loop runner.
func ProvideRunner(i do.Injector) (*RunnerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	mirror := do.MustInvoke[*config.Mirror](i)
	registry := do.MustInvoke[*pipeline.Registry](i)
	watcherHandle := do.MustInvoke[*WatcherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	settings := mirror.ResolveSettings()

	statusFile := cfg.Status.File
	if settings.StatusFile != "" {
		statusFile = settings.StatusFile
	}
	statusInterval := cfg.Status.Interval
	if settings.StatusInterval > 0 {
		statusInterval = settings.StatusInterval
	}

	opts := runner.Options{
		StatusFile:     statusFile,
		StatusInterval: statusInterval,
		Instance:       "inst-" + uuid.NewString(),
	}

	r := runner.New(watcherHandle, registry, pipeline.SystemClock{}, opts, log.Logger)
	return &RunnerHandle{Runner: r, Watcher: watcherHandle}, nil
}

// StatusServerHandle wraps the optional status HTTP server.
type StatusServerHandle struct {
	*http.Server
	Enabled bool
}

// Shutdown implements do.Shutdownable.
func (h *StatusServerHandle) Shutdown() error {
	if !h.Enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideStatusServer provides the status HTTP server; disabled when no
// address is configured.
func ProvideStatusServer(i do.Injector) (*StatusServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	mirror := do.MustInvoke[*config.Mirror](i)
	runnerHandle := do.MustInvoke[*RunnerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	settings := mirror.ResolveSettings()

	addr := cfg.Status.HTTPAddr
	if settings.HTTPAddr != "" {
		addr = settings.HTTPAddr
	}
	if addr == "" {
		return &StatusServerHandle{Enabled: false}, nil
	}

	query := func(ctx context.Context) (status.Snapshot, error) {
		return runnerHandle.QuerySnapshot(ctx)
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      status.NewServer(query, log.Logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status server failed", "error", err)
		}
	}()

	return &StatusServerHandle{Server: srv, Enabled: true}, nil
}
