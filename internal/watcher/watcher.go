// Package watcher produces raw filesystem events for the pipeline. It hides
// the kernel-side mechanism behind a small backend interface with a
// platform-specific implementation.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Watcher monitors directories for changes and hands raw events to the
// runner. Descriptors returned by AddWatch are stable for the watcher's
// lifetime; deleted directories keep their (now silent) descriptor.
type Watcher struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a watcher with the best backend for the current platform:
// raw inotify on Linux, fsnotify everywhere else. The fsnotify backend cannot
// pair rename halves, so moves surface as MoveFrom events there.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	var backend Backend
	var err error

	if runtime.GOOS == "linux" {
		backend, err = newLinuxBackend(logger, opts)
		logger.Info("using Linux inotify backend")
	} else {
		backend, err = newFallbackBackend(logger, opts)
		logger.Info("using fsnotify fallback backend", "platform", runtime.GOOS)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	return &Watcher{backend: backend, logger: logger}, nil
}

// AddWatch registers a single directory and returns its watch descriptor.
func (w *Watcher) AddWatch(path string) (int, error) {
	return w.backend.AddWatch(path)
}

// SubDirs enumerates the names of the current subdirectories of path.
// Symlinks are not followed.
func (w *Watcher) SubDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Start begins watching for events. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	return w.backend.Start(ctx)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	return w.backend.Stop()
}

// Events returns the channel for receiving raw events.
func (w *Watcher) Events() <-chan Event {
	return w.backend.Events()
}

// Errors returns the channel for receiving errors.
func (w *Watcher) Errors() <-chan error {
	return w.backend.Errors()
}
