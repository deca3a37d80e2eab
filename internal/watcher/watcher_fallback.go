//go:build !linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend implements Backend on fsnotify. Descriptors are synthetic;
// fsnotify identifies watches by path, so the backend keeps its own mapping.
// fsnotify exposes no rename destinations, which is why moves surface as
// MoveFrom here and the receiving side sees a fresh Create.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	wdByPath map[string]int
	nextWD   int

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// newFallbackBackend creates a fallback backend using fsnotify.
func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &fallbackBackend{
		logger:   logger,
		opts:     opts,
		watcher:  watcher,
		wdByPath: make(map[string]int),
		events:   make(chan Event, opts.EventBuffer),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// AddWatch registers a directory and returns a synthetic descriptor.
func (b *fallbackBackend) AddWatch(path string) (int, error) {
	path = filepath.Clean(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	if wd, ok := b.wdByPath[path]; ok {
		return wd, nil
	}
	if err := b.watcher.Add(path); err != nil {
		return -1, fmt.Errorf("fsnotify add %s: %w", path, err)
	}

	b.nextWD++
	b.wdByPath[path] = b.nextWD
	b.logger.Debug("added watch", "path", path, "wd", b.nextWD)
	return b.nextWD, nil
}

// Start begins watching for events. Blocks until ctx is cancelled.
func (b *fallbackBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.processEvents()

	<-ctx.Done()
	return nil
}

// processEvents translates fsnotify events.
func (b *fallbackBackend) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.errors <- err
		}
	}
}

// handleFsnotifyEvent maps one fsnotify event onto the raw event shape.
func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	dir := filepath.Dir(event.Name)
	name := filepath.Base(event.Name)

	b.mu.RLock()
	wd, ok := b.wdByPath[dir]
	b.mu.RUnlock()
	if !ok {
		return
	}

	isDir := false
	if info, err := os.Lstat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	now := time.Now()
	switch {
	case event.Op&fsnotify.Create != 0:
		b.emit(Event{Kind: OpCreate, WD: wd, IsDir: isDir, Name: name, Time: now})
	case event.Op&fsnotify.Write != 0:
		b.emit(Event{Kind: OpModify, WD: wd, IsDir: isDir, Name: name, Time: now})
	case event.Op&fsnotify.Remove != 0:
		b.emit(Event{Kind: OpDelete, WD: wd, IsDir: isDir, Name: name, Time: now})
	case event.Op&fsnotify.Rename != 0:
		b.emit(Event{Kind: OpMoveFrom, WD: wd, IsDir: isDir, Name: name, Time: now})
	case event.Op&fsnotify.Chmod != 0:
		b.emit(Event{Kind: OpAttrib, WD: wd, IsDir: isDir, Name: name, Time: now})
	}
}

// emit sends an event unless the backend is shutting down.
func (b *fallbackBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *fallbackBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the backend.
func (b *fallbackBackend) Stop() error {
	close(b.done)
	b.watcher.Close()
	b.wg.Wait()

	close(b.events)
	close(b.errors)

	return nil
}

// newLinuxBackend is a stub that should never be called on non-Linux
// platforms. It exists only to satisfy the compiler when watcher.go
// references it.
func newLinuxBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("Linux backend not available on this platform")
}
