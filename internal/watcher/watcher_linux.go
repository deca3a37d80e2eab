//go:build linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// watchMask selects the inotify events the pipeline consumes. IN_CLOSE_WRITE
// stands in for content modification so a file being written in many chunks
// produces one event when the writer is done, not a storm per write(2).
// IN_ONLYDIR and IN_DONT_FOLLOW keep watches off files and symlink targets.
const watchMask = unix.IN_ATTRIB |
	unix.IN_CLOSE_WRITE |
	unix.IN_CREATE |
	unix.IN_DELETE |
	unix.IN_MOVED_FROM |
	unix.IN_MOVED_TO |
	unix.IN_DONT_FOLLOW |
	unix.IN_ONLYDIR

// linuxBackend implements Backend on raw inotify.
type linuxBackend struct {
	logger *slog.Logger
	opts   Options
	fd     int
	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// newLinuxBackend creates the inotify backend.
func newLinuxBackend(logger *slog.Logger, opts Options) (*linuxBackend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}

	return &linuxBackend{
		logger: logger,
		opts:   opts,
		fd:     fd,
		events: make(chan Event, opts.EventBuffer),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
	}, nil
}

// AddWatch registers a directory with the kernel and returns its descriptor.
func (b *linuxBackend) AddWatch(path string) (int, error) {
	wd, err := unix.InotifyAddWatch(b.fd, path, watchMask)
	if err != nil {
		return -1, fmt.Errorf("inotify_add_watch %s: %w", path, err)
	}
	b.logger.Debug("added watch", "path", path, "wd", wd)
	return wd, nil
}

// Start begins reading kernel events. Blocks until ctx is cancelled.
func (b *linuxBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.readEvents()

	<-ctx.Done()
	return nil
}

// readEvents polls the inotify fd and translates raw batches.
func (b *linuxBackend) readEvents() {
	defer b.wg.Done()

	buf := make([]byte, unix.SizeofInotifyEvent*256)
	pollTimeout := int(b.opts.PollInterval / time.Millisecond)

	for {
		select {
		case <-b.done:
			return
		default:
		}

		fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			b.errors <- fmt.Errorf("poll on inotify fd: %w", err)
			return
		}
		if n == 0 {
			continue
		}

		rn, err := unix.Read(b.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			b.errors <- fmt.Errorf("failed to read inotify events: %w", err)
			return
		}
		if rn < unix.SizeofInotifyEvent {
			continue
		}

		b.translateBatch(parseBatch(buf[:rn]))
	}
}

// rawEntry is one decoded inotify_event.
type rawEntry struct {
	wd     int
	mask   uint32
	cookie uint32
	name   string
}

// parseBatch decodes one read(2) worth of inotify events.
func parseBatch(buf []byte) []rawEntry {
	var batch []rawEntry
	offset := 0
	for offset < len(buf) {
		//nolint:gosec // G103: syscall interface, layout fixed by the kernel
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		offset += unix.SizeofInotifyEvent + int(event.Len)

		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset-int(event.Len) : offset]
			name = string(nameBytes[:clen(nameBytes)])
		}

		batch = append(batch, rawEntry{
			wd:     int(event.Wd),
			mask:   event.Mask,
			cookie: event.Cookie,
			name:   name,
		})
	}
	return batch
}

// translateBatch turns decoded entries into pipeline events. MovedFrom and
// MovedTo entries sharing a cookie and descriptor within the batch merge into
// a single Move; halves that stay unpaired (cross-directory renames, moves in
// or out of the watched tree) surface as MoveFrom / MoveTo.
func (b *linuxBackend) translateBatch(batch []rawEntry) {
	now := time.Now()
	consumed := make([]bool, len(batch))

	for i, e := range batch {
		if consumed[i] {
			continue
		}

		if e.mask&unix.IN_Q_OVERFLOW != 0 {
			b.errors <- OverflowError{}
			continue
		}
		if e.mask&unix.IN_IGNORED != 0 {
			// Kernel dropped the watch (directory deleted); stale events for
			// its descriptor are filtered downstream.
			continue
		}

		isDir := e.mask&unix.IN_ISDIR != 0

		switch {
		case e.mask&unix.IN_ATTRIB != 0:
			b.emit(Event{Kind: OpAttrib, WD: e.wd, IsDir: isDir, Name: e.name, Time: now})
		case e.mask&unix.IN_CLOSE_WRITE != 0:
			b.emit(Event{Kind: OpModify, WD: e.wd, IsDir: isDir, Name: e.name, Time: now})
		case e.mask&unix.IN_CREATE != 0:
			b.emit(Event{Kind: OpCreate, WD: e.wd, IsDir: isDir, Name: e.name, Time: now})
		case e.mask&unix.IN_DELETE != 0:
			b.emit(Event{Kind: OpDelete, WD: e.wd, IsDir: isDir, Name: e.name, Time: now})
		case e.mask&unix.IN_MOVED_FROM != 0:
			if j := findMovedTo(batch, consumed, i); j >= 0 {
				consumed[j] = true
				b.emit(Event{Kind: OpMove, WD: e.wd, IsDir: isDir, Name: e.name, Name2: batch[j].name, Time: now})
			} else {
				b.emit(Event{Kind: OpMoveFrom, WD: e.wd, IsDir: isDir, Name: e.name, Time: now})
			}
		case e.mask&unix.IN_MOVED_TO != 0:
			b.emit(Event{Kind: OpMoveTo, WD: e.wd, IsDir: isDir, Name: e.name, Time: now})
		}
	}
}

// findMovedTo locates the unconsumed IN_MOVED_TO entry pairing with the
// IN_MOVED_FROM at index i, or -1.
func findMovedTo(batch []rawEntry, consumed []bool, i int) int {
	for j := i + 1; j < len(batch); j++ {
		if consumed[j] {
			continue
		}
		if batch[j].mask&unix.IN_MOVED_TO != 0 &&
			batch[j].cookie == batch[i].cookie &&
			batch[j].wd == batch[i].wd {
			return j
		}
	}
	return -1
}

// emit sends an event unless the backend is shutting down.
func (b *linuxBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *linuxBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *linuxBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the backend.
func (b *linuxBackend) Stop() error {
	close(b.done)
	b.wg.Wait()

	var closeErr error
	if b.fd >= 0 {
		closeErr = unix.Close(b.fd)
	}

	close(b.events)
	close(b.errors)

	return closeErr
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}

// newFallbackBackend is a stub that should never be called on Linux.
// It exists only to satisfy the compiler when watcher.go references it.
func newFallbackBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("fallback backend not available on Linux")
}
