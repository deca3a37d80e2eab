package pipeline

import (
	"log/slog"
	"time"
)

// Watches is the kernel-side watch mechanism the pipeline drives. The runner
// supplies the platform backend.
type Watches interface {
	// AddWatch registers a directory and returns its watch descriptor.
	AddWatch(absPath string) (int, error)
	// SubDirs enumerates the names of the current subdirectories of absPath.
	SubDirs(absPath string) ([]string, error)
}

// Subscription is one (origin, relative path) pair listening on a watch
// descriptor.
type Subscription struct {
	Origin *Origin
	Rel    string
}

// WatchTable maps watch descriptors to their subscribers. Several origins may
// share a descriptor when the same directory sits under different source
// roots, and one origin appears at as many descriptors as it has watched
// directories. Entries are never removed before shutdown; the kernel
// invalidates descriptors of deleted directories and stale events are dropped
// by the dispatcher.
type WatchTable struct {
	subs    map[int][]Subscription
	watches Watches
	clock   Clock
	log     *slog.Logger
}

// NewWatchTable creates an empty watch table over the given watch mechanism.
func NewWatchTable(watches Watches, clock Clock, log *slog.Logger) *WatchTable {
	return &WatchTable{
		subs:    make(map[int][]Subscription),
		watches: watches,
		clock:   clock,
		log:     log,
	}
}

// Lookup returns the subscriptions on a descriptor, or nil for a stale one.
func (t *WatchTable) Lookup(wd int) []Subscription {
	return t.subs[wd]
}

// Len returns the number of live descriptors.
func (t *WatchTable) Len() int { return len(t.subs) }

// WatchDirectory subscribes origin to rel and recursively to every current
// subdirectory. rel is "" for the source root and otherwise ends with a
// separator.
//
// A failing watch registration logs an error and skips that subtree; the rest
// of the origin keeps working. In warmstart mode (no startup action) a Create
// for the directory is queued so the first sync pass reconciles whatever
// changed while the daemon was down.
func (t *WatchTable) WatchDirectory(o *Origin, rel string) {
	abs := o.Source + rel

	wd, err := t.watches.AddWatch(abs)
	if err != nil {
		t.log.Error("failed to add watch, skipping subtree", "path", abs, "error", err)
		return
	}
	t.subs[wd] = append(t.subs[wd], Subscription{Origin: o, Rel: rel})
	t.log.Debug("watching directory", "path", abs, "wd", wd)

	if o.Config.Startup == nil {
		o.Enqueue(KindCreate, t.clock.Now(), rel, "")
	}

	names, err := t.watches.SubDirs(abs)
	if err != nil {
		t.log.Error("failed to list subdirectories", "path", abs, "error", err)
		return
	}
	for _, name := range names {
		if o.Excluded(name) {
			continue
		}
		t.WatchDirectory(o, rel+name+"/")
	}
}

// Clock is the time source of the pipeline. The runner uses the wall clock;
// tests substitute a manual one.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. time.Time carries a monotonic component,
// so deadline comparisons are immune to clock steps.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
