package pipeline

import (
	"log/slog"
	"time"
)

// Dispatcher fans raw watcher events out to every origin subscribed to the
// event's watch descriptor, and extends watches onto directories created
// while the daemon runs.
type Dispatcher struct {
	table *WatchTable
	log   *slog.Logger
}

// NewDispatcher creates a dispatcher over the watch table.
func NewDispatcher(table *WatchTable, log *slog.Logger) *Dispatcher {
	return &Dispatcher{table: table, log: log}
}

// OnEvent translates one raw filesystem event into enqueue calls. Events for
// descriptors the table does not know are stale remnants of deleted
// directories and are dropped.
func (d *Dispatcher) OnEvent(kind EventKind, wd int, isDir bool, now time.Time, name, name2 string) {
	subs := d.table.Lookup(wd)
	if subs == nil {
		d.log.Info("event for unknown watch descriptor, dropping", "wd", wd, "kind", kind, "name", name)
		return
	}

	for _, sub := range subs {
		if sub.Origin.Excluded(name) {
			continue
		}
		path := sub.Rel + name
		path2 := ""
		if name2 != "" {
			path2 = sub.Rel + name2
		}
		sub.Origin.Enqueue(kind, now, path, path2)

		if isDir && kind == KindCreate {
			d.table.WatchDirectory(sub.Origin, path+"/")
		}
	}
}
