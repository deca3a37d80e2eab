package pipeline

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Action is a user-supplied sync invocation. It receives the next pending
// event through the inlet and returns a started command, or nil when there is
// nothing to run for this event. The inlet is reused between invocations and
// must not be retained.
type Action func(in *Inlet) (*exec.Cmd, error)

// StartupAction runs once per origin before normal operation, typically a
// full-tree transfer. All startup commands must exit zero for the daemon to
// come up.
type StartupAction func(source, target string) (*exec.Cmd, error)

// OriginConfig is the effective configuration of one origin after the
// three-tier resolution in Registry.Add.
type OriginConfig struct {
	// Action is invoked for every expired delay. Mandatory.
	Action Action

	// Startup, when set, replaces the warmstart behavior: it runs before the
	// daemon enters normal operation instead of synthesizing Create events
	// for every watched directory.
	Startup StartupAction

	// Move indicates the action understands Move events natively. Without it
	// a move is decomposed into a Delete at the old path and a Create at the
	// new one.
	Move bool

	// MaxProcesses caps concurrent child processes for this origin.
	MaxProcesses int

	// Delay is the debounce interval between an event arriving and its
	// action becoming eligible to run.
	Delay time.Duration

	// Collapse decides how a new event merges with a pending delay on the
	// same path.
	Collapse CollapseTable

	// MaxActions is accepted and validated for compatibility but currently
	// reserved; scheduling is governed by MaxProcesses alone.
	MaxActions int

	// Exclude holds base-name patterns (filepath.Match syntax) that events
	// are dropped for.
	Exclude []string
}

// ProcessTable tracks the in-flight child processes of one origin, keyed by
// pid. Size never exceeds the origin's MaxProcesses.
type ProcessTable struct {
	procs map[int]*Delay
}

// NewProcessTable returns an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[int]*Delay)}
}

// Len returns the number of in-flight processes.
func (p *ProcessTable) Len() int { return len(p.procs) }

// Insert records a spawned child.
func (p *ProcessTable) Insert(pid int, d *Delay) { p.procs[pid] = d }

// Remove forgets a child and returns the delay it was executing.
func (p *ProcessTable) Remove(pid int) (*Delay, bool) {
	d, ok := p.procs[pid]
	if ok {
		delete(p.procs, pid)
	}
	return d, ok
}

// Origin binds one source tree to one target identifier, together with its
// delay queue and its live child processes. Origins are created during
// configuration and live for the process lifetime.
type Origin struct {
	// Source is the canonical absolute path of the watched tree, with a
	// trailing separator so relative paths concatenate directly.
	Source string

	// Target is the opaque identifier sync commands receive, also with a
	// trailing separator. The pipeline never interprets it.
	Target string

	Config OriginConfig

	queue *DelayQueue
	procs *ProcessTable
	log   *slog.Logger
}

// NewOrigin builds an origin from an already-resolved source path and
// effective config. Most callers go through Registry.Add instead.
func NewOrigin(source, target string, cfg OriginConfig, log *slog.Logger) *Origin {
	return &Origin{
		Source: source,
		Target: target,
		Config: cfg,
		queue:  NewDelayQueue(),
		procs:  NewProcessTable(),
		log:    log.With("source", source),
	}
}

// Queue exposes the origin's delay queue.
func (o *Origin) Queue() *DelayQueue { return o.queue }

// Processes exposes the origin's in-flight process table.
func (o *Origin) Processes() *ProcessTable { return o.procs }

// Reset discards all pending delays and process records. Used when watches
// are (re)installed during initialization.
func (o *Origin) Reset() {
	o.queue = NewDelayQueue()
	o.procs = NewProcessTable()
}

// Excluded reports whether events for path are filtered out by the origin's
// exclude patterns.
func (o *Origin) Excluded(path string) bool {
	return matchExclude(o.Config.Exclude, path)
}

// Enqueue accepts one event for this origin and folds it into the delay
// queue.
//
// A Move on an origin without native move handling is decomposed into a
// Delete of the old path followed by a Create of the new one. Otherwise the
// event either opens a fresh delay, stacks behind an existing one (always for
// move kinds), collapses into it, or cancels it, as decided by the collapse
// table. Collapsing rewrites the older delay in place, so its deadline and
// queue position are preserved and event storms still fire promptly.
func (o *Origin) Enqueue(kind EventKind, now time.Time, path, path2 string) {
	if kind <= KindNone || kind > KindMoveTo {
		panic(fmt.Sprintf("enqueue of invalid event kind %d on %q", int(kind), path))
	}

	if kind == KindMove && !o.Config.Move {
		o.Enqueue(KindDelete, now, path, "")
		o.Enqueue(KindCreate, now, path2, "")
		return
	}

	deadline := now
	if o.Config.Delay > 0 {
		deadline = now.Add(o.Config.Delay)
	}

	old := o.queue.lookup(path)
	if old == nil {
		o.queue.push(&Delay{Kind: kind, Path: path, Path2: path2, Deadline: deadline})
		o.log.Debug("delay queued", "kind", kind, "path", path)
		return
	}

	if kind.IsMove() || old.Kind.IsMove() {
		// Moves keep their pairing; never merge them with anything.
		o.queue.stack(&Delay{Kind: kind, Path: path, Path2: path2, Deadline: deadline})
		o.log.Info("stacking delay behind move", "kind", kind, "path", path, "pending", old.Kind)
		return
	}

	switch outcome := o.Config.Collapse.Lookup(old.Kind, kind); outcome {
	case OutcomeCancel:
		o.log.Debug("delays cancel out", "older", old.Kind, "newer", kind, "path", path)
		o.queue.cancel(old)
	case OutcomeStack:
		o.log.Debug("stacking delay", "older", old.Kind, "newer", kind, "path", path)
		o.queue.stack(&Delay{Kind: kind, Path: path, Path2: path2, Deadline: deadline})
	default:
		merged := outcome.Kind()
		o.log.Debug("collapsing delay", "older", old.Kind, "newer", kind, "into", merged, "path", path)
		old.Kind = merged
	}
}
