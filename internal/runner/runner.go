// Package runner hosts the event pipeline. One goroutine owns all pipeline
// state and drives it from a select loop over watcher events, child exits,
// the debounce alarm and status requests. Parallelism comes exclusively from
// the spawned sync processes; the loop itself never blocks on them.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftsyncapp/driftsync-daemon/internal/errors"
	"github.com/driftsyncapp/driftsync-daemon/internal/pipeline"
	"github.com/driftsyncapp/driftsync-daemon/internal/status"
	"github.com/driftsyncapp/driftsync-daemon/internal/watcher"
)

// WatchSource is the event-producing side of the watcher.
type WatchSource interface {
	pipeline.Watches
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// Options configures the runner.
type Options struct {
	// StatusFile, when set, is rewritten on SIGUSR1 and on every
	// StatusInterval.
	StatusFile     string
	StatusInterval time.Duration

	// Instance identifies this daemon in status output.
	Instance string
}

// Runner drives the pipeline.
type Runner struct {
	source   WatchSource
	registry *pipeline.Registry
	table    *pipeline.WatchTable
	dispatch *pipeline.Dispatcher
	sched    *pipeline.Scheduler
	reporter *status.Reporter
	clock    pipeline.Clock
	opts     Options
	log      *slog.Logger

	childExits chan childExit
	statusReqs chan statusReq
}

type childExit struct {
	pid  int
	code int
}

type statusReq struct {
	resp chan status.Snapshot
}

// New assembles a runner over a watch source and a populated registry.
func New(source WatchSource, registry *pipeline.Registry, clock pipeline.Clock, opts Options, log *slog.Logger) *Runner {
	r := &Runner{
		source:     source,
		registry:   registry,
		clock:      clock,
		opts:       opts,
		log:        log,
		childExits: make(chan childExit, 64),
		statusReqs: make(chan statusReq),
	}
	r.table = pipeline.NewWatchTable(source, clock, log)
	r.dispatch = pipeline.NewDispatcher(r.table, log)
	r.sched = pipeline.NewScheduler(registry, log, r.reap)
	r.reporter = status.NewReporter(registry, r.table, opts.Instance, clock)
	return r
}

// Initialize installs watches and runs the startup phase. It must complete
// before Run; a returned error means the daemon cannot come up.
func (r *Runner) Initialize() error {
	if r.registry.Len() == 0 {
		return errors.Config("nothing to watch: no origins configured")
	}

	for _, o := range r.registry.Origins() {
		o.Reset()
		r.table.WatchDirectory(o, "")
	}
	r.log.Info("watches installed", "directories", r.table.Len(), "origins", r.registry.Len())

	if err := r.runStartupPhase(); err != nil {
		return err
	}

	return nil
}

// runStartupPhase starts every origin's startup action in declaration order,
// then blocks until all have exited. Any non-zero exit aborts the daemon.
// Origins without a startup action already queued their warmstart Creates
// during watch installation.
func (r *Runner) runStartupPhase() error {
	type startupChild struct {
		origin *pipeline.Origin
		cmd    *exec.Cmd
	}
	var children []startupChild

	for _, o := range r.registry.Origins() {
		if o.Config.Startup == nil {
			continue
		}
		cmd, err := o.Config.Startup(o.Source, o.Target)
		if err != nil {
			return errors.Startup(fmt.Sprintf("startup for %s: %v", o.Source, err))
		}
		if cmd == nil {
			continue
		}
		r.log.Info("startup sync running", "source", o.Source, "pid", cmd.Process.Pid)
		children = append(children, startupChild{origin: o, cmd: cmd})
	}

	for _, c := range children {
		err := c.cmd.Wait()
		code := c.cmd.ProcessState.ExitCode()
		if err != nil && code == 0 {
			return errors.Startup(fmt.Sprintf("startup for %s: %v", c.origin.Source, err))
		}
		if code != 0 {
			return errors.Startup(fmt.Sprintf("startup for %s exited with code %d", c.origin.Source, code))
		}
		r.log.Info("startup sync finished", "source", c.origin.Source)
	}

	if len(children) == 0 {
		r.log.Info("warmstart: no startup actions configured")
	}
	return nil
}

// Run enters the event loop and blocks until ctx is cancelled or a fatal
// error occurs. An inotify queue overflow is fatal: lost events mean the
// mirror can no longer be trusted without a full resync.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("entering event loop")

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	var statusTick <-chan time.Time
	if r.opts.StatusFile != "" && r.opts.StatusInterval > 0 {
		ticker := time.NewTicker(r.opts.StatusInterval)
		defer ticker.Stop()
		statusTick = ticker.C
	}

	alarm := time.NewTimer(time.Hour)
	defer alarm.Stop()

	for {
		alarmC := r.armAlarm(alarm)

		select {
		case <-ctx.Done():
			r.log.Info("event loop stopped")
			return nil

		case ev, ok := <-r.source.Events():
			if !ok {
				return errors.Internal("watcher event channel closed", nil)
			}
			r.handleEvent(ev)

		case err, ok := <-r.source.Errors():
			if !ok {
				return errors.Internal("watcher error channel closed", nil)
			}
			if errors.Is(err, watcher.OverflowError{}) {
				r.log.Error("kernel event queue overflowed, terminating")
				return errors.Overflow(err)
			}
			r.log.Error("watcher error", "error", err)

		case ce := <-r.childExits:
			r.sched.Collect(ce.pid, ce.code)

		case <-alarmC:

		case req := <-r.statusReqs:
			req.resp <- r.reporter.Snapshot()

		case <-statusTick:
			r.writeStatusFile()

		case <-usr1:
			r.writeStatusFile()
		}

		r.sched.Tick(r.clock.Now())
	}
}

// armAlarm resets the alarm timer to the earliest eligible deadline and
// returns its channel, or nil when no origin can run and the loop should
// sleep until something else happens.
func (r *Runner) armAlarm(alarm *time.Timer) <-chan time.Time {
	if !alarm.Stop() {
		select {
		case <-alarm.C:
		default:
		}
	}

	deadline, ok := r.sched.EarliestAlarm()
	if !ok {
		return nil
	}

	wait := deadline.Sub(r.clock.Now())
	if wait < 0 {
		wait = 0
	}
	alarm.Reset(wait)
	return alarm.C
}

// handleEvent validates and dispatches one raw watcher event.
func (r *Runner) handleEvent(ev watcher.Event) {
	kind, err := pipeline.ParseKind(ev.Kind)
	if err != nil {
		r.log.Error("rejecting malformed event", "kind", ev.Kind, "wd", ev.WD, "name", ev.Name)
		return
	}

	now := ev.Time
	if now.IsZero() {
		now = r.clock.Now()
	}
	r.dispatch.OnEvent(kind, ev.WD, ev.IsDir, now, ev.Name, ev.Name2)
}

// reap watches one spawned child from its own goroutine and reports the exit
// back into the loop. Pipeline state stays loop-owned; the goroutine touches
// nothing but the channel.
func (r *Runner) reap(_ *pipeline.Origin, cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
		r.childExits <- childExit{pid: pid, code: cmd.ProcessState.ExitCode()}
	}()
}

// QuerySnapshot obtains a status snapshot from the event loop. Safe to call
// from any goroutine; fails when the loop is not draining requests within the
// context deadline.
func (r *Runner) QuerySnapshot(ctx context.Context) (status.Snapshot, error) {
	req := statusReq{resp: make(chan status.Snapshot, 1)}

	select {
	case r.statusReqs <- req:
	case <-ctx.Done():
		return status.Snapshot{}, ctx.Err()
	}

	select {
	case s := <-req.resp:
		return s, nil
	case <-ctx.Done():
		return status.Snapshot{}, ctx.Err()
	}
}

// writeStatusFile rewrites the status file in place. Without a configured
// file the report goes to stderr, so SIGUSR1 is always answered.
func (r *Runner) writeStatusFile() {
	if r.opts.StatusFile == "" {
		_ = r.reporter.Report(os.Stderr)
		return
	}

	f, err := os.Create(r.opts.StatusFile)
	if err != nil {
		r.log.Error("cannot write status file", "path", r.opts.StatusFile, "error", err)
		return
	}
	defer f.Close()

	if err := r.reporter.Report(f); err != nil {
		r.log.Error("cannot write status report", "path", r.opts.StatusFile, "error", err)
	}
}
