package pipeline

import (
	"log/slog"
	"os/exec"
	"time"
)

// Scheduler turns expired delays into child processes, subject to each
// origin's process cap, and accounts for their exits. It owns no goroutines;
// the runner calls it from the single event-loop goroutine.
type Scheduler struct {
	registry *Registry
	inlet    Inlet
	onSpawn  func(o *Origin, cmd *exec.Cmd)
	log      *slog.Logger
}

// NewScheduler creates a scheduler. onSpawn is called once per started child
// so the runner can arrange reaping; it may be nil in tests that never spawn
// real processes.
func NewScheduler(registry *Registry, log *slog.Logger, onSpawn func(o *Origin, cmd *exec.Cmd)) *Scheduler {
	return &Scheduler{registry: registry, onSpawn: onSpawn, log: log}
}

// Tick runs every delay that is both expired and within its origin's process
// cap. Within one origin, delays run in queue order; across origins there is
// no ordering.
func (s *Scheduler) Tick(now time.Time) {
	for _, o := range s.registry.Origins() {
		for o.Processes().Len() < o.Config.MaxProcesses {
			d := o.Queue().Head()
			if d == nil || d.Deadline.After(now) {
				break
			}
			o.Queue().PopHead()
			s.invoke(o, d)
		}
	}
}

// invoke hands one delay to the origin's action and records the child.
func (s *Scheduler) invoke(o *Origin, d *Delay) {
	s.inlet.set(o, d)
	cmd, err := o.Config.Action(&s.inlet)
	if err != nil {
		s.log.Error("action failed to start", "kind", d.Kind, "path", d.Path, "error", err)
		return
	}
	if cmd == nil || cmd.Process == nil {
		// Nothing spawned for this event.
		return
	}

	pid := cmd.Process.Pid
	o.Processes().Insert(pid, d)
	s.log.Debug("action started", "kind", d.Kind, "path", d.Path, "pid", pid)
	if s.onSpawn != nil {
		s.onSpawn(o, cmd)
	}
}

// EarliestAlarm returns the earliest deadline among origins that are eligible
// to run — those with a pending head delay and spare process capacity. A
// saturated origin contributes nothing, so the host can sleep through its
// backlog until a child exits.
func (s *Scheduler) EarliestAlarm() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, o := range s.registry.Origins() {
		if o.Processes().Len() >= o.Config.MaxProcesses {
			continue
		}
		d := o.Queue().Head()
		if d == nil {
			continue
		}
		if !found || d.Deadline.Before(earliest) {
			earliest = d.Deadline
			found = true
		}
	}
	return earliest, found
}

// Collect accounts for an exited child. The finished delay is discarded
// either way; a failed sync is reported but never retried here, that is the
// action's business.
func (s *Scheduler) Collect(pid, exitCode int) {
	for _, o := range s.registry.Origins() {
		d, ok := o.Processes().Remove(pid)
		if !ok {
			continue
		}
		if exitCode == 0 {
			s.log.Debug("action finished", "pid", pid, "kind", d.Kind, "path", d.Path)
		} else {
			s.log.Error("action exited non-zero", "pid", pid, "kind", d.Kind, "path", d.Path, "exit", exitCode)
		}
		return
	}
	s.log.Info("exit collected for unknown pid", "pid", pid, "exit", exitCode)
}
