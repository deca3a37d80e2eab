// Package status renders the daemon's observable state: a human-readable
// report for the status file and signal-driven dumps, and a JSON snapshot for
// the HTTP endpoint.
//
// The reporter reads pipeline state directly, so it must only be invoked from
// the runner's event loop. The HTTP server bridges into the loop through a
// query callback instead of touching the reporter itself.
package status

import (
	"fmt"
	"io"
	"time"

	"github.com/driftsyncapp/driftsync-daemon/internal/pipeline"
)

// Snapshot is a point-in-time view of the daemon, safe to serialize after the
// loop has produced it.
type Snapshot struct {
	Instance string         `json:"instance"`
	Uptime   string         `json:"uptime"`
	Watches  int            `json:"watches"`
	Origins  []OriginStatus `json:"origins"`
}

// OriginStatus summarizes one origin.
type OriginStatus struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Pending      int    `json:"pending"`
	InFlight     int    `json:"in_flight"`
	MaxProcesses int    `json:"max_processes"`
}

// Reporter formats pipeline state. Loop-thread only.
type Reporter struct {
	registry *pipeline.Registry
	watches  *pipeline.WatchTable
	instance string
	clock    pipeline.Clock
	started  time.Time
}

// NewReporter creates a reporter over the pipeline state.
func NewReporter(registry *pipeline.Registry, watches *pipeline.WatchTable, instance string, clock pipeline.Clock) *Reporter {
	return &Reporter{
		registry: registry,
		watches:  watches,
		instance: instance,
		clock:    clock,
		started:  clock.Now(),
	}
}

// Snapshot captures the current state.
func (r *Reporter) Snapshot() Snapshot {
	s := Snapshot{
		Instance: r.instance,
		Uptime:   r.clock.Now().Sub(r.started).Round(time.Second).String(),
		Watches:  r.watches.Len(),
	}
	for _, o := range r.registry.Origins() {
		s.Origins = append(s.Origins, OriginStatus{
			Source:       o.Source,
			Target:       o.Target,
			Pending:      o.Queue().Len(),
			InFlight:     o.Processes().Len(),
			MaxProcesses: o.Config.MaxProcesses,
		})
	}
	return s
}

// Report writes the human-readable status report.
func (r *Reporter) Report(w io.Writer) error {
	s := r.Snapshot()

	if _, err := fmt.Fprintf(w, "driftsync status (instance %s, up %s)\n", s.Instance, s.Uptime); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "watched directories: %d\n\n", s.Watches); err != nil {
		return err
	}

	for _, o := range s.Origins {
		if _, err := fmt.Fprintf(w, "origin %s -> %s\n", o.Source, o.Target); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  pending delays: %d\n  in-flight processes: %d/%d\n", o.Pending, o.InFlight, o.MaxProcesses); err != nil {
			return err
		}
	}
	return nil
}
