package pipeline

// Inlet is the narrow view of one pending event handed to an action. It
// exposes the event's endpoints and kind while hiding the origin and queue
// internals. The scheduler reuses a single inlet across invocations, so
// actions must read what they need and let go.
type Inlet struct {
	origin *Origin
	delay  *Delay
}

// NewInlet builds a standalone inlet for one event. The scheduler maintains
// its own reused inlet; this constructor exists for tests of custom actions.
func NewInlet(o *Origin, d *Delay) *Inlet {
	return &Inlet{origin: o, delay: d}
}

// set points the inlet at the next event. Scheduler only.
func (in *Inlet) set(o *Origin, d *Delay) {
	in.origin = o
	in.delay = d
}

// Kind returns the event kind.
func (in *Inlet) Kind() EventKind { return in.delay.Kind }

// SourcePath returns the absolute path of the event inside the source tree.
func (in *Inlet) SourcePath() string { return in.origin.Source + in.delay.Path }

// TargetPath returns the target identifier concatenated with the event's
// relative path.
func (in *Inlet) TargetPath() string { return in.origin.Target + in.delay.Path }

// SourcePath2 returns the absolute destination path of a move, or "" for
// other kinds.
func (in *Inlet) SourcePath2() string {
	if in.delay.Path2 == "" {
		return ""
	}
	return in.origin.Source + in.delay.Path2
}

// TargetPath2 returns the target destination path of a move, or "" for other
// kinds.
func (in *Inlet) TargetPath2() string {
	if in.delay.Path2 == "" {
		return ""
	}
	return in.origin.Target + in.delay.Path2
}
