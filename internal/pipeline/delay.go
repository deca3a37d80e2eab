package pipeline

import "time"

// Delay is one pending event waiting for its deadline. Kind is the only
// mutable field: it becomes KindNone when the delay is cancelled, or a merged
// kind when a newer event collapses into it. Its position in the queue
// sequence is its priority.
type Delay struct {
	Kind     EventKind
	Path     string
	Path2    string // destination path, set only for move kinds
	Deadline time.Time
}
