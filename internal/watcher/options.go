package watcher

import "time"

// Options configures backend behavior.
type Options struct {
	// EventBuffer is the capacity of the event channel.
	EventBuffer int

	// PollInterval bounds how long the Linux backend sleeps in poll(2)
	// between checks of the shutdown flag.
	PollInterval time.Duration
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.EventBuffer == 0 {
		o.EventBuffer = 100
	}
	if o.PollInterval == 0 {
		o.PollInterval = 500 * time.Millisecond
	}
}
