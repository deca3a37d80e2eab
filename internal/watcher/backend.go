package watcher

import "context"

// Backend is the platform-specific watch mechanism.
type Backend interface {
	// AddWatch registers a single directory (non-recursive) and returns its
	// watch descriptor.
	AddWatch(path string) (int, error)

	// Start begins reading kernel events. It blocks until the context is
	// cancelled.
	Start(ctx context.Context) error

	// Events returns the channel raw events are delivered on.
	Events() <-chan Event

	// Errors returns the channel read failures and overflows are delivered
	// on.
	Errors() <-chan error

	// Stop releases kernel resources and closes the channels.
	Stop() error
}
