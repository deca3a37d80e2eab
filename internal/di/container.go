// Package di provides dependency injection configuration for the driftsync
// daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/driftsyncapp/driftsync-daemon/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideMirror)
	do.Provide(injector, providers.ProvideLogger)

	// Pipeline
	do.Provide(injector, providers.ProvideWatcher)
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideRunner)

	// Status surface
	do.Provide(injector, providers.ProvideStatusServer)

	return injector
}

// Bootstrap eagerly constructs the service graph so configuration errors
// surface before the daemon starts watching.
func Bootstrap(injector do.Injector) error {
	if _, err := do.Invoke[*providers.RunnerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StatusServerHandle](injector); err != nil {
		return err
	}
	return nil
}
