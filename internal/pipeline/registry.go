package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftsyncapp/driftsync-daemon/internal/errors"
)

// Registry holds every configured origin in declaration order. It is
// append-only during configuration and its membership is immutable once the
// daemon is running.
type Registry struct {
	origins  []*Origin
	defaults OriginConfig
	log      *slog.Logger
}

// NewRegistry creates a registry. defaults is the settings-tier fallback
// already merged over the built-in defaults; origin configs fill their unset
// fields from it.
func NewRegistry(defaults OriginConfig, log *slog.Logger) *Registry {
	if defaults.MaxProcesses <= 0 {
		defaults.MaxProcesses = 1
	}
	if defaults.MaxActions <= 0 {
		defaults.MaxActions = 1
	}
	if defaults.Collapse == nil {
		defaults.Collapse = DefaultCollapse()
	}
	return &Registry{defaults: defaults, log: log}
}

// Add resolves source to a canonical directory path, completes cfg from the
// defaults tier and appends a fresh origin. An unresolvable source or a
// missing action is a configuration error.
func (r *Registry) Add(source, target string, cfg OriginConfig) (*Origin, error) {
	abs, err := realDir(source)
	if err != nil {
		return nil, errors.Config(fmt.Sprintf("source %q: %v", source, err))
	}

	cfg = r.resolve(cfg)
	if cfg.Action == nil {
		return nil, errors.Config(fmt.Sprintf("source %q: no action configured", source))
	}

	if target != "" && !strings.HasSuffix(target, "/") {
		target += "/"
	}

	o := NewOrigin(abs, target, cfg, r.log)
	r.origins = append(r.origins, o)
	return o, nil
}

// resolve fills unset config fields from the defaults tier.
func (r *Registry) resolve(cfg OriginConfig) OriginConfig {
	if cfg.Action == nil {
		cfg.Action = r.defaults.Action
	}
	if cfg.Startup == nil {
		cfg.Startup = r.defaults.Startup
	}
	if !cfg.Move {
		cfg.Move = r.defaults.Move
	}
	if cfg.MaxProcesses <= 0 {
		cfg.MaxProcesses = r.defaults.MaxProcesses
	}
	if cfg.MaxActions <= 0 {
		cfg.MaxActions = r.defaults.MaxActions
	}
	if cfg.Delay == 0 {
		cfg.Delay = r.defaults.Delay
	}
	if cfg.Collapse == nil {
		cfg.Collapse = r.defaults.Collapse
	}
	if cfg.Exclude == nil {
		cfg.Exclude = r.defaults.Exclude
	}
	return cfg
}

// Origins returns the origins in declaration order. Callers must not mutate
// the returned slice.
func (r *Registry) Origins() []*Origin { return r.origins }

// Len returns the number of configured origins.
func (r *Registry) Len() int { return len(r.origins) }

// realDir canonicalizes path into an absolute, symlink-resolved directory
// path with a trailing separator.
func realDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory")
	}
	if !strings.HasSuffix(resolved, "/") {
		resolved += "/"
	}
	return resolved, nil
}

// matchExclude reports whether the base name of path matches any pattern.
func matchExclude(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, err := filepath.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}
