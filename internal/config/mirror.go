package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/driftsyncapp/driftsync-daemon/internal/errors"
)

// Mirror is the parsed mirror-definition file: a settings block of
// daemon-wide options (which double as the fallback tier for per-origin
// fields) and one sync block per origin.
type Mirror struct {
	Settings map[string]string `yaml:"settings"`
	Sync     []SyncBlock       `yaml:"sync"`
}

// SyncBlock declares one origin.
type SyncBlock struct {
	Source       string   `yaml:"source" validate:"required"`
	Target       string   `yaml:"target" validate:"required"`
	Action       string   `yaml:"action"`
	Startup      string   `yaml:"startup"`
	Move         bool     `yaml:"move"`
	MaxProcesses int      `yaml:"max_processes" validate:"gte=0"`
	MaxActions   int      `yaml:"max_actions" validate:"gte=0"`
	Delay        string   `yaml:"delay"`
	Exclude      []string `yaml:"exclude"`
}

// Settings is the validated settings block.
type Settings struct {
	LogLevel       string
	LogFile        string
	StatusFile     string
	StatusInterval time.Duration
	HTTPAddr       string

	// Fallback tier for per-origin fields.
	Delay        time.Duration
	MaxProcesses int
	MaxActions   int
}

// settingsOption describes one allowed settings key.
type settingsOption struct {
	needsParam bool
	validate   func(string) error
}

// settingsOptions is the allow-list of recognized settings keys. Unknown keys
// and failing validators abort configuration.
var settingsOptions = map[string]settingsOption{
	"loglevel":       {needsParam: true, validate: validLogLevel},
	"logfile":        {needsParam: true},
	"statusfile":     {needsParam: true},
	"statusinterval": {needsParam: true, validate: validDuration},
	"httpaddr":       {needsParam: true},
	"delay":          {needsParam: true, validate: validDuration},
	"maxprocesses":   {needsParam: true, validate: validPositiveInt},
	"maxactions":     {needsParam: true, validate: validPositiveInt},
}

func validLogLevel(v string) error {
	switch strings.ToUpper(v) {
	case "DEBUG", "NORMAL", "VERBOSE", "ERROR":
		return nil
	default:
		return fmt.Errorf("must be DEBUG, NORMAL, VERBOSE or ERROR")
	}
}

func validDuration(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("not a duration: %v", err)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validPositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not a number: %v", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

// LoadMirror reads and validates a mirror-definition file. An empty sync list
// is a configuration error: a mirror daemon with nothing to watch is a
// misconfiguration, not an idle success.
func LoadMirror(path string) (*Mirror, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- config file path comes from the operator
	if err != nil {
		return nil, errors.Configf("cannot read mirror file %s: %v", path, err)
	}

	var m Mirror
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Configf("cannot parse mirror file %s: %v", path, err)
	}

	if err := m.validateSettings(); err != nil {
		return nil, err
	}
	if err := m.validateSync(); err != nil {
		return nil, err
	}
	if len(m.Sync) == 0 {
		return nil, errors.Config("nothing to watch: mirror file declares no sync blocks")
	}

	return &m, nil
}

// validateSettings checks every settings key against the allow-list.
func (m *Mirror) validateSettings() error {
	for key, value := range m.Settings {
		opt, ok := settingsOptions[strings.ToLower(key)]
		if !ok {
			return errors.Configf("unknown settings key %q", key)
		}
		if opt.needsParam && value == "" {
			return errors.Configf("settings key %q requires a value", key)
		}
		if opt.validate != nil {
			if err := opt.validate(value); err != nil {
				return errors.Configf("settings key %q: %v", key, err)
			}
		}
	}
	return nil
}

// validateSync structurally validates the sync blocks.
func (m *Mirror) validateSync() error {
	v := validator.New()
	for i := range m.Sync {
		b := &m.Sync[i]
		if err := v.Struct(b); err != nil {
			return errors.Configf("sync block %d: %v", i+1, err)
		}
		if b.Delay != "" {
			if err := validDuration(b.Delay); err != nil {
				return errors.Configf("sync block %d: delay: %v", i+1, err)
			}
		}
	}
	return nil
}

// ResolveSettings binds the raw settings map into typed values.
func (m *Mirror) ResolveSettings() Settings {
	s := Settings{}
	for key, value := range m.Settings {
		switch strings.ToLower(key) {
		case "loglevel":
			s.LogLevel = strings.ToUpper(value)
		case "logfile":
			s.LogFile = value
		case "statusfile":
			s.StatusFile = value
		case "statusinterval":
			s.StatusInterval, _ = time.ParseDuration(value)
		case "httpaddr":
			s.HTTPAddr = value
		case "delay":
			s.Delay, _ = time.ParseDuration(value)
		case "maxprocesses":
			s.MaxProcesses, _ = strconv.Atoi(value)
		case "maxactions":
			s.MaxActions, _ = strconv.Atoi(value)
		}
	}
	return s
}

// ParsedDelay returns the block's debounce interval, or 0 when unset.
// Validation has already established the string parses.
func (b *SyncBlock) ParsedDelay() time.Duration {
	if b.Delay == "" {
		return 0
	}
	d, _ := time.ParseDuration(b.Delay)
	return d
}
