package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"DEBUG", slog.LevelDebug, false},
		{"debug", slog.LevelDebug, false},
		{"VERBOSE", LevelVerbose, false},
		{"NORMAL", slog.LevelInfo, false},
		{"ERROR", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"TRACE", slog.LevelInfo, true},
		{"info", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelName(slog.LevelDebug))
	assert.Equal(t, "VERBOSE", LevelName(LevelVerbose))
	assert.Equal(t, "NORMAL", LevelName(slog.LevelInfo))
	assert.Equal(t, "NORMAL", LevelName(slog.LevelWarn))
	assert.Equal(t, "ERROR", LevelName(slog.LevelError))
}

func TestNew_JSONUsesDaemonLevelNames(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelDebug})

	log.Info("watching", "origin", "/data")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "NORMAL", record["level"])
	assert.Equal(t, "watching", record["msg"])
	assert.Equal(t, "/data", record["origin"])
}

func TestNew_VerboseBelowNormal(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelInfo})

	log.Verbose("noisy detail")
	assert.Empty(t, buf.String(), "VERBOSE must be filtered at NORMAL level")

	verbose := New(Config{Writer: &buf, Format: "json", Level: LevelVerbose})
	verbose.Verbose("noisy detail")
	assert.Contains(t, buf.String(), "noisy detail")
}

func TestNew_PrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty", Level: slog.LevelDebug})

	log.Error("sync failed", "path", "a/x")

	out := buf.String()
	assert.Contains(t, out, "ERR")
	assert.Contains(t, out, "sync failed")
	assert.Contains(t, out, "path=a/x")
}

func TestNew_ProductionDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production"})

	log.Info("up")

	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}
