// Package config provides daemon configuration from command-line flags,
// environment variables and .env files, plus loading and validation of the
// YAML mirror-definition file.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftsyncapp/driftsync-daemon/internal/errors"
)

// Config holds the daemon configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Status StatusConfig
	Mirror MirrorSettings
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level      string // DEBUG, NORMAL, VERBOSE or ERROR
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
}

// StatusConfig holds status reporting configuration.
type StatusConfig struct {
	File     string        // optional human-readable status file
	Interval time.Duration // rewrite interval for the status file
	HTTPAddr string        // optional address of the status HTTP server
}

// MirrorSettings locates the mirror-definition file.
type MirrorSettings struct {
	Path string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, production)")
	logLevel := flag.String("log-level", "", "Log level (DEBUG, NORMAL, VERBOSE, ERROR)")
	logFile := flag.String("log-file", "", "Path to rotating log file")
	statusFile := flag.String("status-file", "", "Path to status file")
	statusInterval := flag.String("status-interval", "", "Status file rewrite interval (default: 10s)")
	httpAddr := flag.String("http-addr", "", "Address of the status HTTP server (empty disables)")
	mirrorPath := flag.String("mirror-file", "", "Path to the mirror definition file")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "DRIFTSYNC_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:      getConfigValue(*logLevel, "DRIFTSYNC_LOG_LEVEL", "NORMAL"),
			File:       getConfigValue(*logFile, "DRIFTSYNC_LOG_FILE", ""),
			MaxSizeMB:  getIntConfigValue("", "DRIFTSYNC_LOG_MAX_SIZE_MB", 50),
			MaxBackups: getIntConfigValue("", "DRIFTSYNC_LOG_MAX_BACKUPS", 3),
		},
		Status: StatusConfig{
			File:     getConfigValue(*statusFile, "DRIFTSYNC_STATUS_FILE", ""),
			HTTPAddr: getConfigValue(*httpAddr, "DRIFTSYNC_HTTP_ADDR", ""),
		},
		Mirror: MirrorSettings{
			Path: getConfigValue(*mirrorPath, "DRIFTSYNC_MIRROR_FILE", "driftsync.yaml"),
		},
	}

	intervalStr := getConfigValue(*statusInterval, "DRIFTSYNC_STATUS_INTERVAL", "10s")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, errors.Configf("invalid status interval %q: %v", intervalStr, err)
	}
	cfg.Status.Interval = interval

	if err := cfg.expandMirrorPath(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return errors.Configf("invalid environment: %s (must be development or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"DEBUG":   true,
		"NORMAL":  true,
		"VERBOSE": true,
		"ERROR":   true,
	}
	if !validLevels[strings.ToUpper(c.Logger.Level)] {
		return errors.Configf("invalid log level: %s (must be DEBUG, NORMAL, VERBOSE or ERROR)", c.Logger.Level)
	}

	if c.Mirror.Path == "" {
		return errors.Config("mirror definition file path cannot be empty")
	}

	return nil
}

// expandMirrorPath expands ~ and makes the path absolute.
func (c *Config) expandMirrorPath() error {
	expanded, err := expandPath(c.Mirror.Path)
	if err != nil {
		return errors.Configf("invalid mirror file path: %v", err)
	}
	c.Mirror.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
