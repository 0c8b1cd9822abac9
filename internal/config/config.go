// Package config resolves CLI settings from flags, the environment, an
// optional TOML file and defaults, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTOMATON_"

// Flag names that Load treats as explicitly set when present in changed.
const (
	FlagFormat   = "format"
	FlagVerbose  = "verbose"
	FlagDB       = "db"
	FlagTimeout  = "timeout"
	FlagLogLevel = "log-level"
)

// ValidFormats lists the accepted output formats.
var ValidFormats = []string{"text", "json"}

// Config holds resolved CLI settings.
type Config struct {
	Format   string
	Verbose  bool
	DB       string
	Timeout  time.Duration
	LogLevel string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Format:   "text",
		DB:       "automaton.db",
		Timeout:  5 * time.Second,
		LogLevel: "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !slices.Contains(ValidFormats, c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if c.DB == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level, raised to Debug when Verbose is set.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
	return level, nil
}

// Load resolves cfg in place. cfg must already hold flag values over
// defaults; changed names the flags the user set explicitly, which file
// and environment values never override.
//
// The file is path, or AUTOMATON_CONFIG when path is empty. A .env file
// in the working directory is loaded into the environment first when
// present.
func Load(cfg *Config, path string, changed map[string]bool) error {
	if err := LoadDotEnv(); err != nil {
		return err
	}

	ec, err := LoadEnv()
	if err != nil {
		return err
	}

	if path == "" {
		path = ec.Config
	}
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := ApplyFile(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := ApplyEnv(cfg, ec, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

// setter applies values while respecting flag precedence.
type setter struct {
	changed map[string]bool
}

func (s setter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s setter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s setter) setDuration(flag string, value time.Duration, dst *time.Duration) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}
