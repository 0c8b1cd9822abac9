package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvConfig holds the AUTOMATON_* environment variables.
type EnvConfig struct {
	Config   string        `env:"CONFIG"`
	Format   string        `env:"FORMAT"`
	Verbose  string        `env:"VERBOSE"`
	DB       string        `env:"DB"`
	Timeout  time.Duration `env:"TIMEOUT"`
	LogLevel string        `env:"LOG_LEVEL"`
}

// LoadDotEnv loads the given .env files, or ".env" when none are given,
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadEnv parses the AUTOMATON_* environment variables.
func LoadEnv() (EnvConfig, error) {
	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix}); err != nil {
		return ec, fmt.Errorf("parse environment: %w", err)
	}
	return ec, nil
}

// ApplyEnv applies environment values to cfg, skipping flags in changed.
func ApplyEnv(cfg *Config, ec EnvConfig, changed map[string]bool) error {
	s := setter{changed: changed}

	if ec.Verbose != "" {
		v, err := strconv.ParseBool(ec.Verbose)
		if err != nil {
			return fmt.Errorf("parse %sVERBOSE: %w", EnvPrefix, err)
		}
		s.setBool(FlagVerbose, &v, &cfg.Verbose)
	}
	s.setString(FlagFormat, ec.Format, &cfg.Format)
	s.setString(FlagDB, ec.DB, &cfg.DB)
	s.setDuration(FlagTimeout, ec.Timeout, &cfg.Timeout)
	s.setString(FlagLogLevel, ec.LogLevel, &cfg.LogLevel)
	return nil
}
