package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML-friendly field types.
type FileConfig struct {
	Format   string `toml:"format"`
	Verbose  *bool  `toml:"verbose"`
	DB       string `toml:"db"`
	Timeout  string `toml:"timeout"`
	LogLevel string `toml:"log_level"`
}

// LoadFile reads and parses a TOML config file. Unknown keys are errors.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile applies file values to cfg, skipping flags in changed.
func ApplyFile(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := setter{changed: changed}

	s.setString(FlagFormat, fc.Format, &cfg.Format)
	s.setBool(FlagVerbose, fc.Verbose, &cfg.Verbose)
	s.setString(FlagDB, fc.DB, &cfg.DB)
	s.setString(FlagLogLevel, fc.LogLevel, &cfg.LogLevel)

	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		s.setDuration(FlagTimeout, d, &cfg.Timeout)
	}
	return nil
}
