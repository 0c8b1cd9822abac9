package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/automaton/internal/config"
)

// RootOptions holds global flags for all commands, resolved against the
// environment and config file before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogLevel   string
	ConfigPath string

	// Set by the run and trace commands' flags.
	DB      string
	Timeout time.Duration

	logger *slog.Logger
}

// NewRootOptions returns options holding the built-in defaults.
func NewRootOptions() *RootOptions {
	d := config.Default()
	return &RootOptions{
		Verbose:  d.Verbose,
		Format:   d.Format,
		LogLevel: d.LogLevel,
		DB:       d.DB,
		Timeout:  d.Timeout,
	}
}

// NewRootCommand creates the root command for the automaton CLI.
func NewRootCommand() *cobra.Command {
	opts := NewRootOptions()

	cmd := &cobra.Command{
		Use:   "automaton",
		Short: "Run and test declarative state machines",
		Long: `Run, validate and test transition tables.

A transition table declares states, inputs, transitions and the effects
that feed new inputs back into the machine. Runs are journaled to SQLite.

Settings resolve from flags, then AUTOMATON_* environment variables
(a .env file is loaded when present), then the TOML file given by
--config or AUTOMATON_CONFIG, then defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, config.FlagVerbose, "v", opts.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, config.FlagFormat, opts.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, config.FlagLogLevel, opts.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to TOML config file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// resolve applies environment and file settings beneath the flags the
// user set, then installs the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	changed := make(map[string]bool)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})

	cfg := config.Config{
		Format:   o.Format,
		Verbose:  o.Verbose,
		DB:       o.DB,
		Timeout:  o.Timeout,
		LogLevel: o.LogLevel,
	}
	if err := config.Load(&cfg, o.ConfigPath, changed); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Format = cfg.Format
	o.Verbose = cfg.Verbose
	o.DB = cfg.DB
	o.Timeout = cfg.Timeout
	o.LogLevel = cfg.LogLevel
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	return nil
}

// Logger returns the configured logger. Commands built without the root
// command log to stderr at Info, or Debug when verbose.
func (o *RootOptions) Logger(cmd *cobra.Command) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(config.ValidFormats, format)
}

func checkFormat(format string) error {
	if !isValidFormat(format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", format, config.ValidFormats))
	}
	return nil
}
