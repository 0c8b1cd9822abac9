package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/automaton/internal/table"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Watch bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                    `json:"valid"`
	Machine string                  `json:"machine,omitempty"`
	Hash    string                  `json:"hash,omitempty"`
	Errors  []table.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <table>",
		Short: "Validate a transition table",
		Long: `Validate a YAML or CUE transition table without running it.

Reports decode errors and every validation problem with its code and,
for YAML tables, the line of the offending transition. With --watch the
table is re-validated whenever it changes until interrupted.

Examples:
  automaton validate ./auth.yaml
  automaton validate ./auth.cue --format json
  automaton validate ./auth.yaml --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return runValidateWatch(opts, args[0], cmd)
			}
			return runValidate(opts.RootOptions, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-validate whenever the table changes")

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("table not found: %s", path))
	}

	formatter.VerboseLog("Validating %s", path)
	result, err := ValidateTable(path)
	if err != nil {
		return outputValidateError(formatter, ErrCodeParse, err.Error())
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateTable loads and validates the table at path. The returned
// error is set only when the table cannot be decoded at all.
func ValidateTable(path string) (ValidationResult, error) {
	def, err := table.LoadFile(path)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{Machine: def.Name}
	m, err := table.Compile(def)
	if err != nil {
		var verrs table.ValidationErrors
		if errors.As(err, &verrs) {
			result.Errors = verrs
			return result, nil
		}
		return result, err
	}
	result.Valid = true
	result.Hash = m.Hash()
	return result, nil
}

// runValidateWatch validates once, then again after every change to the
// table until the command's context ends or the process is interrupted.
// The directory is watched so editors that replace the file on save are
// still seen.
func runValidateWatch(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	logger := opts.Logger(cmd)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch table directory", err)
	}

	var mu sync.Mutex
	validate := func() {
		mu.Lock()
		defer mu.Unlock()
		// Failures are reported on the output; watching continues.
		_ = runValidate(opts.RootOptions, path, cmd)
	}

	validate()
	logger.Info("watching table", "path", path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	base := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped watching", "path", path)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("table changed", "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, validate)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s valid (%s)\n", result.Machine, shortHash(result.Hash))
	return nil
}

// outputValidateError outputs a table that could not be read or decoded.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation problem.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
