package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/automaton"
	"github.com/roach88/automaton/internal/journal"
	"github.com/roach88/automaton/internal/table"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inputs []string
	RunID  string

	// RunIDGenerator overrides run ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator automaton.IDGenerator
}

// ReplyLine is one reply in JSON output.
type ReplyLine struct {
	Seq      int64  `json:"seq"`
	Input    string `json:"input"`
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Accepted bool   `json:"accepted"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID       string      `json:"run_id"`
	Machine     string      `json:"machine"`
	FinalState  string      `json:"final_state"`
	Termination string      `json:"termination"`
	Replies     []ReplyLine `json:"replies"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <table>",
		Short: "Run a transition table",
		Long: `Run a transition table, feeding it inputs and journaling every reply.

Inputs come from --input flags, or else one per line on stdin. The end of
input completes the run once every effect has finished; effects still
running after --timeout are disposed and the run is interrupted. Ctrl-C
interrupts the run at once.

Examples:
  automaton run ./auth.yaml --input Login --input Logout
  printf 'Login\nLogout\n' | automaton run ./auth.yaml --db ./runs.db
  automaton run ./counter.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMachine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", opts.DB, `path to SQLite journal (":memory:" to skip persisting)`)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "how long effects may run after input ends")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "input to send (repeatable); stdin is read when none are given")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run ID (default: generated UUIDv7)")

	return cmd
}

func runMachine(opts *RunOptions, path string, cmd *cobra.Command) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd)

	machine, err := table.LoadMachine(path)
	if err != nil {
		var verrs table.ValidationErrors
		if errors.As(err, &verrs) {
			_ = outputValidationErrors(formatter, ValidationResult{Machine: path, Errors: verrs})
		}
		return WrapExitError(ExitCommandError, "failed to load table", err)
	}
	logger.Info("table loaded", "machine", machine.Name(), "hash", shortHash(machine.Hash()))

	j, err := journal.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	runID := opts.RunID
	if runID == "" {
		gen := opts.RunIDGenerator
		if gen == nil {
			gen = automaton.UUIDv7Generator{}
		}
		runID = gen.Generate()
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := journal.NewRecorder[string, string](context.WithoutCancel(ctx), j, journal.Run{
		ID:           runID,
		Machine:      machine.Name(),
		MachineHash:  machine.Hash(),
		InitialState: machine.Initial(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to begin run", err)
	}

	var (
		mu      sync.Mutex
		replies []ReplyLine
	)
	printer := automaton.Observer[string, string]{
		OnReply: func(r automaton.Reply[string, string]) {
			line := ReplyLine{Seq: r.Seq, Input: r.Input, From: r.FromState, Accepted: r.OK}
			if r.OK {
				line.To = r.ToState
			}
			mu.Lock()
			replies = append(replies, line)
			mu.Unlock()
			formatter.Textf("%s", r)
		},
	}

	pipe := automaton.NewPipe[string]()
	a := machine.NewObserved(pipe,
		[]automaton.Observer[string, string]{rec.Observer(), printer},
		automaton.WithRunID(runID),
		automaton.WithLogger(logger),
	)
	logger.Info("run started", "run_id", runID, "db", opts.DB)

	g, gctx := errgroup.WithContext(ctx)
	inputEnded := make(chan struct{})

	g.Go(func() error {
		defer close(inputEnded)
		return feedInputs(gctx, pipe, opts.Inputs, cmd, a.Done())
	})

	g.Go(func() error {
		select {
		case <-a.Done():
			return nil
		case <-gctx.Done():
		}
		// Either the feeder failed or a signal arrived.
		logger.Info("interrupting run", "run_id", runID)
		pipe.Interrupt()
		<-a.Done()
		return nil
	})

	g.Go(func() error {
		select {
		case <-a.Done():
		case <-inputEnded:
			select {
			case <-a.Done():
			case <-time.After(opts.Timeout):
				logger.Warn("effects still running after timeout; closing", "timeout", opts.Timeout)
				return a.Close()
			}
		}
		return nil
	})

	feedErr := g.Wait()
	if err := rec.Err(); err != nil {
		return WrapExitError(ExitFailure, "failed to journal run", err)
	}
	if feedErr != nil {
		return WrapExitError(ExitCommandError, "failed to read inputs", feedErr)
	}

	mu.Lock()
	summary := RunSummary{
		RunID:       runID,
		Machine:     machine.Name(),
		FinalState:  a.State(),
		Termination: a.Termination().String(),
		Replies:     replies,
	}
	mu.Unlock()
	if summary.Replies == nil {
		summary.Replies = []ReplyLine{}
	}

	logger.Info("run finished", "run_id", runID, "termination", summary.Termination)
	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: summary, RunID: runID})
	}
	fmt.Fprintf(formatter.Writer, "%s %s: %s (%d replies, run %s)\n",
		summary.Machine, summary.Termination, summary.FinalState, len(summary.Replies), runID)
	return nil
}

// feedInputs sends the flag inputs, or else stdin lines, then completes
// the pipe. Blank lines are skipped. The stdin reader cannot be
// interrupted, so it runs on its own goroutine and is abandoned when the
// run ends first.
func feedInputs(ctx context.Context, pipe *automaton.Pipe[string], inputs []string, cmd *cobra.Command, done <-chan struct{}) error {
	if len(inputs) > 0 {
		for _, in := range inputs {
			pipe.Send(in)
		}
		pipe.Complete()
		return nil
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				pipe.Complete()
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if line = strings.TrimSpace(line); line != "" {
				pipe.Send(line)
			}
		}
	}
}
