package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/automaton/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	RunID string
	Input string // optional - filter to one input
}

// TraceResult holds one run's journaled trace.
type TraceResult struct {
	Run     journal.Run     `json:"run"`
	Replies []journal.Reply `json:"replies"`
	Stats   TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// RunList holds every journaled run.
type RunList struct {
	Runs []journal.Run `json:"runs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled runs",
		Long: `Show runs recorded in a journal.

Without --run, lists every run. With --run, shows that run's replies in
sequence order; "latest" selects the most recent run.

Examples:
  automaton trace --db ./runs.db
  automaton trace --db ./runs.db --run latest
  automaton trace --db ./runs.db --run 0192... --input Login --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", opts.DB, "path to SQLite journal")
	cmd.Flags().StringVar(&opts.RunID, "run", "", `run ID to show, or "latest"`)
	cmd.Flags().StringVar(&opts.Input, "input", "", "only show replies to this input")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening would create an empty journal.
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.DB), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.DB))
	}

	j, err := journal.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.RunID == "" {
		runs, err := j.Runs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.JSON() {
			return formatter.Success(RunList{Runs: runs})
		}
		outputRunsText(formatter.Writer, runs)
		return nil
	}

	run, err := lookupRun(ctx, j, opts.RunID)
	if errors.Is(err, journal.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	replies, err := j.Replies(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read replies", err)
	}

	result := TraceResult{Run: run, Replies: filterReplies(replies, opts.Input)}
	for _, r := range result.Replies {
		result.Stats.Total++
		if r.Accepted {
			result.Stats.Accepted++
		} else {
			result.Stats.Rejected++
		}
	}

	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func lookupRun(ctx context.Context, j *journal.Journal, id string) (journal.Run, error) {
	if id == "latest" {
		return j.LatestRun(ctx)
	}
	return j.GetRun(ctx, id)
}

// filterReplies keeps replies to input, or all replies when input is empty.
func filterReplies(replies []journal.Reply, input string) []journal.Reply {
	if input == "" {
		return replies
	}
	out := []journal.Reply{}
	for _, r := range replies {
		if r.Input == input {
			out = append(out, r)
		}
	}
	return out
}

func outputRunsText(w io.Writer, runs []journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-12s %-12s %-20s %d replies\n",
			r.ID, r.Machine, r.Termination, displayState(r), r.Replies)
	}
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Machine: %s\n", run.Machine)
	if verbose && run.MachineHash != "" {
		fmt.Fprintf(w, "Hash: %s\n", run.MachineHash)
	}
	fmt.Fprintf(w, "Status: %s\n", run.Termination)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	fmt.Fprintf(w, "  start %s\n", run.InitialState)
	if len(result.Replies) == 0 {
		fmt.Fprintln(w, "  (no replies)")
	}
	for _, r := range result.Replies {
		if r.Accepted {
			fmt.Fprintf(w, "  [%d] %s: %s -> %s\n", r.Seq, r.Input, r.FromState, r.ToState)
		} else {
			fmt.Fprintf(w, "  [%d] %s: %s (rejected)\n", r.Seq, r.Input, r.FromState)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Replies:  %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Accepted: %d\n", result.Stats.Accepted)
	fmt.Fprintf(w, "  Rejected: %d\n", result.Stats.Rejected)
	fmt.Fprintf(w, "  Final:    %s\n", displayState(run))
}

// displayState is the final state, or the initial state of a run still
// in progress.
func displayState(r journal.Run) string {
	if r.FinalState != "" {
		return r.FinalState
	}
	return r.InitialState
}
