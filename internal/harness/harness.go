package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/automaton"
	"github.com/roach88/automaton/internal/journal"
	"github.com/roach88/automaton/internal/table"
	"github.com/roach88/automaton/internal/testutil"
)

// pollInterval is how often await steps re-check their condition.
const pollInterval = time.Millisecond

// Harness drives one scenario's automaton.
type Harness struct {
	machine *table.Machine
	journal *journal.Journal
	pipe    *automaton.Pipe[string]
	auto    *automaton.Automaton[string, string]
	replies atomic.Int64
	timeout time.Duration
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal, a fixed run ID and
// a fresh clock, so the trace is reproducible.
//
// Execution flow:
//  1. Load and compile the transition table
//  2. Open an in-memory journal and begin the run
//  3. Execute steps in order, stopping at the first failed step
//  4. Complete and drain the run if it has not terminated
//  5. Read the trace back from the journal and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	machine, err := table.LoadMachine(scenario.Machine)
	if err != nil {
		return nil, fmt.Errorf("failed to load machine: %w", err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	ctx := context.Background()
	runID := testutil.NewFixedRunID(scenario.RunID).Generate()

	rec, err := journal.NewRecorder[string, string](ctx, j, journal.Run{
		ID:           runID,
		Machine:      machine.Name(),
		MachineHash:  machine.Hash(),
		InitialState: machine.Initial(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	h := &Harness{
		machine: machine,
		journal: j,
		pipe:    automaton.NewPipe[string](),
		timeout: scenario.Timeout.Std(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if h.timeout == 0 {
		h.timeout = DefaultTimeout
	}

	counter := automaton.Observer[string, string]{
		OnReply: func(automaton.Reply[string, string]) { h.replies.Add(1) },
	}
	h.auto = machine.NewObserved(h.pipe,
		[]automaton.Observer[string, string]{rec.Observer(), counter},
		automaton.WithRunID(runID),
		automaton.WithLogger(h.logger),
	)

	result := NewResult()
	result.RunID = runID
	result.Machine = machine.Name()

	h.executeSteps(scenario.Steps, result)
	h.drain(result)

	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("failed to journal run: %w", err)
	}
	if err := h.collect(ctx, runID, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeSteps(steps []Step, result *Result) {
	for i, step := range steps {
		if err := h.executeStep(step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			return
		}
	}
}

func (h *Harness) executeStep(step Step) error {
	switch {
	case len(step.Send) > 0:
		for _, in := range step.Send {
			if !h.pipe.Send(in) {
				return fmt.Errorf("send %q: input source has ended", in)
			}
		}
	case step.Await != nil:
		return h.await(*step.Await)
	case step.Sleep > 0:
		time.Sleep(step.Sleep.Std())
	case step.Complete:
		h.pipe.Complete()
	case step.Interrupt:
		h.pipe.Interrupt()
	case step.Close:
		return h.auto.Close()
	}
	return nil
}

func (h *Harness) await(cond Await) error {
	deadline := time.NewTimer(h.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if ok, err := h.check(cond); ok || err != nil {
			return err
		}
		select {
		case <-deadline.C:
			return fmt.Errorf("await %s: timed out after %s (state %q, %d replies)",
				describe(cond), h.timeout, h.auto.State(), h.replies.Load())
		case <-ticker.C:
		case <-h.auto.Done():
		}
	}
}

func (h *Harness) check(cond Await) (bool, error) {
	switch {
	case cond.State != "":
		if h.auto.State() == cond.State {
			return true, nil
		}
	case cond.Replies > 0:
		if h.replies.Load() >= int64(cond.Replies) {
			return true, nil
		}
	case cond.Terminated != "":
		term := h.auto.Termination()
		if term == automaton.Running {
			return false, nil
		}
		if cond.Terminated != "any" && term.String() != cond.Terminated {
			return false, fmt.Errorf("await %s: run ended %s", describe(cond), term)
		}
		return true, nil
	}

	// A terminated run can no longer change state or reply.
	select {
	case <-h.auto.Done():
		return false, fmt.Errorf("await %s: run ended %s (state %q, %d replies)",
			describe(cond), h.auto.Termination(), h.auto.State(), h.replies.Load())
	default:
		return false, nil
	}
}

// drain completes the input source and waits for termination, closing
// the automaton if its effects outlive the timeout.
func (h *Harness) drain(result *Result) {
	h.pipe.Complete()
	select {
	case <-h.auto.Done():
	case <-time.After(h.timeout):
		result.AddError(fmt.Sprintf("run did not complete within %s; closed", h.timeout))
		_ = h.auto.Close()
	}
}

func (h *Harness) collect(ctx context.Context, runID string, result *Result) error {
	run, err := h.journal.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read run: %w", err)
	}
	result.FinalState = run.FinalState
	result.Termination = run.Termination

	replies, err := h.journal.Replies(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	for _, r := range replies {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:      r.Seq,
			Input:    r.Input,
			From:     r.FromState,
			To:       r.ToState,
			Accepted: r.Accepted,
		})
	}
	return nil
}

func describe(cond Await) string {
	switch {
	case cond.State != "":
		return fmt.Sprintf("state %q", cond.State)
	case cond.Replies > 0:
		return fmt.Sprintf("%d replies", cond.Replies)
	default:
		return fmt.Sprintf("terminated %s", cond.Terminated)
	}
}
