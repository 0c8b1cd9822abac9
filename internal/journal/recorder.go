package journal

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/automaton"
)

// Recorder writes an automaton's replies and terminal signal to a
// journal. States and inputs are stored in their fmt.Sprint form.
//
// Writes happen synchronously on the transition loop, so once the
// automaton's Done channel is closed the run is fully journaled.
type Recorder[S, I any] struct {
	ctx     context.Context
	journal *Journal
	runID   string

	mu    sync.Mutex
	state string
	err   error
}

// NewRecorder begins run in j and returns a recorder for it. Pass its
// Observer to automaton.NewObserved, using the same run ID.
func NewRecorder[S, I any](ctx context.Context, j *Journal, run Run) (*Recorder[S, I], error) {
	if err := j.BeginRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder[S, I]{
		ctx:     ctx,
		journal: j,
		runID:   run.ID,
		state:   run.InitialState,
	}, nil
}

// Observer returns the callbacks that feed the journal.
func (r *Recorder[S, I]) Observer() automaton.Observer[S, I] {
	return automaton.Observer[S, I]{
		OnReply:     r.onReply,
		OnTerminate: r.onTerminate,
	}
}

// Err returns the first write error, if any. Recording stops after it.
func (r *Recorder[S, I]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder[S, I]) onReply(reply automaton.Reply[S, I]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	rec := Reply{
		RunID:     r.runID,
		Seq:       reply.Seq,
		Input:     fmt.Sprint(reply.Input),
		FromState: fmt.Sprint(reply.FromState),
		Accepted:  reply.OK,
	}
	if reply.OK {
		rec.ToState = fmt.Sprint(reply.ToState)
		r.state = rec.ToState
	}
	r.err = r.journal.AppendReply(r.ctx, rec)
}

func (r *Recorder[S, I]) onTerminate(term automaton.Termination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.err = r.journal.EndRun(r.ctx, r.runID, r.state, term.String())
}
