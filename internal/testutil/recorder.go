package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/automaton"
)

// DefaultWait bounds how long Wait helpers poll before failing a test.
const DefaultWait = 2 * time.Second

// Recorder captures everything an automaton publishes.
//
// For each reply it also captures the state read from inside the
// observer callback, which lets tests check that state is committed
// before a reply becomes observable.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder[S, I any] struct {
	mu        sync.Mutex
	replies   []automaton.Reply[S, I]
	observed  []S
	term      automaton.Termination
	terminals int
}

// Record attaches a new Recorder to a.
func Record[S, I any](a *automaton.Automaton[S, I]) *Recorder[S, I] {
	r := &Recorder[S, I]{}
	a.Observe(automaton.Observer[S, I]{
		OnReply: func(reply automaton.Reply[S, I]) {
			state := a.State()
			r.mu.Lock()
			defer r.mu.Unlock()
			r.replies = append(r.replies, reply)
			r.observed = append(r.observed, state)
		},
		OnTerminate: func(t automaton.Termination) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.term = t
			r.terminals++
		},
	})
	return r
}

// Replies returns a copy of the replies seen so far.
func (r *Recorder[S, I]) Replies() []automaton.Reply[S, I] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]automaton.Reply[S, I], len(r.replies))
	copy(out, r.replies)
	return out
}

// Inputs returns the input of every reply in order.
func (r *Recorder[S, I]) Inputs() []I {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]I, len(r.replies))
	for i, reply := range r.replies {
		out[i] = reply.Input
	}
	return out
}

// ObservedStates returns the state read while each reply was delivered.
func (r *Recorder[S, I]) ObservedStates() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]S, len(r.observed))
	copy(out, r.observed)
	return out
}

// Len returns the number of replies seen.
func (r *Recorder[S, I]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

// Termination returns the terminal kind seen, or Running.
func (r *Recorder[S, I]) Termination() automaton.Termination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.term
}

// TerminalCount returns how many terminal signals were delivered.
func (r *Recorder[S, I]) TerminalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminals
}

// WaitForReplies fails t unless at least n replies arrive within DefaultWait.
func (r *Recorder[S, I]) WaitForReplies(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Len() >= n },
		DefaultWait, time.Millisecond, "expected at least %d replies", n)
}

// WaitForTermination fails t unless a terminal signal arrives within DefaultWait.
func (r *Recorder[S, I]) WaitForTermination(t *testing.T) automaton.Termination {
	t.Helper()
	require.Eventually(t, func() bool { return r.TerminalCount() > 0 },
		DefaultWait, time.Millisecond, "expected a terminal signal")
	return r.Termination()
}
