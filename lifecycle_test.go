package automaton_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/automaton"
	"github.com/roach88/automaton/internal/testutil"
)

func TestLifecycle_CloseDisposesEffects(t *testing.T) {
	g := newStubbornGate("late")
	a, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](g.Producer()),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)

	require.NoError(t, a.Close())
	assert.True(t, g.Disposed())
	assert.Equal(t, automaton.Interrupted, a.Termination())
	assert.Equal(t, automaton.Interrupted, rec.Termination())

	g.Open()
	settle()
	assert.Equal(t, []input{"a"}, rec.Inputs())
}

func TestLifecycle_CloseIgnoresLaterInput(t *testing.T) {
	a, pipe, rec := newTableAutomaton(t, nil)

	pipe.Send("a")
	rec.WaitForReplies(t, 1)
	require.NoError(t, a.Close())

	pipe.Send("b")
	settle()
	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, 1, a.State())
}

func TestLifecycle_InterruptDisposesEffects(t *testing.T) {
	g := newGate("out")
	a, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](g.Producer()),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)
	pipe.Interrupt()

	assert.Equal(t, automaton.Interrupted, rec.WaitForTermination(t))
	<-a.Done()
	g.WaitDisposed(t)
}

func TestLifecycle_InterruptDeliversQueuedInputsFirst(t *testing.T) {
	_, pipe, rec := newTableAutomaton(t, nil)

	pipe.Send("a")
	pipe.Send("b")
	pipe.Interrupt()

	assert.Equal(t, automaton.Interrupted, rec.WaitForTermination(t))
	assert.Equal(t, []input{"a", "b"}, rec.Inputs())
}

func TestLifecycle_CompletionWaitsForEffects(t *testing.T) {
	g := newGate("out")
	a, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](g.Producer()),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)
	pipe.Complete()
	settle()
	assert.Equal(t, automaton.Running, a.Termination(), "effect still running")

	g.Open()
	assert.Equal(t, automaton.Completed, rec.WaitForTermination(t))
	assert.Equal(t, []input{"a", "out"}, rec.Inputs())
	assert.False(t, g.Disposed())
}

func TestLifecycle_ChainedEffectsRunBeforeCompletion(t *testing.T) {
	effects := map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](automaton.Delay(5*time.Millisecond, automaton.Just[input]("b"))),
		"b": automaton.NewEffect[int](automaton.Just[input]("c")),
	}
	pipe := automaton.NewPipe[input]()
	a := automaton.NewWithEffects(0, pipe, effectTable(effects), nil, quiet())
	t.Cleanup(func() { a.Close() })
	rec := testutil.Record(a)

	pipe.Send("a")
	pipe.Complete()

	assert.Equal(t, automaton.Completed, rec.WaitForTermination(t))
	assert.Equal(t, []input{"a", "b", "c"}, rec.Inputs())
	assert.Equal(t, 3, a.State())
}

func TestLifecycle_NilSourceCompletes(t *testing.T) {
	a := automaton.New[int, input](0, nil, nil, quiet())
	select {
	case <-a.Done():
	case <-time.After(testutil.DefaultWait):
		t.Fatal("automaton did not terminate")
	}
	assert.Equal(t, automaton.Completed, a.Termination())
}

func TestLifecycle_TerminalExactlyOnce(t *testing.T) {
	a, pipe, rec := newTableAutomaton(t, nil)

	pipe.Complete()
	rec.WaitForTermination(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	pipe.Interrupt()
	settle()

	assert.Equal(t, 1, rec.TerminalCount())
	assert.Equal(t, automaton.Completed, a.Termination())
}

func TestLifecycle_ObserveAfterTermination(t *testing.T) {
	a, pipe, _ := newTableAutomaton(t, nil)
	pipe.Complete()
	<-a.Done()

	var got automaton.Termination
	unobserve := a.Observe(automaton.Observer[int, input]{
		OnTerminate: func(term automaton.Termination) { got = term },
	})
	unobserve()
	assert.Equal(t, automaton.Completed, got)
}

func TestLifecycle_UnobserveStopsDelivery(t *testing.T) {
	a, pipe, rec := newTableAutomaton(t, nil)

	var seen int
	unobserve := a.Observe(automaton.Observer[int, input]{
		OnReply: func(automaton.Reply[int, input]) { seen++ },
	})
	pipe.Send("a")
	rec.WaitForReplies(t, 1)
	unobserve()
	pipe.Send("b")
	rec.WaitForReplies(t, 2)

	require.NoError(t, a.Close())
	assert.Equal(t, 1, seen)
}

func TestLifecycle_ChannelSourceInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan input)
	a := automaton.NewWithEffects(0, automaton.FromChannel(ctx, ch), effectTable(nil), nil, quiet())
	t.Cleanup(func() { a.Close() })
	rec := testutil.Record(a)

	ch <- "a"
	rec.WaitForReplies(t, 1)
	cancel()

	assert.Equal(t, automaton.Interrupted, rec.WaitForTermination(t))
}

func TestLifecycle_SourceErrorInterrupts(t *testing.T) {
	boom := errors.New("boom")
	src := automaton.SourceFunc[input](func(_ context.Context, emit func(input)) error {
		emit("a")
		return boom
	})
	a := automaton.NewWithEffects(0, src, effectTable(nil), nil, quiet())
	t.Cleanup(func() { a.Close() })
	<-a.Done()

	assert.Equal(t, automaton.Interrupted, a.Termination())
	assert.Equal(t, 1, a.State())
}
