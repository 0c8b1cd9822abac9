package automaton_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/automaton"
)

func TestCancel_ByIDAcrossQueues(t *testing.T) {
	gx := newGate("x-out")
	gy := newGate("y-out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a":      automaton.NewEffect[int](gx.Producer()).WithID("x").InQueue(automaton.EffectQueue{Name: "one"}),
		"b":      automaton.NewEffect[int](gy.Producer()).WithID("y").InQueue(automaton.EffectQueue{Name: "two", Strategy: automaton.Latest}),
		"cancel": automaton.Cancel[int, input]("x"),
	})

	pipe.Send("a")
	pipe.Send("b")
	gx.WaitStarted(t, 1)
	gy.WaitStarted(t, 1)

	pipe.Send("cancel")
	gx.WaitDisposed(t)

	gy.Open()
	waitForInput(t, rec, "y-out")
	assert.False(t, gy.Disposed(), "non-matching effect is unaffected")
	assert.NotContains(t, rec.Inputs(), "x-out")
}

func TestCancel_NoMatchIsNoop(t *testing.T) {
	g := newGate("out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a":      automaton.NewEffect[int](g.Producer()).WithID("job"),
		"cancel": automaton.Cancel[int, input]("other"),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)
	pipe.Send("cancel")
	rec.WaitForReplies(t, 2)
	settle()
	assert.False(t, g.Disposed())

	g.Open()
	waitForInput(t, rec, "out")
}

func TestCancel_IsIdempotent(t *testing.T) {
	g := newGate("out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a":      automaton.NewEffect[int](g.Producer()).WithID("job"),
		"cancel": automaton.Cancel[int, input]("job"),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)
	pipe.Send("cancel")
	pipe.Send("cancel")
	pipe.Send("after")
	waitForInput(t, rec, "after")

	assert.True(t, g.Disposed())
	assert.Equal(t, []input{"a", "cancel", "cancel", "after"}, rec.Inputs())
}

func TestCancel_WherePredicate(t *testing.T) {
	g1 := newGate("j1-out")
	g2 := newGate("j2-out")
	keep := newGate("keep-out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"j1":     automaton.NewEffect[int](g1.Producer()).WithID("job-1"),
		"j2":     automaton.NewEffect[int](g2.Producer()).WithID("job-2"),
		"k":      automaton.NewEffect[int](keep.Producer()).WithID("keep"),
		"cancel": automaton.CancelWhere[int, input](func(id string) bool { return strings.HasPrefix(id, "job-") }),
	})

	for _, in := range []input{"j1", "j2", "k"} {
		pipe.Send(in)
	}
	g1.WaitStarted(t, 1)
	g2.WaitStarted(t, 1)
	keep.WaitStarted(t, 1)

	pipe.Send("cancel")
	g1.WaitDisposed(t)
	g2.WaitDisposed(t)

	keep.Open()
	waitForInput(t, rec, "keep-out")
	assert.False(t, keep.Disposed())
}

func TestCancel_PendingConcatNeverStarts(t *testing.T) {
	q := automaton.EffectQueue{Name: "serial", Strategy: automaton.Concat}
	ga := newGate("a-out")
	gb := newGate("b-out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a":      automaton.NewEffect[int](ga.Producer()).WithID("a").InQueue(q),
		"b":      automaton.NewEffect[int](gb.Producer()).WithID("b").InQueue(q),
		"cancel": automaton.Cancel[int, input]("b"),
	})

	pipe.Send("a")
	pipe.Send("b")
	ga.WaitStarted(t, 1)
	pipe.Send("cancel")
	rec.WaitForReplies(t, 3)

	ga.Open()
	waitForInput(t, rec, "a-out")
	settle()
	assert.Equal(t, 0, gb.Starts())
}

func TestCancel_RunningConcatStartsNext(t *testing.T) {
	q := automaton.EffectQueue{Name: "serial", Strategy: automaton.Concat}
	ga := newGate("a-out")
	gb := newGate("b-out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a":      automaton.NewEffect[int](ga.Producer()).WithID("a").InQueue(q),
		"b":      automaton.NewEffect[int](gb.Producer()).WithID("b").InQueue(q),
		"cancel": automaton.Cancel[int, input]("a"),
	})

	pipe.Send("a")
	pipe.Send("b")
	ga.WaitStarted(t, 1)
	pipe.Send("cancel")

	ga.WaitDisposed(t)
	gb.WaitStarted(t, 1)
	gb.Open()
	waitForInput(t, rec, "b-out")
}

func TestCancel_BatchCancelThenRestart(t *testing.T) {
	g := newGate("out")
	restart := automaton.Batch(
		automaton.Cancel[int, input]("poll"),
		automaton.NewEffect[int](g.Producer()).WithID("poll"),
	)
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"poll": restart,
	})

	pipe.Send("poll")
	g.WaitStarted(t, 1)
	pipe.Send("poll")
	g.WaitStarted(t, 2)
	g.WaitDisposed(t)

	g.Open()
	waitForInput(t, rec, "out")
	assert.Equal(t, 2, g.Starts())
}

func TestUntil_DisposesOnRejectedInput(t *testing.T) {
	g := newGate("out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](g.Producer()).Until(func(in input, _ int) bool { return in == "stop" }),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)
	pipe.Send("stop")
	g.WaitDisposed(t)

	replies := rec.Replies()
	assert.False(t, replies[1].OK, "stop itself is rejected")
	g.Open()
	settle()
	assert.NotContains(t, rec.Inputs(), "out")
}

func TestUntil_EvaluatesState(t *testing.T) {
	g := newGate("out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](g.Producer()).Until(func(_ input, n int) bool { return n >= 3 }),
	})

	// States evaluated: a@0, x@1, y@2 keep the effect; z@3 disposes it.
	for _, in := range []input{"a", "x", "y"} {
		pipe.Send(in)
	}
	rec.WaitForReplies(t, 3)
	settle()
	assert.False(t, g.Disposed())

	pipe.Send("z")
	g.WaitDisposed(t)
}

func TestUntil_IgnoresTriggeringInput(t *testing.T) {
	g := newGate("out")
	_, pipe, rec := newTableAutomaton(t, map[input]*automaton.Effect[int, input]{
		"a": automaton.NewEffect[int](g.Producer()).Until(func(input, int) bool { return true }),
	})

	pipe.Send("a")
	g.WaitStarted(t, 1)
	rec.WaitForReplies(t, 1)
	settle()
	assert.False(t, g.Disposed(), "only subsequent inputs are checked")

	pipe.Send("next")
	g.WaitDisposed(t)
}
