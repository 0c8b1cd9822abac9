package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/automaton"
)

func TestRecorder_CapturesRepliesAndTerminal(t *testing.T) {
	pipe := automaton.NewPipe[int]()
	add := automaton.TransitionFunc(automaton.Any[int](), automaton.Any[int](), func(n int) int { return n + 1 })
	a := automaton.New(0, pipe, add)
	defer a.Close()

	rec := Record(a)
	pipe.Send(1)
	pipe.Send(2)
	pipe.Complete()

	assert.Equal(t, automaton.Completed, rec.WaitForTermination(t))
	assert.Equal(t, []int{1, 2}, rec.Inputs())
	assert.Equal(t, []int{1, 2}, rec.ObservedStates())
	assert.Equal(t, 1, rec.TerminalCount())
}
