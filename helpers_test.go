package automaton_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/automaton"
	"github.com/roach88/automaton/internal/testutil"
)

type authState string

type authInput string

const (
	LoggedOut  authState = "LoggedOut"
	LoggingIn  authState = "LoggingIn"
	LoggedIn   authState = "LoggedIn"
	LoggingOut authState = "LoggingOut"
)

const (
	Login       authInput = "Login"
	LoginOK     authInput = "LoginOK"
	Logout      authInput = "Logout"
	LogoutOK    authInput = "LogoutOK"
	ForceLogout authInput = "ForceLogout"
)

// quiet keeps test output free of automaton logs.
func quiet() automaton.Option {
	return automaton.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func authMapping(login, logout automaton.Producer[authInput]) automaton.EffectMapping[authState, authInput] {
	loginEffect := automaton.NewEffect[authState](login).WithID("login")
	logoutEffect := automaton.NewEffect[authState](logout).WithID("logout")

	return automaton.ReduceEffects(
		automaton.WithEffect(automaton.Transition(automaton.Eq(Login), automaton.Eq(LoggedOut), LoggingIn), loginEffect),
		automaton.Lift(automaton.Transition(automaton.Eq(LoginOK), automaton.Eq(LoggingIn), LoggedIn)),
		automaton.WithEffect(automaton.Transition(automaton.Eq(Logout), automaton.Eq(LoggedIn), LoggingOut), logoutEffect),
		automaton.WithEffect(automaton.Transition(automaton.Eq(ForceLogout), automaton.OneOf(LoggingIn, LoggedIn), LoggingOut), logoutEffect),
		automaton.Lift(automaton.Transition(automaton.Eq(LogoutOK), automaton.Eq(LoggingOut), LoggedOut)),
	)
}

// gate is a producer the test releases by hand. It records how often it
// was started and whether it was disposed before finishing.
type gate[I any] struct {
	outputs     []I
	stubborn    bool
	starts      atomic.Int32
	open        chan struct{}
	openOnce    sync.Once
	finished    chan struct{}
	disposed    chan struct{}
	doneOnce    sync.Once
	disposeOnce sync.Once
}

func newGate[I any](outputs ...I) *gate[I] {
	return &gate[I]{
		outputs:  outputs,
		open:     make(chan struct{}),
		finished: make(chan struct{}),
		disposed: make(chan struct{}),
	}
}

// newStubbornGate returns a gate whose producer ignores disposal and emits
// anyway once opened.
func newStubbornGate[I any](outputs ...I) *gate[I] {
	g := newGate(outputs...)
	g.stubborn = true
	return g
}

func (g *gate[I]) Producer() automaton.Producer[I] {
	return func(ctx context.Context, emit func(I)) {
		g.starts.Add(1)
		go func() {
			select {
			case <-ctx.Done():
				select {
				case <-g.finished:
				default:
					g.disposeOnce.Do(func() { close(g.disposed) })
				}
			case <-g.finished:
			}
		}()

		if g.stubborn {
			<-g.open
		} else {
			select {
			case <-ctx.Done():
				return
			case <-g.open:
			}
		}
		for _, v := range g.outputs {
			emit(v)
		}
		g.doneOnce.Do(func() { close(g.finished) })
	}
}

func (g *gate[I]) Open() {
	g.openOnce.Do(func() { close(g.open) })
}

func (g *gate[I]) Starts() int {
	return int(g.starts.Load())
}

func (g *gate[I]) Disposed() bool {
	select {
	case <-g.disposed:
		return true
	default:
		return false
	}
}

func (g *gate[I]) WaitStarted(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.Starts() >= n },
		testutil.DefaultWait, time.Millisecond, "producer not started")
}

func (g *gate[I]) WaitDisposed(t *testing.T) {
	t.Helper()
	require.Eventually(t, g.Disposed, testutil.DefaultWait, time.Millisecond, "producer not disposed")
}

type input = string

// effectTable accepts every input except "stop", counting accepted inputs
// in the state, and yields the effect registered for the input, if any.
func effectTable(effects map[input]*automaton.Effect[int, input]) automaton.EffectMapping[int, input] {
	return func(n int, in input) (int, *automaton.Effect[int, input], bool) {
		if in == "stop" {
			return n, nil, false
		}
		return n + 1, effects[in], true
	}
}

func newTableAutomaton(t *testing.T, effects map[input]*automaton.Effect[int, input]) (*automaton.Automaton[int, input], *automaton.Pipe[input], *testutil.Recorder[int, input]) {
	t.Helper()
	pipe := automaton.NewPipe[input]()
	a := automaton.NewWithEffects(0, pipe, effectTable(effects), nil, quiet())
	t.Cleanup(func() { a.Close() })
	return a, pipe, testutil.Record(a)
}

func waitForInput[S any](t *testing.T, rec *testutil.Recorder[S, input], want input) {
	t.Helper()
	require.Eventually(t, func() bool { return slices.Contains(rec.Inputs(), want) },
		testutil.DefaultWait, time.Millisecond, "input %q never observed", want)
}

// settle gives goroutines a moment before asserting something did not happen.
func settle() {
	time.Sleep(30 * time.Millisecond)
}
