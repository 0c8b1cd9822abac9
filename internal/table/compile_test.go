package table

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/automaton"
	"github.com/roach88/automaton/internal/testutil"
)

func quiet() automaton.Option {
	return automaton.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompile_RejectsInvalid(t *testing.T) {
	def, err := LoadFile("testdata/invalid.yaml")
	require.NoError(t, err)

	_, err = Compile(def)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.NotEmpty(t, verrs)
}

func TestCompile_Mapping(t *testing.T) {
	m, err := LoadMachine("testdata/auth.yaml")
	require.NoError(t, err)
	mapping := m.Mapping()

	to, eff, ok := mapping("LoggedOut", "Login")
	assert.True(t, ok)
	assert.Equal(t, "LoggingIn", to)
	require.NotNil(t, eff)
	assert.Equal(t, "login", eff.ID())
	assert.Equal(t, automaton.EffectQueue{Name: "request", Strategy: automaton.Latest}, eff.Queue())

	_, eff, ok = mapping("LoggedIn", "ForceLogout")
	assert.True(t, ok)
	require.NotNil(t, eff)
	assert.True(t, eff.IsCancel())

	_, _, ok = mapping("LoggedOut", "Logout")
	assert.False(t, ok)

	assert.True(t, m.HasInput("Login"))
	assert.False(t, m.HasInput("Jump"))
}

func TestCompile_HashIgnoresFormatting(t *testing.T) {
	a := validDef()
	b := validDef()
	b.Queues[0].Strategy = "LATEST"

	ma, err := Compile(a)
	require.NoError(t, err)
	mb, err := Compile(b)
	require.NoError(t, err)
	assert.Equal(t, ma.Hash(), mb.Hash())

	c := validDef()
	c.Transitions[1].To = "B"
	mc, err := Compile(c)
	require.NoError(t, err)
	assert.NotEqual(t, ma.Hash(), mc.Hash())
}

func TestMachine_RunsLoginScenario(t *testing.T) {
	m, err := LoadMachine("testdata/auth.yaml")
	require.NoError(t, err)

	pipe := automaton.NewPipe[string]()
	a := m.New(pipe, quiet())
	t.Cleanup(func() { a.Close() })
	rec := testutil.Record(a)

	pipe.Send("Login")
	rec.WaitForReplies(t, 2)
	assert.Equal(t, "LoggedIn", a.State())

	pipe.Send("Logout")
	pipe.Complete()
	assert.Equal(t, automaton.Completed, rec.WaitForTermination(t))
	assert.Equal(t, []string{"Login", "LoginOK", "Logout", "LogoutOK"}, rec.Inputs())
	assert.Equal(t, "LoggedOut", a.State())
}

func TestMachine_ForceLogoutCancelsLogin(t *testing.T) {
	m, err := LoadMachine("testdata/auth.cue")
	require.NoError(t, err)

	pipe := automaton.NewPipe[string]()
	a := m.New(pipe, quiet())
	t.Cleanup(func() { a.Close() })
	rec := testutil.Record(a)

	pipe.Send("Login")
	pipe.Send("ForceLogout")
	rec.WaitForReplies(t, 2)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []string{"Login", "ForceLogout"}, rec.Inputs(), "LoginOK never arrives")
	assert.Equal(t, "LoggingOut", a.State())
}

func TestMachine_InitialEffectAndInterval(t *testing.T) {
	m, err := LoadMachine("testdata/counter.yaml")
	require.NoError(t, err)

	pipe := automaton.NewPipe[string]()
	pipe.Complete()
	a := m.New(pipe, quiet())
	t.Cleanup(func() { a.Close() })
	rec := testutil.Record(a)

	assert.Equal(t, automaton.Completed, rec.WaitForTermination(t))
	assert.Equal(t, []string{"start", "tick", "tick", "tick"}, rec.Inputs())
	assert.Equal(t, "ticking", a.State())
}

func TestMachine_UntilStopsInterval(t *testing.T) {
	def, err := LoadFile("testdata/counter.yaml")
	require.NoError(t, err)
	def.Transitions[0].Effect.Count = 0
	m, err := Compile(def)
	require.NoError(t, err)

	pipe := automaton.NewPipe[string]()
	a := m.New(pipe, quiet())
	t.Cleanup(func() { a.Close() })
	rec := testutil.Record(a)

	rec.WaitForReplies(t, 3)
	pipe.Send("stop")
	pipe.Complete()

	assert.Equal(t, automaton.Completed, rec.WaitForTermination(t), "the unbounded ticker is disposed by until")
	assert.Equal(t, "done", a.State())
}
