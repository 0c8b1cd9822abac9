package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Input: "Login", From: "LoggedOut", To: "LoggingIn", Accepted: true},
		{Seq: 2, Input: "Logout", From: "LoggingIn", Accepted: false},
		{Seq: 3, Input: "LoginOK", From: "LoggingIn", To: "LoggedIn", Accepted: true},
	}
}

func intPtr(n int) *int { return &n }

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(loginTrace(), Assertion{Type: AssertTraceContains, Input: "LoginOK", From: "LoggingIn", To: "LoggedIn"})
	assert.NoError(t, err)
}

func TestAssertTraceContains_InputOnly(t *testing.T) {
	err := assertTraceContains(loginTrace(), Assertion{Type: AssertTraceContains, Input: "Logout"})
	assert.NoError(t, err)
}

func TestAssertTraceContains_RejectedDoesNotMatchTo(t *testing.T) {
	err := assertTraceContains(loginTrace(), Assertion{Type: AssertTraceContains, Input: "Logout", To: "LoggingOut"})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Equal(t, "input Logout to LoggingOut", assertErr.Expected)
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_WrongFrom(t *testing.T) {
	err := assertTraceContains(loginTrace(), Assertion{Type: AssertTraceContains, Input: "Login", From: "LoggedIn"})
	assert.Error(t, err)
}

func TestAssertReplyOrder(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
		ok     bool
	}{
		{"exact", []string{"Login", "Logout", "LoginOK"}, true},
		{"gaps allowed", []string{"Login", "LoginOK"}, true},
		{"wrong order", []string{"LoginOK", "Login"}, false},
		{"missing", []string{"Login", "LogoutOK"}, false},
		{"repeat needs two", []string{"Login", "Login"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertReplyOrder(loginTrace(), Assertion{Type: AssertReplyOrder, Inputs: tt.inputs})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertReplyOrder_ReportsMissingInput(t *testing.T) {
	err := assertReplyOrder(loginTrace(), Assertion{Type: AssertReplyOrder, Inputs: []string{"Login", "LogoutOK"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"LogoutOK" not found after Login`)
}

func TestAssertRejected(t *testing.T) {
	assert.NoError(t, assertRejected(loginTrace(), Assertion{Type: AssertRejected, Input: "Logout"}))
	assert.Error(t, assertRejected(loginTrace(), Assertion{Type: AssertRejected, Input: "Login"}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = loginTrace()
	result.FinalState = "LoggedIn"
	result.Termination = "completed"

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, State: "LoggedIn"},
		{Type: AssertTermination, Termination: "completed"},
		{Type: AssertReplyCount, Count: intPtr(3)},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, State: "LoggedOut"},
		{Type: AssertTermination, Termination: "interrupted"},
		{Type: AssertReplyCount, Count: intPtr(2)},
		{Type: "bogus"},
	})
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "assertion 0:")
	assert.Contains(t, errs[0], "Expected: LoggedOut")
	assert.Contains(t, errs[2], "Actual: 3 replies")
	assert.Contains(t, errs[3], "unknown assertion type: bogus")
}

func TestAssertionError_FormatsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalState,
		Expected: "a",
		Actual:   "b",
		Trace:    loginTrace(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: final_state")
	assert.Contains(t, msg, "[1] Login: LoggedOut -> LoggingIn")
	assert.Contains(t, msg, "[2] Logout: LoggingIn (rejected)")
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("boom")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"boom"}, result.Errors)
}
