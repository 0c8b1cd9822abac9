package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		if event.Accepted {
			fmt.Fprintf(&buf, "  [%d] %s: %s -> %s\n", event.Seq, event.Input, event.From, event.To)
		} else {
			fmt.Fprintf(&buf, "  [%d] %s: %s (rejected)\n", event.Seq, event.Input, event.From)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertTermination:
		return assertTermination(result, a)
	case AssertReplyCount:
		return assertReplyCount(result, a)
	case AssertReplyOrder:
		return assertReplyOrder(result.Trace, a)
	case AssertRejected:
		return assertRejected(result.Trace, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertFinalState(result *Result, a Assertion) error {
	if result.FinalState == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: a.State,
		Actual:   result.FinalState,
		Trace:    result.Trace,
	}
}

func assertTermination(result *Result, a Assertion) error {
	if result.Termination == a.Termination {
		return nil
	}
	return &AssertionError{
		Type:     AssertTermination,
		Expected: a.Termination,
		Actual:   result.Termination,
		Trace:    result.Trace,
	}
}

func assertReplyCount(result *Result, a Assertion) error {
	if len(result.Trace) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertReplyCount,
		Expected: fmt.Sprintf("%d replies", *a.Count),
		Actual:   fmt.Sprintf("%d replies", len(result.Trace)),
		Trace:    result.Trace,
	}
}

// assertReplyOrder checks that the inputs appear in the given relative
// order. Intervening replies are allowed, and each expected input is
// matched after the previous match.
func assertReplyOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Inputs) && event.Input == a.Inputs[next] {
			next++
		}
	}
	if next == len(a.Inputs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertReplyOrder,
		Expected: strings.Join(a.Inputs, " -> "),
		Actual:   fmt.Sprintf("%q not found after %s", a.Inputs[next], strings.Join(a.Inputs[:next], " -> ")),
		Trace:    trace,
	}
}

func assertRejected(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Input == a.Input && !event.Accepted {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertRejected,
		Expected: fmt.Sprintf("input %s rejected", a.Input),
		Actual:   "no rejected reply for it",
		Trace:    trace,
	}
}

// assertTraceContains looks for a reply to the input, optionally narrowed
// to its from and to states. A to state implies the reply was accepted.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Input != a.Input {
			continue
		}
		if a.From != "" && event.From != a.From {
			continue
		}
		if a.To != "" && (!event.Accepted || event.To != a.To) {
			continue
		}
		return nil
	}

	expected := "input " + a.Input
	if a.From != "" {
		expected += " from " + a.From
	}
	if a.To != "" {
		expected += " to " + a.To
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}
