package table

import (
	"fmt"
	"strings"

	"github.com/roach88/automaton"
)

// Validation error codes (E201-E212).
const (
	ErrMissingName         = "E201" // table name is required
	ErrInvalidInitial      = "E202" // initial state missing or undeclared
	ErrNoStates            = "E203" // at least one state required
	ErrNoInputs            = "E204" // at least one input required
	ErrDuplicateName       = "E205" // duplicate state, input or queue name
	ErrUnknownState        = "E206" // reference to an undeclared state
	ErrUnknownInput        = "E207" // reference to an undeclared input
	ErrInvalidQueue        = "E208" // unnamed queue or unknown strategy
	ErrUndeclaredQueue     = "E209" // effect routed to an undeclared queue
	ErrInvalidEffect       = "E210" // effect is neither emit nor cancel, or both
	ErrMalformedTransition = "E211" // missing on/from/to or misused wildcard
	ErrShadowedTransition  = "E212" // earlier rows already match every pair
)

// ValidationError is one problem found in a table.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by Compile for an invalid table.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(msgs, "; "))
}

// Validate checks def and returns every problem found.
func Validate(def *Definition) []ValidationError {
	v := validator{def: def}
	v.header()
	v.queueDefs()
	if def.InitialEffect != nil {
		v.effect("initial_effect", def.InitialEffect, 0)
	}
	for i := range def.Transitions {
		v.transition(i)
	}
	v.shadowing()
	return v.errs
}

type validator struct {
	def    *Definition
	states map[string]bool
	inputs map[string]bool
	queues map[string]bool
	errs   []ValidationError
}

func (v *validator) add(code, field string, line int, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    line,
	})
}

func (v *validator) header() {
	def := v.def
	if strings.TrimSpace(def.Name) == "" {
		v.add(ErrMissingName, "name", 0, "name is required")
	}
	if len(def.States) == 0 {
		v.add(ErrNoStates, "states", 0, "at least one state is required")
	}
	if len(def.Inputs) == 0 {
		v.add(ErrNoInputs, "inputs", 0, "at least one input is required")
	}

	v.states = v.nameSet("states", def.States)
	v.inputs = v.nameSet("inputs", def.Inputs)

	switch {
	case def.Initial == "":
		v.add(ErrInvalidInitial, "initial", 0, "initial state is required")
	case len(def.States) > 0 && !v.states[def.Initial]:
		v.add(ErrInvalidInitial, "initial", 0, "initial state %q is not declared in states", def.Initial)
	}
}

func (v *validator) nameSet(field string, names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for i, n := range names {
		f := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case strings.TrimSpace(n) == "":
			v.add(ErrMalformedTransition, f, 0, "name must be non-empty")
		case n == Wildcard:
			v.add(ErrMalformedTransition, f, 0, "%q is reserved", Wildcard)
		case set[n]:
			v.add(ErrDuplicateName, f, 0, "duplicate name %q", n)
		}
		set[n] = true
	}
	return set
}

func (v *validator) queueDefs() {
	v.queues = make(map[string]bool, len(v.def.Queues))
	for i, q := range v.def.Queues {
		f := fmt.Sprintf("queues[%d]", i)
		if q.Name == "" {
			v.add(ErrInvalidQueue, f+".name", 0, "queue name is required")
			continue
		}
		if v.queues[q.Name] {
			v.add(ErrDuplicateName, f+".name", 0, "duplicate queue %q", q.Name)
		}
		v.queues[q.Name] = true
		if _, err := automaton.ParseFlattenStrategy(q.Strategy); err != nil {
			v.add(ErrInvalidQueue, f+".strategy", 0, "%v", err)
		}
	}
}

func (v *validator) transition(i int) {
	t := v.def.Transitions[i]
	f := fmt.Sprintf("transitions[%d]", i)

	v.names(f+".on", t.On, v.inputs, ErrUnknownInput, "input", t.Line)
	v.names(f+".from", t.From, v.states, ErrUnknownState, "state", t.Line)

	switch {
	case t.To == "":
		v.add(ErrMalformedTransition, f+".to", t.Line, "target state is required")
	case !v.states[t.To]:
		v.add(ErrUnknownState, f+".to", t.Line, "state %q is not declared", t.To)
	}

	if t.Effect != nil {
		v.effect(f+".effect", t.Effect, t.Line)
	}
}

func (v *validator) names(field string, names Names, known map[string]bool, code, kind string, line int) {
	if len(names) == 0 {
		v.add(ErrMalformedTransition, field, line, "at least one %s is required", kind)
		return
	}
	if names.IsWildcard() {
		if len(names) > 1 {
			v.add(ErrMalformedTransition, field, line, "%q cannot be combined with other names", Wildcard)
		}
		return
	}
	for _, n := range names {
		if !known[n] {
			v.add(code, field, line, "%s %q is not declared", kind, n)
		}
	}
}

func (v *validator) effect(field string, e *EffectDef, line int) {
	emits := len(e.Emit) > 0
	cancels := e.Cancel != ""

	switch {
	case emits && cancels:
		v.add(ErrInvalidEffect, field, line, "effect cannot both emit and cancel")
	case !emits && !cancels:
		v.add(ErrInvalidEffect, field, line, "effect must emit inputs or cancel an id")
	}

	if cancels && (e.After != 0 || e.Interval != 0 || e.Count != 0 || e.Queue != "" || e.ID != "" || len(e.Until) > 0) {
		v.add(ErrInvalidEffect, field, line, "a cancel effect takes no other fields")
	}
	if e.After < 0 || e.Interval < 0 {
		v.add(ErrInvalidEffect, field, line, "durations must not be negative")
	}
	if e.Count < 0 {
		v.add(ErrInvalidEffect, field+".count", line, "count must not be negative")
	}
	if e.Count > 0 && e.Interval == 0 {
		v.add(ErrInvalidEffect, field+".count", line, "count requires interval")
	}

	for _, in := range e.Emit {
		if !v.inputs[in] {
			v.add(ErrUnknownInput, field+".emit", line, "input %q is not declared", in)
		}
	}
	if len(e.Until) > 0 {
		v.names(field+".until", e.Until, v.inputs, ErrUnknownInput, "input", line)
	}
	if e.Queue != "" && !v.queues[e.Queue] {
		v.add(ErrUndeclaredQueue, field+".queue", line, "queue %q is not declared", e.Queue)
	}
}

// shadowing reports rows that can never fire because earlier rows
// accept every (input, state) pair they cover.
func (v *validator) shadowing() {
	covered := make(map[[2]string]bool)
	for i, t := range v.def.Transitions {
		ons := v.expand(t.On, v.def.Inputs)
		froms := v.expand(t.From, v.def.States)
		if len(ons) == 0 || len(froms) == 0 {
			continue
		}

		shadowed := true
		for _, on := range ons {
			for _, from := range froms {
				pair := [2]string{on, from}
				if !covered[pair] {
					shadowed = false
					covered[pair] = true
				}
			}
		}
		if shadowed {
			v.add(ErrShadowedTransition, fmt.Sprintf("transitions[%d]", i), t.Line,
				"earlier transitions already match every input and state of this row")
		}
	}
}

func (v *validator) expand(names Names, declared []string) []string {
	if names.IsWildcard() {
		return declared
	}
	return names
}
