package harness

// TraceEvent is one journaled reply.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Input    string `json:"input"`
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Accepted bool   `json:"accepted"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when no step or assertion failed.
	Pass bool `json:"pass"`

	RunID       string `json:"run_id"`
	Machine     string `json:"machine"`
	FinalState  string `json:"final_state"`
	Termination string `json:"termination"`

	// Trace is every reply in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Inputs returns the input of every trace event in order.
func (r *Result) Inputs() []string {
	out := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		out[i] = e.Input
	}
	return out
}
