package journal

// Run is one automaton run.
type Run struct {
	ID           string `json:"id"`
	Machine      string `json:"machine"`
	MachineHash  string `json:"machine_hash,omitempty"`
	InitialState string `json:"initial_state"`
	FinalState   string `json:"final_state,omitempty"`
	Termination  string `json:"termination"`
	Replies      int    `json:"replies"`
}

// Reply is one journaled reply. ToState is empty for rejected inputs.
type Reply struct {
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"`
	Input     string `json:"input"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state,omitempty"`
	Accepted  bool   `json:"accepted"`
}
