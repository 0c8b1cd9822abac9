package testutil

// FixedRunID returns the same run ID on every call.
//
// The conformance harness uses it so that the same scenario produces a
// byte-identical journal and golden trace on every run, however many times
// it is executed.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID. Implements automaton.IDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
