// Package harness runs conformance scenarios against transition tables.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: login
//	description: "Login succeeds and the session ends cleanly"
//	machine: ../tables/auth.yaml
//	run_id: login-1
//	steps:
//	  - send: Login
//	  - await: {state: LoggedIn}
//	  - send: [Logout]
//	  - complete: true
//	  - await: {terminated: completed}
//	assertions:
//	  - type: final_state
//	    state: LoggedOut
//	  - type: reply_order
//	    inputs: [Login, LoginOK, Logout, LogoutOK]
//
// The machine path is relative to the scenario file. Steps run in order;
// await blocks until its condition holds or the scenario timeout elapses.
// A scenario that has not terminated after its last step is completed and
// drained, so assertions always see a finished run.
//
// # Assertion Types
//
//   - final_state: the state after termination
//   - termination: "completed" or "interrupted"
//   - reply_count: the number of replies
//   - reply_order: inputs appear in this relative order
//   - rejected: an input was rejected at least once
//   - trace_contains: a reply with the given input and, optionally, states
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID, a fresh logical clock and a
// private in-memory journal, and its trace is read back from that journal.
// Scenarios whose effects race with external inputs should await between
// steps so the trace, and its golden file, is stable.
package harness
