// Package table compiles declarative transition tables into string-typed
// automata.
//
// A table names its states and inputs, declares effect queues, and lists
// transitions in priority order. Each transition may attach an effect that
// emits inputs (optionally delayed or repeated) or cancels effects by id:
//
//	name: auth
//	initial: LoggedOut
//	states: [LoggedOut, LoggingIn, LoggedIn, LoggingOut]
//	inputs: [Login, LoginOK, Logout, LogoutOK, ForceLogout]
//	queues:
//	  - {name: request, strategy: latest}
//	transitions:
//	  - on: Login
//	    from: LoggedOut
//	    to: LoggingIn
//	    effect: {emit: [LoginOK], after: 50ms, queue: request, id: login}
//	  - on: ForceLogout
//	    from: [LoggingIn, LoggedIn]
//	    to: LoggingOut
//	    effect: {cancel: login}
//
// on, from and until accept a single name, a list, or "*" for any.
//
// Tables are written in YAML or CUE. CUE tables are unified with the
// embedded #Machine schema before decoding, so type errors carry CUE
// source positions.
package table
