// Package automaton implements a deterministic state machine with managed
// side effects.
//
// An Automaton holds one state value. Every input, whether it comes from the
// external Source or from a running effect, is evaluated by a mapping
// against the current state and produces exactly one Reply. Accepted inputs
// move the automaton to a new state and may yield an Effect: a cold Producer
// whose outputs are fed back as inputs.
//
// ARCHITECTURE:
//
// Single transition loop:
// External inputs and effect outputs are merged into one unbounded FIFO that
// a single goroutine consumes. That goroutine commits state, publishes
// replies, routes effects and disposes them. Producers run on their own
// goroutines and only ever post events to the FIFO.
//
// Effect queues:
// Every effect is routed to a named EffectQueue whose FlattenStrategy
// decides concurrency. Merge runs producers side by side, Latest keeps only
// the newest one running, Concat runs them one at a time in arrival order.
// Queues are independent of each other.
//
// Cancellation:
// Cancel and CancelWhere dispose live effects by id across all queues. An
// effect built with Until is disposed by the first later input, accepted or
// rejected, that satisfies its predicate. Disposal cancels the producer's
// context and drops anything it emits afterwards.
//
// Termination:
// When the source completes, running effects are left to finish and their
// outputs are still processed; Completed is delivered once nothing is left.
// When the source is interrupted, or the owner calls Close, every effect is
// disposed immediately and Interrupted is delivered. The terminal signal is
// delivered exactly once.
//
// Example:
//
//	mapping := automaton.Reduce(
//		automaton.Transition(automaton.Eq(Login), automaton.Eq(LoggedOut), LoggingIn),
//		automaton.Transition(automaton.Eq(LoginOK), automaton.Eq(LoggingIn), LoggedIn),
//	)
//	login := automaton.NewEffect[State](automaton.Delay(time.Second, automaton.Just(LoginOK)))
//	pipe := automaton.NewPipe[Input]()
//	a := automaton.NewWithEffects(LoggedOut, pipe, automaton.ReduceEffects(
//		automaton.WithEffect(automaton.Transition(automaton.Eq(Login), automaton.Eq(LoggedOut), LoggingIn), login),
//		automaton.Lift(mapping),
//	), nil)
//	defer a.Close()
//	pipe.Send(Login)
package automaton
