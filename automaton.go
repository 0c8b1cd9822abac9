package automaton

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Option configures an Automaton.
type Option func(*options)

type options struct {
	logger *slog.Logger
	runID  string
	idGen  IDGenerator
	clock  *Clock
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithRunIDGenerator sets the generator used when no run ID is given.
// Defaults to UUIDv7Generator.
func WithRunIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.idGen = g
		}
	}
}

// WithClock sets the logical clock stamping replies.
func WithClock(c *Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

type eventKind int

const (
	eventInput eventKind = iota + 1
	eventEffectDone
	eventSourceCompleted
	eventSourceInterrupted
	eventClose
)

// event is what the transition loop consumes. Feedback inputs carry the
// run that emitted them so inputs of disposed runs can be dropped.
type event[S, I any] struct {
	kind  eventKind
	input I
	run   *effectRun[S, I]
	err   error
}

type observerEntry[S, I any] struct {
	id  uint64
	obs Observer[S, I]
}

// Automaton is a deterministic state machine that runs the effects its
// transitions yield and feeds their outputs back as inputs.
//
// All transitions, effect routing, cancellation and termination happen on a
// single goroutine, the transition loop. External inputs and effect outputs
// are merged into one FIFO consumed by that loop, so every input is
// evaluated against the state committed by the previous one.
//
// Thread-safety: State, Observe, Replies, Done, Termination and Close are
// safe from any goroutine. Close must not be called from an Observer
// callback.
type Automaton[S, I any] struct {
	runID   string
	logger  *slog.Logger
	clock   *Clock
	mapping EffectMapping[S, I]

	stateMu sync.RWMutex
	state   S

	queue  *eventQueue[event[S, I]]
	ctx    context.Context
	cancel context.CancelFunc

	obsMu     sync.Mutex
	observers []observerEntry[S, I]
	nextObs   uint64
	term      Termination

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	// Owned by the transition loop.
	schedulers map[string]scheduler[S, I]
	strategies map[string]FlattenStrategy
	live       map[uint64]*effectRun[S, I]
	nextToken  uint64
	sourceDone bool
}

// New starts an automaton driven by a mapping without effects.
func New[S, I any](initial S, source Source[I], mapping Mapping[S, I], opts ...Option) *Automaton[S, I] {
	var em EffectMapping[S, I]
	if mapping != nil {
		em = Lift(mapping)
	}
	return NewWithEffects(initial, source, em, nil, opts...)
}

// NewWithEffects starts an automaton whose transitions may yield effects.
//
// initialEffect, when non-nil, is routed before any input is processed.
// A nil source completes immediately; a nil mapping rejects every input.
func NewWithEffects[S, I any](
	initial S,
	source Source[I],
	mapping EffectMapping[S, I],
	initialEffect *Effect[S, I],
	opts ...Option,
) *Automaton[S, I] {
	return NewObserved(initial, source, mapping, initialEffect, nil, opts...)
}

// NewObserved is NewWithEffects with observers registered before the
// automaton starts, so they see every reply including those caused by the
// initial effect.
func NewObserved[S, I any](
	initial S,
	source Source[I],
	mapping EffectMapping[S, I],
	initialEffect *Effect[S, I],
	observers []Observer[S, I],
	opts ...Option,
) *Automaton[S, I] {
	o := options{
		logger: slog.Default(),
		idGen:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewClock()
	}
	if o.runID == "" {
		o.runID = o.idGen.Generate()
	}
	if mapping == nil {
		mapping = func(state S, _ I) (S, *Effect[S, I], bool) {
			return state, nil, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Automaton[S, I]{
		runID:      o.runID,
		logger:     o.logger,
		clock:      o.clock,
		mapping:    mapping,
		state:      initial,
		queue:      newEventQueue[event[S, I]](),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		schedulers: make(map[string]scheduler[S, I]),
		strategies: make(map[string]FlattenStrategy),
		live:       make(map[uint64]*effectRun[S, I]),
	}

	for _, obs := range observers {
		a.Observe(obs)
	}

	a.logger.Debug("automaton starting", "run_id", a.runID)

	go a.pump(source)
	go a.run(initialEffect)

	return a
}

// RunID identifies this automaton in logs and journals.
func (a *Automaton[S, I]) RunID() string {
	return a.runID
}

// State returns the current state. After observing a successful Reply,
// State returns that reply's ToState or a later state.
func (a *Automaton[S, I]) State() S {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

// Observe registers o for every subsequent reply and the terminal signal.
// If the automaton has already terminated, OnTerminate is called at once.
// The returned function unregisters o.
func (a *Automaton[S, I]) Observe(o Observer[S, I]) func() {
	a.obsMu.Lock()
	if a.term != Running {
		term := a.term
		a.obsMu.Unlock()
		if o.OnTerminate != nil {
			o.OnTerminate(term)
		}
		return func() {}
	}
	a.nextObs++
	id := a.nextObs
	a.observers = append(a.observers, observerEntry[S, I]{id: id, obs: o})
	a.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.obsMu.Lock()
			defer a.obsMu.Unlock()
			a.observers = slices.DeleteFunc(a.observers, func(e observerEntry[S, I]) bool {
				return e.id == id
			})
		})
	}
}

// Done is closed once the terminal signal has been delivered.
func (a *Automaton[S, I]) Done() <-chan struct{} {
	return a.done
}

// Termination reports how the automaton ended, or Running.
func (a *Automaton[S, I]) Termination() Termination {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	return a.term
}

// Close disposes every live effect, stops accepting input and delivers
// Interrupted, unless the automaton has already terminated. It blocks
// until the terminal signal has been delivered. Safe to call repeatedly.
func (a *Automaton[S, I]) Close() error {
	a.closeOnce.Do(func() {
		a.closing.Store(true)
		// Producers see their context cancelled before the loop catches up.
		a.cancel()
		a.queue.Enqueue(event[S, I]{kind: eventClose})
	})
	<-a.done
	return nil
}

// pump forwards the external source into the loop's queue.
func (a *Automaton[S, I]) pump(source Source[I]) {
	if source == nil {
		a.queue.Enqueue(event[S, I]{kind: eventSourceCompleted})
		return
	}

	err := source.Run(a.ctx, func(in I) {
		a.queue.Enqueue(event[S, I]{kind: eventInput, input: in})
	})
	if a.ctx.Err() != nil {
		return
	}
	if err != nil {
		a.queue.Enqueue(event[S, I]{kind: eventSourceInterrupted, err: err})
		return
	}
	a.queue.Enqueue(event[S, I]{kind: eventSourceCompleted})
}

// run is the transition loop.
func (a *Automaton[S, I]) run(initialEffect *Effect[S, I]) {
	defer close(a.done)

	if initialEffect != nil {
		a.route(initialEffect)
	}

	for {
		ev, ok := a.queue.TryDequeue()
		if !ok {
			<-a.queue.Wait()
			continue
		}
		if term, stop := a.handle(ev); stop {
			a.finalize(term)
			return
		}
	}
}

func (a *Automaton[S, I]) handle(ev event[S, I]) (Termination, bool) {
	if a.closing.Load() {
		return Interrupted, true
	}

	switch ev.kind {
	case eventInput:
		if ev.run != nil && a.live[ev.run.token] != ev.run {
			// Emitted by a run that has since been disposed.
			return Running, false
		}
		a.step(ev.input)
	case eventEffectDone:
		a.finish(ev.run)
	case eventSourceCompleted:
		a.sourceDone = true
		a.logger.Debug("input source completed", "run_id", a.runID, "live_effects", len(a.live))
	case eventSourceInterrupted:
		a.logger.Debug("input source interrupted", "run_id", a.runID, "error", ev.err)
		return Interrupted, true
	case eventClose:
		return Interrupted, true
	}

	if a.sourceDone && len(a.live) == 0 {
		return Completed, true
	}
	return Running, false
}

// step performs one transition. The state is committed before observers
// see the reply.
func (a *Automaton[S, I]) step(input I) {
	from := a.state
	to, eff, ok := a.mapping(from, input)

	reply := Reply[S, I]{
		Seq:       a.clock.Next(),
		Input:     input,
		FromState: from,
		OK:        ok,
	}
	if ok {
		reply.ToState = to
		a.stateMu.Lock()
		a.state = to
		a.stateMu.Unlock()
	}

	a.publish(reply)
	a.applyUntil(input, from)

	if ok && eff != nil {
		a.route(eff)
	}
}

func (a *Automaton[S, I]) publish(reply Reply[S, I]) {
	a.obsMu.Lock()
	entries := slices.Clone(a.observers)
	a.obsMu.Unlock()

	for _, e := range entries {
		if e.obs.OnReply != nil {
			e.obs.OnReply(reply)
		}
	}
}

// applyUntil disposes live runs whose until predicate matches.
func (a *Automaton[S, I]) applyUntil(input I, state S) {
	var matched []*effectRun[S, I]
	for _, r := range a.live {
		if until := r.effect.until; until != nil && until(input, state) {
			matched = append(matched, r)
		}
	}
	a.disposeAll(matched)
}

// route hands an effect to its queue's scheduler, or applies a cancel.
func (a *Automaton[S, I]) route(e *Effect[S, I]) {
	switch e.kind {
	case effectProduce:
		a.nextToken++
		r := &effectRun[S, I]{
			token:  a.nextToken,
			effect: e,
			sched:  a.schedulerFor(e.queue),
			state:  runPending,
		}
		a.live[r.token] = r
		r.sched.enqueue(r)
	case effectCancel:
		var matched []*effectRun[S, I]
		for _, r := range a.live {
			if id := r.effect.id; id != "" && e.match != nil && e.match(id) {
				matched = append(matched, r)
			}
		}
		a.disposeAll(matched)
	case effectBatch:
		for _, child := range e.effects {
			a.route(child)
		}
	}
}

func (a *Automaton[S, I]) schedulerFor(q EffectQueue) scheduler[S, I] {
	if q.Name == "" {
		q = DefaultQueue
	}
	if s, ok := a.schedulers[q.Name]; ok {
		if a.strategies[q.Name] != q.Strategy {
			a.logger.Warn("queue strategy mismatch, keeping first",
				"run_id", a.runID,
				"queue", q.Name,
				"strategy", a.strategies[q.Name].String(),
				"ignored", q.Strategy.String(),
			)
		}
		return s
	}
	s := newScheduler(q.Strategy, runner[S, I](a))
	a.schedulers[q.Name] = s
	a.strategies[q.Name] = q.Strategy
	return s
}

// disposeAll disposes runs newest first, so that a concat queue never
// starts a pending run that is about to be disposed too.
func (a *Automaton[S, I]) disposeAll(runs []*effectRun[S, I]) {
	slices.SortFunc(runs, func(x, y *effectRun[S, I]) int {
		return cmp.Compare(y.token, x.token)
	})
	for _, r := range runs {
		a.dispose(r)
	}
}

// start launches the producer of r on its own goroutine.
func (a *Automaton[S, I]) start(r *effectRun[S, I]) {
	ctx, cancel := context.WithCancel(a.ctx)
	r.cancel = cancel
	r.state = runRunning
	p := r.effect.producer

	a.logger.Debug("effect started",
		"run_id", a.runID,
		"effect", r.token,
		"id", r.effect.id,
		"queue", r.effect.queue.Name,
	)

	go func() {
		defer cancel()
		if p != nil {
			p(ctx, func(in I) {
				if ctx.Err() != nil {
					return
				}
				a.queue.Enqueue(event[S, I]{kind: eventInput, input: in, run: r})
			})
		}
		a.queue.Enqueue(event[S, I]{kind: eventEffectDone, run: r})
	}()
}

// dispose stops r. Disposing a finished or disposed run is a no-op.
func (a *Automaton[S, I]) dispose(r *effectRun[S, I]) {
	if r.state == runDone {
		return
	}
	started := r.state == runRunning
	r.state = runDone
	delete(a.live, r.token)
	if r.cancel != nil {
		r.cancel()
	}
	r.sched.release(r)

	a.logger.Debug("effect disposed",
		"run_id", a.runID,
		"effect", r.token,
		"id", r.effect.id,
		"started", started,
	)
}

// finish handles natural completion of r's producer.
func (a *Automaton[S, I]) finish(r *effectRun[S, I]) {
	if a.live[r.token] != r {
		return
	}
	r.state = runDone
	delete(a.live, r.token)
	r.sched.release(r)

	a.logger.Debug("effect finished", "run_id", a.runID, "effect", r.token, "id", r.effect.id)
}

// finalize disposes everything still live and delivers the terminal
// signal exactly once.
func (a *Automaton[S, I]) finalize(term Termination) {
	a.closing.Store(true)

	disposed := len(a.live)
	for _, r := range a.live {
		r.state = runDone
		if r.cancel != nil {
			r.cancel()
		}
	}
	clear(a.live)
	a.cancel()
	a.queue.Close()

	a.obsMu.Lock()
	a.term = term
	entries := a.observers
	a.observers = nil
	a.obsMu.Unlock()

	for _, e := range entries {
		if e.obs.OnTerminate != nil {
			e.obs.OnTerminate(term)
		}
	}

	a.logger.Info("automaton terminated",
		"run_id", a.runID,
		"termination", term.String(),
		"disposed_effects", disposed,
		"seq", a.clock.Current(),
	)
}
