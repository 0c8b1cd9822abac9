package automaton

import (
	"context"
	"fmt"
	"strings"
)

// FlattenStrategy is the concurrency policy of an EffectQueue.
type FlattenStrategy int

const (
	// Merge runs every producer routed to the queue concurrently.
	Merge FlattenStrategy = iota
	// Latest runs at most one producer; a new one disposes the running one.
	Latest
	// Concat runs producers one at a time in arrival order.
	Concat
)

func (s FlattenStrategy) String() string {
	switch s {
	case Merge:
		return "merge"
	case Latest:
		return "latest"
	case Concat:
		return "concat"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseFlattenStrategy parses "merge", "latest" or "concat".
// The empty string parses as Merge.
func ParseFlattenStrategy(s string) (FlattenStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merge":
		return Merge, nil
	case "latest":
		return Latest, nil
	case "concat":
		return Concat, nil
	default:
		return Merge, fmt.Errorf("unknown flatten strategy %q: must be merge, latest or concat", s)
	}
}

// EffectQueue is a named concurrency domain. Effects sharing a Name share a
// scheduler; the strategy of the first effect routed to a name is kept.
type EffectQueue struct {
	Name     string
	Strategy FlattenStrategy
}

// DefaultQueue receives effects that name no queue.
var DefaultQueue = EffectQueue{Name: "default", Strategy: Merge}

type effectKind int

const (
	effectProduce effectKind = iota + 1
	effectCancel
	effectBatch
)

// Effect is a managed side effect yielded by a transition.
//
// An Effect is an immutable value: the builder methods return modified
// copies, so one Effect may be attached to many transitions. Each accepted
// transition starts its own run of the producer.
type Effect[S, I any] struct {
	kind     effectKind
	producer Producer[I]
	queue    EffectQueue
	id       string
	until    func(input I, state S) bool
	match    func(id string) bool
	effects  []*Effect[S, I]
}

// NewEffect wraps a producer in an effect routed to DefaultQueue.
//
// S usually has to be given explicitly: NewEffect[State](producer).
func NewEffect[S, I any](p Producer[I]) *Effect[S, I] {
	return &Effect[S, I]{kind: effectProduce, producer: p, queue: DefaultQueue}
}

// InQueue returns a copy of e routed to q. An empty queue name selects
// DefaultQueue.
func (e *Effect[S, I]) InQueue(q EffectQueue) *Effect[S, I] {
	c := *e
	if q.Name == "" {
		q = DefaultQueue
	}
	c.queue = q
	return &c
}

// WithID returns a copy of e carrying id, the handle used by Cancel.
func (e *Effect[S, I]) WithID(id string) *Effect[S, I] {
	c := *e
	c.id = id
	return &c
}

// Until returns a copy of e that is disposed the first time pred holds for
// an input processed after the effect was routed, together with the state
// that input was evaluated against. Rejected inputs count too.
func (e *Effect[S, I]) Until(pred func(input I, state S) bool) *Effect[S, I] {
	c := *e
	c.until = pred
	return &c
}

// ID returns the effect's id, or "" when it has none.
func (e *Effect[S, I]) ID() string { return e.id }

// Queue returns the queue the effect is routed to.
func (e *Effect[S, I]) Queue() EffectQueue { return e.queue }

// IsCancel reports whether e disposes effects rather than starting one.
func (e *Effect[S, I]) IsCancel() bool { return e.kind == effectCancel }

// Cancel returns an effect that disposes every live effect whose id equals id,
// in any queue. Matching nothing is a no-op.
func Cancel[S, I any](id string) *Effect[S, I] {
	c := CancelWhere[S, I](func(other string) bool { return other == id })
	c.id = id
	return c
}

// CancelWhere is Cancel with an arbitrary match over effect ids. Effects
// without an id are never matched.
func CancelWhere[S, I any](match func(id string) bool) *Effect[S, I] {
	return &Effect[S, I]{kind: effectCancel, match: match}
}

// Batch combines several effects yielded by one transition. They are routed
// in order. Nil entries are skipped.
func Batch[S, I any](effects ...*Effect[S, I]) *Effect[S, I] {
	kept := make([]*Effect[S, I], 0, len(effects))
	for _, e := range effects {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return &Effect[S, I]{kind: effectBatch, effects: kept}
}

// MapInput adapts an effect written for input type J to an automaton whose
// inputs are I, converting every emitted value with f. Queue, id and
// cancellation carry over. An until predicate is over J and is dropped;
// attach one to the result with Until.
func MapInput[S, J, I any](e *Effect[S, J], f func(J) I) *Effect[S, I] {
	if e == nil {
		return nil
	}
	switch e.kind {
	case effectCancel:
		return &Effect[S, I]{kind: effectCancel, id: e.id, match: e.match}
	case effectBatch:
		mapped := make([]*Effect[S, I], len(e.effects))
		for i, child := range e.effects {
			mapped[i] = MapInput(child, f)
		}
		return &Effect[S, I]{kind: effectBatch, effects: mapped}
	default:
		p := e.producer
		return &Effect[S, I]{
			kind: effectProduce,
			producer: func(ctx context.Context, emit func(I)) {
				p(ctx, func(v J) { emit(f(v)) })
			},
			queue: e.queue,
			id:    e.id,
		}
	}
}
