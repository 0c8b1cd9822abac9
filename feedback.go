package automaton

import (
	"fmt"
	"sync/atomic"
)

// Feedback derives an effect from successful replies, the way a side loop
// in a reactive system turns state changes into new work.
//
// Filter and Produce run inside the mapping, before the reply is stamped,
// so the Reply they receive has Seq 0. Input, FromState and ToState match
// the reply that is published.
type Feedback[S, I any] struct {
	// Filter selects the replies that trigger Produce. Nil selects all.
	Filter func(Reply[S, I]) bool
	// Produce returns the producer to run, or nil for none.
	Produce func(Reply[S, I]) Producer[I]
	// Queue defaults to a queue of this feedback's own with the Latest
	// strategy, so a new trigger replaces the work of the previous one.
	Queue EffectQueue
}

// feedbackMappings numbers FeedbackMapping calls so default queues of
// separately built mappings never collide.
var feedbackMappings atomic.Uint64

// FeedbackMapping combines a plain mapping with feedback loops. Each
// successful transition is offered to every feedback in order; the effects
// they produce are routed together.
func FeedbackMapping[S, I any](m Mapping[S, I], feedbacks ...Feedback[S, I]) EffectMapping[S, I] {
	call := feedbackMappings.Add(1)
	queues := make([]EffectQueue, len(feedbacks))
	for i, fb := range feedbacks {
		q := fb.Queue
		if q.Name == "" {
			q = EffectQueue{Name: fmt.Sprintf("feedback.%d.%d", call, i), Strategy: Latest}
		}
		queues[i] = q
	}

	return func(state S, input I) (S, *Effect[S, I], bool) {
		to, ok := m(state, input)
		if !ok {
			return state, nil, false
		}

		reply := Reply[S, I]{Input: input, FromState: state, ToState: to, OK: true}
		var effects []*Effect[S, I]
		for i, fb := range feedbacks {
			if fb.Produce == nil || (fb.Filter != nil && !fb.Filter(reply)) {
				continue
			}
			if p := fb.Produce(reply); p != nil {
				effects = append(effects, NewEffect[S](p).InQueue(queues[i]))
			}
		}

		switch len(effects) {
		case 0:
			return to, nil, true
		case 1:
			return to, effects[0], true
		default:
			return to, Batch(effects...), true
		}
	}
}
