package automaton

// Predicate matches a state or an input.
type Predicate[T any] func(T) bool

// Eq matches values equal to v.
func Eq[T comparable](v T) Predicate[T] {
	return func(x T) bool { return x == v }
}

// OneOf matches any of vs.
func OneOf[T comparable](vs ...T) Predicate[T] {
	return func(x T) bool {
		for _, v := range vs {
			if x == v {
				return true
			}
		}
		return false
	}
}

// Any matches every value.
func Any[T any]() Predicate[T] {
	return func(T) bool { return true }
}

// Mapping is a transition function without effects. It returns false when
// the input is rejected in the given state.
type Mapping[S, I any] func(state S, input I) (S, bool)

// EffectMapping is a transition function that may also yield an effect.
// A nil effect means none.
type EffectMapping[S, I any] func(state S, input I) (S, *Effect[S, I], bool)

// Transition accepts inputs matching on while in a state matching from and
// moves to the fixed state to.
func Transition[S, I any](on Predicate[I], from Predicate[S], to S) Mapping[S, I] {
	return func(state S, input I) (S, bool) {
		if on(input) && from(state) {
			return to, true
		}
		return state, false
	}
}

// TransitionFunc is Transition with the next state computed from the
// current one, e.g. a counter's increment.
func TransitionFunc[S, I any](on Predicate[I], from Predicate[S], next func(S) S) Mapping[S, I] {
	return func(state S, input I) (S, bool) {
		if on(input) && from(state) {
			return next(state), true
		}
		return state, false
	}
}

// Reduce combines mappings in priority order; the first that accepts wins.
func Reduce[S, I any](ms ...Mapping[S, I]) Mapping[S, I] {
	return func(state S, input I) (S, bool) {
		for _, m := range ms {
			if to, ok := m(state, input); ok {
				return to, true
			}
		}
		return state, false
	}
}

// Lift turns a Mapping into an EffectMapping that never yields effects.
func Lift[S, I any](m Mapping[S, I]) EffectMapping[S, I] {
	return func(state S, input I) (S, *Effect[S, I], bool) {
		to, ok := m(state, input)
		return to, nil, ok
	}
}

// WithEffect attaches e to every transition accepted by m.
func WithEffect[S, I any](m Mapping[S, I], e *Effect[S, I]) EffectMapping[S, I] {
	return func(state S, input I) (S, *Effect[S, I], bool) {
		to, ok := m(state, input)
		if !ok {
			return state, nil, false
		}
		return to, e, true
	}
}

// ReduceEffects is Reduce for effect mappings.
func ReduceEffects[S, I any](ms ...EffectMapping[S, I]) EffectMapping[S, I] {
	return func(state S, input I) (S, *Effect[S, I], bool) {
		for _, m := range ms {
			if to, e, ok := m(state, input); ok {
				return to, e, true
			}
		}
		return state, nil, false
	}
}
