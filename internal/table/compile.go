package table

import (
	"context"
	"slices"
	"time"

	"github.com/roach88/automaton"
	"github.com/roach88/automaton/internal/canonical"
)

// Machine is a compiled table.
type Machine struct {
	def           *Definition
	hash          string
	mapping       automaton.EffectMapping[string, string]
	initialEffect *automaton.Effect[string, string]
}

// Compile validates def and builds its transition mapping. An invalid
// table yields ValidationErrors.
func Compile(def *Definition) (*Machine, error) {
	if errs := Validate(def); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	hash, err := canonical.Hash(canonical.DomainTable, def.canonicalMap())
	if err != nil {
		return nil, err
	}

	queues := make(map[string]automaton.EffectQueue, len(def.Queues))
	for _, q := range def.Queues {
		strategy, _ := automaton.ParseFlattenStrategy(q.Strategy)
		queues[q.Name] = automaton.EffectQueue{Name: q.Name, Strategy: strategy}
	}

	rows := make([]automaton.EffectMapping[string, string], 0, len(def.Transitions))
	for _, t := range def.Transitions {
		m := automaton.Transition(match(t.On), match(t.From), t.To)
		if t.Effect != nil {
			rows = append(rows, automaton.WithEffect(m, buildEffect(t.Effect, queues)))
		} else {
			rows = append(rows, automaton.Lift(m))
		}
	}

	machine := &Machine{
		def:     def,
		hash:    hash,
		mapping: automaton.ReduceEffects(rows...),
	}
	if def.InitialEffect != nil {
		machine.initialEffect = buildEffect(def.InitialEffect, queues)
	}
	return machine, nil
}

// LoadMachine loads, validates and compiles the table at path.
func LoadMachine(path string) (*Machine, error) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(def)
}

// Name returns the table name.
func (m *Machine) Name() string { return m.def.Name }

// Initial returns the initial state.
func (m *Machine) Initial() string { return m.def.Initial }

// Hash fingerprints the table; equal tables have equal hashes regardless
// of source format or key order.
func (m *Machine) Hash() string { return m.hash }

// Definition returns the table the machine was compiled from.
func (m *Machine) Definition() *Definition { return m.def }

// Mapping returns the compiled transition mapping.
func (m *Machine) Mapping() automaton.EffectMapping[string, string] { return m.mapping }

// HasInput reports whether in is declared by the table.
func (m *Machine) HasInput(in string) bool {
	return slices.Contains(m.def.Inputs, in)
}

// New starts an automaton running the table.
func (m *Machine) New(source automaton.Source[string], opts ...automaton.Option) *automaton.Automaton[string, string] {
	return m.NewObserved(source, nil, opts...)
}

// NewObserved starts an automaton running the table with observers
// attached before the first reply.
func (m *Machine) NewObserved(
	source automaton.Source[string],
	observers []automaton.Observer[string, string],
	opts ...automaton.Option,
) *automaton.Automaton[string, string] {
	return automaton.NewObserved(m.def.Initial, source, m.mapping, m.initialEffect, observers, opts...)
}

func match(names Names) automaton.Predicate[string] {
	if names.IsWildcard() {
		return automaton.Any[string]()
	}
	return automaton.OneOf(names...)
}

func buildEffect(e *EffectDef, queues map[string]automaton.EffectQueue) *automaton.Effect[string, string] {
	if e.Cancel != "" {
		return automaton.Cancel[string, string](e.Cancel)
	}

	p := emitter(slices.Clone(e.Emit), e.Interval.Std(), e.Count)
	if e.After > 0 {
		p = automaton.Delay(e.After.Std(), p)
	}

	eff := automaton.NewEffect[string](p)
	if q, ok := queues[e.Queue]; ok {
		eff = eff.InQueue(q)
	}
	if e.ID != "" {
		eff = eff.WithID(e.ID)
	}
	if len(e.Until) > 0 {
		until := match(e.Until)
		eff = eff.Until(func(in string, _ string) bool { return until(in) })
	}
	return eff
}

// emitter emits values once, or every interval when interval is positive.
func emitter(values []string, interval time.Duration, count int) automaton.Producer[string] {
	if interval <= 0 {
		return automaton.Just(values...)
	}
	return func(ctx context.Context, emit func(string)) {
		t := time.NewTicker(interval)
		defer t.Stop()

		for i := 0; count <= 0 || i < count; i++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, v := range values {
					emit(v)
				}
			}
		}
	}
}

func (d *Definition) canonicalMap() map[string]any {
	queues := make([]any, len(d.Queues))
	for i, q := range d.Queues {
		strategy, _ := automaton.ParseFlattenStrategy(q.Strategy)
		queues[i] = map[string]any{"name": q.Name, "strategy": strategy.String()}
	}
	transitions := make([]any, len(d.Transitions))
	for i, t := range d.Transitions {
		row := map[string]any{
			"on":   []string(t.On),
			"from": []string(t.From),
			"to":   t.To,
		}
		if t.Effect != nil {
			row["effect"] = t.Effect.canonicalMap()
		}
		transitions[i] = row
	}

	out := map[string]any{
		"name":        d.Name,
		"initial":     d.Initial,
		"states":      d.States,
		"inputs":      d.Inputs,
		"queues":      queues,
		"transitions": transitions,
	}
	if d.InitialEffect != nil {
		out["initial_effect"] = d.InitialEffect.canonicalMap()
	}
	return out
}

func (e *EffectDef) canonicalMap() map[string]any {
	if e.Cancel != "" {
		return map[string]any{"cancel": e.Cancel}
	}
	out := map[string]any{"emit": e.Emit}
	if e.After > 0 {
		out["after"] = e.After.String()
	}
	if e.Interval > 0 {
		out["interval"] = e.Interval.String()
		out["count"] = e.Count
	}
	if e.Queue != "" {
		out["queue"] = e.Queue
	}
	if e.ID != "" {
		out["id"] = e.ID
	}
	if len(e.Until) > 0 {
		out["until"] = []string(e.Until)
	}
	return out
}
