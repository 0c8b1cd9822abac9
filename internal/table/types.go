package table

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Wildcard matches every state or input.
const Wildcard = "*"

// Definition is a parsed transition table.
type Definition struct {
	Name          string          `yaml:"name" json:"name"`
	Initial       string          `yaml:"initial" json:"initial"`
	States        []string        `yaml:"states" json:"states"`
	Inputs        []string        `yaml:"inputs" json:"inputs"`
	Queues        []QueueDef      `yaml:"queues,omitempty" json:"queues,omitempty"`
	InitialEffect *EffectDef      `yaml:"initial_effect,omitempty" json:"initial_effect,omitempty"`
	Transitions   []TransitionDef `yaml:"transitions" json:"transitions"`
}

// QueueDef declares a named effect queue.
type QueueDef struct {
	Name     string `yaml:"name" json:"name"`
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
}

// TransitionDef is one row of the table. Line is the source line of the
// row in YAML tables, zero otherwise.
type TransitionDef struct {
	On     Names      `yaml:"on" json:"on"`
	From   Names      `yaml:"from" json:"from"`
	To     string     `yaml:"to" json:"to"`
	Effect *EffectDef `yaml:"effect,omitempty" json:"effect,omitempty"`
	Line   int        `yaml:"-" json:"-"`
}

// EffectDef describes an effect. Either Emit or Cancel is set.
//
// Emit values are emitted in order once After has elapsed. With a
// positive Interval the values are emitted every Interval, Count times,
// or until the effect is disposed when Count is zero.
type EffectDef struct {
	Emit     []string `yaml:"emit,omitempty" json:"emit,omitempty"`
	After    Duration `yaml:"after,omitempty" json:"after,omitempty"`
	Interval Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Count    int      `yaml:"count,omitempty" json:"count,omitempty"`
	Queue    string   `yaml:"queue,omitempty" json:"queue,omitempty"`
	ID       string   `yaml:"id,omitempty" json:"id,omitempty"`
	Until    Names    `yaml:"until,omitempty" json:"until,omitempty"`
	Cancel   string   `yaml:"cancel,omitempty" json:"cancel,omitempty"`
}

// Names is a list of state or input names. It decodes from a single
// string or a list of strings.
type Names []string

// IsWildcard reports whether n matches everything.
func (n Names) IsWildcard() bool {
	return slices.Contains(n, Wildcard)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*n = Names{node.Value}
		return nil
	case yaml.SequenceNode:
		names := make(Names, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a name, got %s", item.Line, kindName(item.Kind))
			}
			names = append(names, item.Value)
		}
		*n = names
		return nil
	default:
		return fmt.Errorf("line %d: expected a name or a list of names, got %s", node.Line, kindName(node.Kind))
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Names) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*n = Names{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a name or a list of names: %w", err)
	}
	*n = list
	return nil
}

// Duration is a time.Duration written as a Go duration string ("50ms").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration, got %s", node.Line, kindName(node.Kind))
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a duration string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown node"
	}
}
