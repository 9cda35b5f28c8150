package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Args holds the payload of an Action.
type Args map[string]any

// Action is a named request for a behaviour change.
// Multiple actions may share a Name; handlers are looked up by it.
type Action struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	Args Args   `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// NewAction creates an action with a private copy of args.
func NewAction(name string, args Args) Action {
	return Action{Name: name, Args: args.Clone()}
}

// Clone returns a shallow copy of the args map.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Decode maps the args onto a typed struct using its mapstructure tags.
// Input is weakly typed so JSON numbers and YAML scalars decode cleanly.
func (a Args) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build args decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(a)); err != nil {
		return fmt.Errorf("failed to decode args: %w", err)
	}
	return nil
}

// Result is what a handler proposes: partial state plus follow-up actions.
type Result struct {
	State   State    `json:"state,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}
