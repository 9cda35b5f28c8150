package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Element is one node of the page document.
// Relations are expressed by id only: Parent is a back-reference and
// Elements lists child ids in order.
type Element struct {
	ID   string         `json:"id" yaml:"id" mapstructure:"id"`
	Type string         `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`

	// Parent is nil when not provided. A non-nil empty string explicitly
	// marks the element as having no parent.
	Parent *string `json:"parent,omitempty" yaml:"parent,omitempty" mapstructure:"parent"`

	Elements []string `json:"elements" yaml:"elements" mapstructure:"elements"`
}

// ParentID returns the parent id, or "" for a root or unknown parent.
func (e Element) ParentID() string {
	if e.Parent == nil {
		return ""
	}
	return *e.Parent
}

// ParentRef is a helper to fill Element.Parent.
func ParentRef(id string) *string {
	return &id
}

// MergeElement applies next on top of prev.
// Fields left unset in next keep prev's values. Parent follows its own
// precedence: an explicitly provided parent wins, otherwise prev's is kept.
func MergeElement(prev, next Element) Element {
	out := prev
	if next.ID != "" {
		out.ID = next.ID
	}
	if next.Type != "" {
		out.Type = next.Type
	}
	if next.Data != nil {
		out.Data = next.Data
	}
	if next.Elements != nil {
		out.Elements = next.Elements
	}
	if next.Parent != nil {
		out.Parent = next.Parent
	}
	return out
}

// Elements is the value of the elements slice, keyed by element id.
type Elements map[string]Element

// AsElements converts a slice value into Elements.
// Values decoded from JSON or YAML (nested maps) are re-typed via mapstructure.
func AsElements(v any) (Elements, error) {
	switch typed := v.(type) {
	case Elements:
		return typed, nil
	case map[string]Element:
		return Elements(typed), nil
	case nil:
		return nil, nil
	}

	var out Elements
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build elements decoder: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("invalid elements slice: %w", err)
	}
	for id, el := range out {
		if el.ID == "" {
			el.ID = id
			out[id] = el
		}
	}
	return out, nil
}

// ElementTree is a materialised element with its resolved descendants.
// Path lists the ancestor ids from the tree root down to (excluding) this node.
type ElementTree struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
	Elements []*ElementTree `json:"elements"`
	Path     []string       `json:"path"`
}

// Walk visits the tree depth-first in child order.
// Returning false from fn skips the node's children.
func (t *ElementTree) Walk(fn func(*ElementTree) bool) {
	if t == nil {
		return
	}
	stack := []*ElementTree{t}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for i := len(n.Elements) - 1; i >= 0; i-- {
			stack = append(stack, n.Elements[i])
		}
	}
}
