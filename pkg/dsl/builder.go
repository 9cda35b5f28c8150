package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/easel/pkg/domain"
)

// ErrInvalidDocument is returned by Build when the element links do not form a tree.
var ErrInvalidDocument = errors.New("invalid document")

// Builder manages the document construction.
type Builder struct {
	rootID   string
	order    []string
	elements map[string]*ElementBuilder
	slices   domain.State
}

// New creates a document builder whose root element has the given id and type.
func New(rootID, rootType string) *Builder {
	b := &Builder{
		rootID:   rootID,
		elements: make(map[string]*ElementBuilder),
		slices:   domain.State{},
	}
	b.Add(rootID).Type(rootType)
	return b
}

// Root returns the builder of the root element.
func (b *Builder) Root() *ElementBuilder {
	return b.elements[b.rootID]
}

// Add creates a detached element. Attach it with In or a parent's Child.
// If the element already exists, it returns the existing builder.
func (b *Builder) Add(id string) *ElementBuilder {
	if eb, ok := b.elements[id]; ok {
		return eb
	}
	eb := &ElementBuilder{
		el:      domain.Element{ID: id, Elements: []string{}},
		builder: b,
	}
	b.elements[id] = eb
	b.order = append(b.order, id)
	return eb
}

// Slice sets a non-element slice such as page or ui.
func (b *Builder) Slice(name domain.SliceName, value any) *Builder {
	b.slices[name] = value
	return b
}

// Build compiles the document into a state ready for easel.WithInitialState.
func (b *Builder) Build() (domain.State, error) {
	els := make(domain.Elements, len(b.elements))
	for _, id := range b.order {
		eb := b.elements[id]
		if eb.el.Type == "" {
			return nil, fmt.Errorf("%w: element %q has no type", ErrInvalidDocument, id)
		}
		for _, child := range eb.el.Elements {
			if _, ok := b.elements[child]; !ok {
				return nil, fmt.Errorf("%w: %q lists unknown child %q", ErrInvalidDocument, id, child)
			}
		}
		els[id] = eb.Build()
	}

	// Every non-root element must hang off exactly one parent.
	seen := map[string]string{}
	for _, id := range b.order {
		for _, child := range els[id].Elements {
			if prev, ok := seen[child]; ok {
				return nil, fmt.Errorf("%w: %q is a child of both %q and %q", ErrInvalidDocument, child, prev, id)
			}
			seen[child] = id
		}
	}
	if parent, ok := seen[b.rootID]; ok {
		return nil, fmt.Errorf("%w: root %q is a child of %q", ErrInvalidDocument, b.rootID, parent)
	}
	for _, id := range b.order {
		if id != b.rootID && seen[id] == "" {
			return nil, fmt.Errorf("%w: element %q is not attached", ErrInvalidDocument, id)
		}
	}

	state := domain.State{
		domain.SliceRootElement: b.rootID,
		domain.SliceElements:    els,
	}
	for name, v := range b.slices {
		state[name] = v
	}
	return state, nil
}

// ElementBuilder provides a fluent API for configuring an element.
type ElementBuilder struct {
	el      domain.Element
	builder *Builder
}

// Type sets the element type.
func (e *ElementBuilder) Type(t string) *ElementBuilder {
	e.el.Type = t
	return e
}

// Data sets one data key.
func (e *ElementBuilder) Data(key string, value any) *ElementBuilder {
	if e.el.Data == nil {
		e.el.Data = make(map[string]any)
	}
	e.el.Data[key] = value
	return e
}

// Child appends a new child of the given type and returns its builder.
func (e *ElementBuilder) Child(id, elementType string) *ElementBuilder {
	return e.builder.Add(id).Type(elementType).In(e.el.ID)
}

// In appends the element to the end of parent's children.
func (e *ElementBuilder) In(parent string) *ElementBuilder {
	p := e.builder.Add(parent)
	p.el.Elements = append(p.el.Elements, e.el.ID)
	return e
}

// Build returns the underlying domain.Element with its parent link resolved.
func (e *ElementBuilder) Build() domain.Element {
	el := e.el
	el.Elements = append([]string{}, e.el.Elements...)
	parent := ""
	for _, id := range e.builder.order {
		for _, child := range e.builder.elements[id].el.Elements {
			if child == el.ID {
				parent = id
			}
		}
	}
	el.Parent = domain.ParentRef(parent)
	return el
}
