package registry

import (
	"context"

	"github.com/aretw0/easel/pkg/domain"
)

// ElementLookup resolves elements against the state visible to a cycle.
type ElementLookup interface {
	GetByID(ctx context.Context, id string) (domain.Element, error)
	GetTree(ctx context.Context, rootID string) (*domain.ElementTree, error)
}

// CallableState is the view a handler receives: live slices overlaid with
// the partial state accumulated so far in the cycle.
type CallableState struct {
	domain.State
	lookup ElementLookup
}

// NewCallableState wraps state. lookup may be nil, in which case element
// lookups only see the elements slice of state.
func NewCallableState(state domain.State, lookup ElementLookup) *CallableState {
	if state == nil {
		state = domain.State{}
	}
	return &CallableState{State: state, lookup: lookup}
}

// GetElementByID returns the element with the given id.
func (s *CallableState) GetElementByID(ctx context.Context, id string) (domain.Element, error) {
	if s.lookup != nil {
		return s.lookup.GetByID(ctx, id)
	}
	els, err := s.Elements()
	if err != nil {
		return domain.Element{}, err
	}
	el, ok := els[id]
	if !ok {
		return domain.Element{}, &domain.ElementNotFoundError{ID: id}
	}
	return el, nil
}

// GetElementTree resolves the subtree rooted at rootID.
// An empty rootID means the current root element.
func (s *CallableState) GetElementTree(ctx context.Context, rootID string) (*domain.ElementTree, error) {
	if s.lookup == nil {
		return nil, &domain.ElementNotFoundError{ID: rootID}
	}
	return s.lookup.GetTree(ctx, rootID)
}

// EditorAPI is the part of the editor a handler may drive directly.
type EditorAPI interface {
	Trigger(ctx context.Context, action domain.Action) (domain.State, error)
	Undo() bool
	Redo() bool
	StartBatch()
	EndBatch()
	EnableHistory()
	DisableHistory()
}

// HandlerContext carries per-invocation collaborators.
type HandlerContext struct {
	// Client is an opaque host service, such as a GraphQL client.
	Client any
	// Editor may be nil when the engine runs without a facade.
	Editor  EditorAPI
	Path    []string
	CycleID string
}

// Depth returns the nesting depth of the current dispatch.
func (h *HandlerContext) Depth() int {
	if h == nil {
		return 0
	}
	return len(h.Path)
}
