package actions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/registry"
	"github.com/google/uuid"
)

// Names of the standard actions.
const (
	SetSlice         = "SET_SLICE"
	CreateElement    = "CREATE_ELEMENT"
	UpdateElement    = "UPDATE_ELEMENT"
	DeleteElement    = "DELETE_ELEMENT"
	MoveElement      = "MOVE_ELEMENT"
	SelectElement    = "SELECT_ELEMENT"
	HighlightElement = "HIGHLIGHT_ELEMENT"
)

var (
	// ErrInvalidArgs is returned when an action's args are missing or malformed.
	ErrInvalidArgs = errors.New("invalid action args")
	// ErrInvalidMove is returned when an element would become its own descendant.
	ErrInvalidMove = errors.New("cannot move element into its own subtree")
)

// Registrar is anything handlers can be registered on, such as *easel.Editor.
type Registrar interface {
	On(name string, h registry.Handler) (registry.UnregisterFunc, error)
}

// Handlers returns the standard handlers keyed by action name.
func Handlers() map[string]registry.Handler {
	return map[string]registry.Handler{
		SetSlice:         registry.HandlerFunc(setSlice),
		CreateElement:    registry.HandlerFunc(createElement),
		UpdateElement:    registry.HandlerFunc(updateElement),
		DeleteElement:    registry.HandlerFunc(deleteElement),
		MoveElement:      registry.HandlerFunc(moveElement),
		SelectElement:    registry.HandlerFunc(selectElement),
		HighlightElement: registry.HandlerFunc(highlightElement),
	}
}

// Register adds every standard handler to r.
// The returned func unregisters all of them.
func Register(r Registrar) (registry.UnregisterFunc, error) {
	handlers := Handlers()
	names := slices.Sorted(maps.Keys(handlers))

	var undo []registry.UnregisterFunc
	unregisterAll := func() bool {
		removed := false
		for _, fn := range undo {
			removed = fn() || removed
		}
		return removed
	}

	for _, name := range names {
		fn, err := r.On(name, handlers[name])
		if err != nil {
			unregisterAll()
			return nil, fmt.Errorf("failed to register %s: %w", name, err)
		}
		undo = append(undo, fn)
	}
	return unregisterAll, nil
}

type setSliceArgs struct {
	Slice string `mapstructure:"slice"`
	Value any    `mapstructure:"value"`
}

func setSlice(_ context.Context, _ *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	var in setSliceArgs
	if err := args.Decode(&in); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	name := domain.SliceName(in.Slice)
	if !domain.KnownSlice(name) {
		return domain.Result{}, fmt.Errorf("%w: unknown slice %q", ErrInvalidArgs, in.Slice)
	}
	return domain.Result{State: domain.State{name: plain(in.Value)}}, nil
}

// plain strips the Args type from nested payloads so committed slices hold
// ordinary maps.
func plain(v any) any {
	switch t := v.(type) {
	case domain.Args:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = plain(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

type createArgs struct {
	ID     string         `mapstructure:"id"`
	Type   string         `mapstructure:"type"`
	Parent string         `mapstructure:"parent"`
	Index  *int           `mapstructure:"index"`
	Data   map[string]any `mapstructure:"data"`
}

func createElement(ctx context.Context, state *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	var in createArgs
	if err := args.Decode(&in); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	if in.Type == "" {
		return domain.Result{}, fmt.Errorf("%w: type is required", ErrInvalidArgs)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Parent == "" {
		in.Parent = state.String(domain.SliceRootElement)
	}

	if _, err := state.GetElementByID(ctx, in.ID); err == nil {
		return domain.Result{}, fmt.Errorf("%w: element %q already exists", ErrInvalidArgs, in.ID)
	}
	parent, err := state.GetElementByID(ctx, in.Parent)
	if err != nil {
		return domain.Result{}, err
	}

	return domain.Result{
		State: domain.State{
			domain.SliceElements: domain.Elements{
				in.ID: {
					ID:       in.ID,
					Type:     in.Type,
					Data:     in.Data,
					Parent:   domain.ParentRef(parent.ID),
					Elements: []string{},
				},
				parent.ID: {Elements: insertAt(parent.Elements, in.ID, in.Index)},
			},
		},
		Actions: []domain.Action{domain.NewAction(SelectElement, domain.Args{"id": in.ID})},
	}, nil
}

type updateArgs struct {
	ID      string         `mapstructure:"id"`
	Type    string         `mapstructure:"type"`
	Data    map[string]any `mapstructure:"data"`
	Replace bool           `mapstructure:"replace"`
}

func updateElement(ctx context.Context, state *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	var in updateArgs
	if err := args.Decode(&in); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	el, err := state.GetElementByID(ctx, in.ID)
	if err != nil {
		return domain.Result{}, err
	}

	data := in.Data
	if !in.Replace {
		// Shallow merge; the stored map is shared with snapshots and must stay untouched.
		data = make(map[string]any, len(el.Data)+len(in.Data))
		maps.Copy(data, el.Data)
		maps.Copy(data, in.Data)
	}
	if data == nil {
		data = map[string]any{}
	}

	return domain.Result{
		State: domain.State{
			domain.SliceElements: domain.Elements{
				el.ID: {Type: in.Type, Data: data},
			},
		},
	}, nil
}

type idArgs struct {
	ID string `mapstructure:"id"`
}

// deleteElement detaches the subtree from its parent. Commits merge
// elements by id, so the detached entries stay in the slice but are no
// longer reachable from the root.
func deleteElement(ctx context.Context, state *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	var in idArgs
	if err := args.Decode(&in); err != nil || in.ID == "" {
		return domain.Result{}, fmt.Errorf("%w: id is required", ErrInvalidArgs)
	}
	el, err := state.GetElementByID(ctx, in.ID)
	if err != nil {
		return domain.Result{}, err
	}
	if el.ID == state.String(domain.SliceRootElement) || el.ParentID() == "" {
		return domain.Result{}, fmt.Errorf("%w: cannot delete root element %q", ErrInvalidArgs, el.ID)
	}
	parent, err := state.GetElementByID(ctx, el.ParentID())
	if err != nil {
		return domain.Result{}, err
	}

	out := domain.State{
		domain.SliceElements: domain.Elements{
			parent.ID: {Elements: remove(parent.Elements, el.ID)},
			el.ID:     {Parent: domain.ParentRef("")},
		},
	}

	removed := map[string]bool{el.ID: true}
	if tree, err := state.GetElementTree(ctx, el.ID); err == nil {
		tree.Walk(func(n *domain.ElementTree) bool {
			removed[n.ID] = true
			return true
		})
	}
	for _, name := range []domain.SliceName{domain.SliceActiveElement, domain.SliceHighlightElement} {
		if id := state.String(name); id != "" && removed[id] {
			out[name] = nil
		}
	}
	return domain.Result{State: out}, nil
}

type moveArgs struct {
	ID     string `mapstructure:"id"`
	Parent string `mapstructure:"parent"`
	Index  *int   `mapstructure:"index"`
}

func moveElement(ctx context.Context, state *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	var in moveArgs
	if err := args.Decode(&in); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	if in.ID == "" || in.Parent == "" {
		return domain.Result{}, fmt.Errorf("%w: id and parent are required", ErrInvalidArgs)
	}
	el, err := state.GetElementByID(ctx, in.ID)
	if err != nil {
		return domain.Result{}, err
	}
	target, err := state.GetElementByID(ctx, in.Parent)
	if err != nil {
		return domain.Result{}, err
	}

	if tree, err := state.GetElementTree(ctx, el.ID); err == nil {
		inside := false
		tree.Walk(func(n *domain.ElementTree) bool {
			inside = inside || n.ID == target.ID
			return !inside
		})
		if inside {
			return domain.Result{}, fmt.Errorf("%w: %q into %q", ErrInvalidMove, el.ID, target.ID)
		}
	}

	changed := domain.Elements{
		el.ID: {Parent: domain.ParentRef(target.ID)},
	}
	if oldID := el.ParentID(); oldID != "" && oldID != target.ID {
		old, err := state.GetElementByID(ctx, oldID)
		if err != nil {
			return domain.Result{}, err
		}
		changed[old.ID] = domain.Element{Elements: remove(old.Elements, el.ID)}
	}
	changed[target.ID] = domain.Element{Elements: insertAt(remove(target.Elements, el.ID), el.ID, in.Index)}

	return domain.Result{
		State:   domain.State{domain.SliceElements: changed},
		Actions: []domain.Action{domain.NewAction(SelectElement, domain.Args{"id": el.ID})},
	}, nil
}

func selectElement(_ context.Context, _ *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	return pointer(domain.SliceActiveElement, args)
}

func highlightElement(_ context.Context, _ *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
	return pointer(domain.SliceHighlightElement, args)
}

// pointer writes an element id into a nullable slice; an empty id clears it.
func pointer(name domain.SliceName, args domain.Args) (domain.Result, error) {
	var in idArgs
	if err := args.Decode(&in); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	if in.ID == "" {
		return domain.Result{State: domain.State{name: nil}}, nil
	}
	return domain.Result{State: domain.State{name: in.ID}}, nil
}

// insertAt returns a copy of ids with id inserted at index, or appended
// when index is nil or out of range. Negative indexes count from the end.
func insertAt(ids []string, id string, index *int) []string {
	out := slices.Clone(ids)
	if out == nil {
		out = []string{}
	}
	if index == nil {
		return append(out, id)
	}
	i := *index
	if i < 0 {
		i += len(out) + 1
	}
	if i < 0 || i > len(out) {
		return append(out, id)
	}
	return slices.Insert(out, i, id)
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
