package easel_test

import (
	"context"
	"testing"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/pkg/config"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func document() domain.State {
	return domain.State{
		domain.SliceRootElement: "r",
		domain.SliceElements: domain.Elements{
			"r": {ID: "r", Type: "document", Parent: domain.ParentRef(""), Elements: []string{"a", "b"}},
			"a": {ID: "a", Type: "block", Parent: domain.ParentRef("r"), Elements: []string{"c"}},
			"b": {ID: "b", Type: "block", Parent: domain.ParentRef("r"), Elements: []string{}},
			"c": {ID: "c", Type: "text", Parent: domain.ParentRef("a"), Elements: []string{}, Data: map[string]any{"text": "v0"}},
		},
	}
}

func newEditor(t *testing.T, opts ...easel.Option) *easel.Editor {
	t.Helper()
	ed, err := easel.New(append([]easel.Option{easel.WithInitialState(document())}, opts...)...)
	require.NoError(t, err)
	return ed
}

// setText registers a SET_TEXT handler writing args.text into element c.
func setText(t *testing.T, ed *easel.Editor) {
	t.Helper()
	_, err := ed.OnFunc("SET_TEXT", func(_ context.Context, _ *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
		return domain.Result{State: domain.State{
			domain.SliceElements: domain.Elements{"c": {Data: map[string]any{"text": args["text"]}}},
		}}, nil
	})
	require.NoError(t, err)
}

func text(t *testing.T, ed *easel.Editor) any {
	t.Helper()
	els, err := ed.State().Elements()
	require.NoError(t, err)
	return els["c"].Data["text"]
}

func trigger(t *testing.T, ed *easel.Editor, name string, args domain.Args) domain.State {
	t.Helper()
	state, err := ed.Trigger(context.Background(), domain.NewAction(name, args))
	require.NoError(t, err)
	return state
}

func TestEditor_TriggerUnknownAction(t *testing.T) {
	ed := newEditor(t)

	_, err := ed.Trigger(context.Background(), domain.NewAction("NOT_REGISTERED", nil))
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestEditor_SelectScenario(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.OnFunc("SELECT", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{State: domain.State{domain.SliceActiveElement: "el-1"}}, nil
	})
	require.NoError(t, err)

	state := trigger(t, ed, "SELECT", nil)

	assert.Equal(t, domain.State{domain.SliceActiveElement: "el-1"}, state)
	assert.Equal(t, "el-1", ed.State()[domain.SliceActiveElement])
	assert.False(t, ed.CanUndo(), "activeElement is not tracked")
}

func TestEditor_MoveScenario(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.OnFunc("MOVE", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{
			State: domain.State{domain.SliceElements: domain.Elements{
				"c": {Parent: domain.ParentRef("b")},
			}},
			Actions: []domain.Action{domain.NewAction("RECALC_LAYOUT", domain.Args{"id": "c"})},
		}, nil
	})
	require.NoError(t, err)
	_, err = ed.OnFunc("RECALC_LAYOUT", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{State: domain.State{domain.SlicePage: map[string]any{"layout": "dirty"}}}, nil
	})
	require.NoError(t, err)

	state := trigger(t, ed, "MOVE", nil)

	assert.True(t, state.Touches(domain.SliceElements))
	assert.True(t, state.Touches(domain.SlicePage))

	els, err := ed.State().Elements()
	require.NoError(t, err)
	assert.Equal(t, "b", els["c"].ParentID())
	assert.Equal(t, "text", els["c"].Type)
	assert.Equal(t, map[string]any{"layout": "dirty"}, ed.State()[domain.SlicePage])
	assert.True(t, ed.CanUndo())
}

func TestEditor_DuplicateRegistration(t *testing.T) {
	ed := newEditor(t)
	fn := registry.HandlerFunc(func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{}, nil
	})

	_, err := ed.On("A", fn)
	require.NoError(t, err)
	_, err = ed.On("A", fn)
	assert.ErrorIs(t, err, domain.ErrDuplicateHandler)
}

func TestEditor_UnregisterIsIdempotent(t *testing.T) {
	ed := newEditor(t)
	off, err := ed.OnFunc("A", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{State: domain.State{domain.SlicePage: "x"}}, nil
	})
	require.NoError(t, err)

	assert.True(t, off())
	assert.False(t, off())

	state := trigger(t, ed, "A", nil)
	assert.Empty(t, state, "the group survives with no handlers")
}

func TestEditor_UndoRedo(t *testing.T) {
	ed := newEditor(t)
	setText(t, ed)

	assert.False(t, ed.Undo(), "undo on empty past is a no-op")
	assert.Equal(t, "v0", text(t, ed))

	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v1"})
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v2"})

	require.True(t, ed.Undo())
	assert.Equal(t, "v1", text(t, ed))
	require.True(t, ed.Undo())
	assert.Equal(t, "v0", text(t, ed))

	require.True(t, ed.Redo())
	assert.Equal(t, "v1", text(t, ed))
	require.True(t, ed.CanRedo())
}

func TestEditor_NilElementsIsNotUndoable(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.OnFunc("SET_PAGE", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{State: domain.State{domain.SliceElements: nil, domain.SlicePage: "p1"}}, nil
	})
	require.NoError(t, err)

	trigger(t, ed, "SET_PAGE", nil)

	assert.False(t, ed.CanUndo())
	assert.False(t, ed.Undo())
	assert.Equal(t, "p1", ed.State()[domain.SlicePage])
	assert.Equal(t, "v0", text(t, ed))
}

func TestEditor_BatchScenario(t *testing.T) {
	ed := newEditor(t)
	setText(t, ed)
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "before"})

	ed.StartBatch()
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "step-1"})
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "step-2"})
	ed.EndBatch()

	require.True(t, ed.Undo())
	assert.Equal(t, "before", text(t, ed), "both batch mutations undo as one step")
}

func TestEditor_DisableHistoryTwice(t *testing.T) {
	ed := newEditor(t)
	setText(t, ed)

	ed.DisableHistory()
	ed.DisableHistory()
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v1"})

	assert.Empty(t, ed.History().Past)

	ed.EnableHistory()
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v2"})
	assert.Len(t, ed.History().Past, 1)
}

func TestEditor_GetElementTree(t *testing.T) {
	ed := newEditor(t)

	tree, err := ed.GetElementTree(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, tree.Elements, 2)
	assert.Equal(t, "a", tree.Elements[0].ID)
	assert.Equal(t, "b", tree.Elements[1].ID)

	require.Len(t, tree.Elements[0].Elements, 1)
	c := tree.Elements[0].Elements[0]
	assert.Equal(t, "c", c.ID)
	assert.Equal(t, []string{"r", "a"}, c.Path)
}

func TestEditor_FailedCycleCommitsNothing(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.OnFunc("BROKEN", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{
			State:   domain.State{domain.SlicePage: "half-done"},
			Actions: []domain.Action{domain.NewAction("MISSING", nil)},
		}, nil
	})
	require.NoError(t, err)

	_, err = ed.Trigger(context.Background(), domain.NewAction("BROKEN", nil))
	require.ErrorIs(t, err, domain.ErrUnknownAction)

	_, ok := ed.State()[domain.SlicePage]
	assert.False(t, ok)
}

func TestEditor_ConfigProviders(t *testing.T) {
	ed := newEditor(t, easel.WithConfigProviders(
		config.Static(map[string]any{"maxEventActionsNesting": 2}),
	))
	assert.Equal(t, 2, ed.Config().MaxEventActionsNesting)

	_, err := ed.OnFunc("LOOP", func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{Actions: []domain.Action{domain.NewAction("LOOP", nil)}}, nil
	})
	require.NoError(t, err)

	_, err = ed.Trigger(context.Background(), domain.NewAction("LOOP", nil))
	var nesting *domain.MaxNestingExceededError
	require.ErrorAs(t, err, &nesting)
	assert.Equal(t, []string{"LOOP", "LOOP"}, nesting.Path)
}

func TestEditor_InvalidConfig(t *testing.T) {
	_, err := easel.New(easel.WithMaxNesting(-1))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEditor_HandlersCanDriveTheEditor(t *testing.T) {
	ed := newEditor(t)
	setText(t, ed)
	_, err := ed.OnFunc("HOVER", func(ctx context.Context, _ *registry.CallableState, h *registry.HandlerContext, _ domain.Args) (domain.Result, error) {
		h.Editor.DisableHistory()
		return domain.Result{State: domain.State{domain.SliceHighlightElement: "c"}}, nil
	})
	require.NoError(t, err)

	trigger(t, ed, "HOVER", nil)
	assert.True(t, ed.History().IsDisabled)
	assert.Equal(t, "c", ed.State()[domain.SliceHighlightElement])
}

func TestEditor_CommitHook(t *testing.T) {
	var events []*domain.CommitEvent
	ed := newEditor(t, easel.WithLifecycleHooks(domain.LifecycleHooks{
		OnCommit: func(_ context.Context, e *domain.CommitEvent) {
			events = append(events, e)
		},
	}))
	setText(t, ed)

	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v1"})

	require.Len(t, events, 1)
	assert.Equal(t, []domain.SliceName{domain.SliceElements}, events[0].Slices)
	assert.Equal(t, []domain.SliceName{domain.SliceElements}, events[0].Changed)
	assert.NotEmpty(t, events[0].CycleID)
}

func TestEditor_ResetAndLoad(t *testing.T) {
	ed := newEditor(t)
	setText(t, ed)
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v1"})
	saved := ed.Snapshot()
	trigger(t, ed, "SET_TEXT", domain.Args{"text": "v2"})

	require.NoError(t, ed.Load(saved))
	assert.Equal(t, "v1", text(t, ed))
	assert.False(t, ed.CanUndo(), "load is a new starting point")

	ed.Reset(document())
	assert.Equal(t, "v0", text(t, ed))
	assert.Empty(t, ed.History().Past)

	assert.Error(t, ed.Load(nil))
}
