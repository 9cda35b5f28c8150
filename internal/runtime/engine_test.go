package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/easel/internal/runtime"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/registry"
	"github.com/aretw0/easel/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handler(fn func(state *registry.CallableState, args domain.Args) domain.Result) registry.HandlerFunc {
	return func(_ context.Context, state *registry.CallableState, _ *registry.HandlerContext, args domain.Args) (domain.Result, error) {
		return fn(state, args), nil
	}
}

func setup(t *testing.T, initial domain.State, opts ...runtime.EngineOption) (*registry.Registry, *runtime.Engine) {
	t.Helper()
	reg := registry.NewRegistry()
	store := snapshot.NewStore(initial)
	return reg, runtime.NewEngine(reg, store, opts...)
}

func on(t *testing.T, reg *registry.Registry, name string, h registry.Handler) {
	t.Helper()
	_, err := reg.Register(name, h)
	require.NoError(t, err)
}

func TestDispatch_UnknownAction(t *testing.T) {
	_, eng := setup(t, nil)

	_, err := eng.Dispatch(context.Background(), domain.NewAction("NOT_REGISTERED", nil), nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestDispatch_Select(t *testing.T) {
	reg, eng := setup(t, nil)
	on(t, reg, "SELECT", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{State: domain.State{domain.SliceActiveElement: "el-1"}}
	}))

	res, err := eng.Dispatch(context.Background(), domain.NewAction("SELECT", nil), domain.State{}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.State{domain.SliceActiveElement: "el-1"}, res.State)
}

func TestDispatch_FollowUpsMerge(t *testing.T) {
	reg, eng := setup(t, nil)

	moved := domain.Elements{"a": {ID: "a", Parent: domain.ParentRef("b")}}
	on(t, reg, "MOVE", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{
			State:   domain.State{domain.SliceElements: moved},
			Actions: []domain.Action{domain.NewAction("RECALC_LAYOUT", domain.Args{"id": "a"})},
		}
	}))

	var sawElements bool
	on(t, reg, "RECALC_LAYOUT", handler(func(state *registry.CallableState, args domain.Args) domain.Result {
		sawElements = state.Touches(domain.SliceElements)
		return domain.Result{State: domain.State{domain.SlicePage: map[string]any{"layout": args["id"]}}}
	}))

	res, err := eng.Dispatch(context.Background(), domain.NewAction("MOVE", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, moved, res.State[domain.SliceElements])
	assert.Equal(t, map[string]any{"layout": "a"}, res.State[domain.SlicePage])
	assert.True(t, sawElements, "follow-up sees the accumulated state")
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "RECALC_LAYOUT", res.Actions[0].Name)
}

func TestDispatch_HandlersRunInOrderWithAccumulatedState(t *testing.T) {
	reg, eng := setup(t, domain.State{domain.SlicePage: "live"})

	var seen []any
	for _, v := range []string{"one", "two", "three"} {
		v := v
		on(t, reg, "A", handler(func(state *registry.CallableState, _ domain.Args) domain.Result {
			seen = append(seen, state.State[domain.SlicePage])
			return domain.Result{State: domain.State{domain.SlicePage: v}}
		}))
	}

	res, err := eng.Dispatch(context.Background(), domain.NewAction("A", nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{"live", "one", "two"}, seen)
	assert.Equal(t, "three", res.State[domain.SlicePage], "later handlers win")
}

func TestDispatch_InitialStateOverlaysLive(t *testing.T) {
	reg, eng := setup(t, domain.State{domain.SliceUI: "live-ui", domain.SlicePage: "live-page"})

	var view domain.State
	on(t, reg, "A", handler(func(state *registry.CallableState, _ domain.Args) domain.Result {
		view = state.State
		return domain.Result{}
	}))

	_, err := eng.Dispatch(context.Background(), domain.NewAction("A", nil), domain.State{domain.SliceUI: "initial"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "initial", view[domain.SliceUI])
	assert.Equal(t, "live-page", view[domain.SlicePage])
}

func TestDispatch_NestingBoundary(t *testing.T) {
	const maxNesting = 3

	chain := func(t *testing.T, depth int) error {
		reg, eng := setup(t, nil, runtime.WithMaxNesting(maxNesting))
		for i := 0; i < depth; i++ {
			next := actionName(i + 1)
			last := i == depth-1
			on(t, reg, actionName(i), handler(func(*registry.CallableState, domain.Args) domain.Result {
				if last {
					return domain.Result{}
				}
				return domain.Result{Actions: []domain.Action{domain.NewAction(next, nil)}}
			}))
		}
		_, err := eng.Dispatch(context.Background(), domain.NewAction(actionName(0), nil), nil, nil)
		return err
	}

	t.Run("Depth max-1 succeeds", func(t *testing.T) {
		// Actions at depths 0..max-1 all fit.
		assert.NoError(t, chain(t, maxNesting))
	})

	t.Run("Depth max fails", func(t *testing.T) {
		err := chain(t, maxNesting+1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMaxNestingExceeded)

		var nesting *domain.MaxNestingExceededError
		require.ErrorAs(t, err, &nesting)
		assert.Equal(t, maxNesting, nesting.Max)
		assert.Equal(t, []string{"A0", "A1", "A2"}, nesting.Path)
		assert.Contains(t, err.Error(), "A0 -> A1 -> A2")
	})
}

func actionName(i int) string {
	return "A" + string(rune('0'+i))
}

func TestDispatch_SelfEmittingActionIsBounded(t *testing.T) {
	reg, eng := setup(t, nil)
	on(t, reg, "LOOP", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{Actions: []domain.Action{domain.NewAction("LOOP", nil)}}
	}))

	_, err := eng.Dispatch(context.Background(), domain.NewAction("LOOP", nil), nil, nil)

	var nesting *domain.MaxNestingExceededError
	require.ErrorAs(t, err, &nesting)
	assert.Len(t, nesting.Path, runtime.DefaultMaxNesting)
}

func TestDispatch_FailingFollowUpAborts(t *testing.T) {
	reg, eng := setup(t, nil)

	var ranAfter bool
	on(t, reg, "ROOT", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{
			State: domain.State{domain.SlicePage: "x"},
			Actions: []domain.Action{
				domain.NewAction("MISSING", nil),
				domain.NewAction("AFTER", nil),
			},
		}
	}))
	on(t, reg, "AFTER", handler(func(*registry.CallableState, domain.Args) domain.Result {
		ranAfter = true
		return domain.Result{}
	}))

	res, err := eng.Dispatch(context.Background(), domain.NewAction("ROOT", nil), nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
	assert.Empty(t, res.State)
	assert.False(t, ranAfter)
}

func TestDispatch_HandlerErrorIsWrapped(t *testing.T) {
	reg, eng := setup(t, nil)
	cause := errors.New("network down")
	on(t, reg, "SAVE", registry.HandlerFunc(func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return domain.Result{}, cause
	}))

	_, err := eng.Dispatch(context.Background(), domain.NewAction("SAVE", nil), nil, nil)
	assert.ErrorIs(t, err, cause)

	var herr *domain.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "SAVE", herr.Action)
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	reg, eng := setup(t, nil)
	on(t, reg, "BOOM", handler(func(*registry.CallableState, domain.Args) domain.Result {
		panic("kaboom")
	}))

	_, err := eng.Dispatch(context.Background(), domain.NewAction("BOOM", nil), nil, nil)
	require.ErrorIs(t, err, domain.ErrHandlerPanic)

	var perr *domain.PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "kaboom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

func TestDispatch_ContextCancelledBetweenHandlers(t *testing.T) {
	reg, eng := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var second bool
	on(t, reg, "A", handler(func(*registry.CallableState, domain.Args) domain.Result {
		cancel()
		return domain.Result{}
	}))
	on(t, reg, "A", handler(func(*registry.CallableState, domain.Args) domain.Result {
		second = true
		return domain.Result{}
	}))

	_, err := eng.Dispatch(ctx, domain.NewAction("A", nil), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, second)
}

func TestDispatch_ElementCache(t *testing.T) {
	live := domain.State{domain.SliceElements: domain.Elements{
		"a": {ID: "a", Type: "text", Data: map[string]any{"text": "live"}},
	}}
	reg, eng := setup(t, live)

	on(t, reg, "EDIT", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{
			State:   domain.State{domain.SliceElements: domain.Elements{"a": {Data: map[string]any{"text": "edited"}}}},
			Actions: []domain.Action{domain.NewAction("READ", nil)},
		}
	}))

	var read domain.Element
	on(t, reg, "READ", registry.HandlerFunc(func(ctx context.Context, state *registry.CallableState, _ *registry.HandlerContext, _ domain.Args) (domain.Result, error) {
		el, err := state.GetElementByID(ctx, "a")
		read = el
		return domain.Result{}, err
	}))

	_, err := eng.Dispatch(context.Background(), domain.NewAction("EDIT", nil), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "edited", read.Data["text"], "follow-ups read the cycle cache")
	assert.Equal(t, "text", read.Type, "cached partial is completed from live state")

	// A new top-level cycle starts with an empty cache.
	_, err = eng.Dispatch(context.Background(), domain.NewAction("READ", nil), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "live", read.Data["text"])
}

func TestDispatch_HandlerContext(t *testing.T) {
	client := struct{ endpoint string }{"https://api.example.test/graphql"}
	reg, eng := setup(t, nil, runtime.WithClient(client))

	var got *registry.HandlerContext
	on(t, reg, "A", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{Actions: []domain.Action{domain.NewAction("B", nil)}}
	}))
	on(t, reg, "B", registry.HandlerFunc(func(_ context.Context, _ *registry.CallableState, hctx *registry.HandlerContext, _ domain.Args) (domain.Result, error) {
		got = hctx
		return domain.Result{}, nil
	}))

	ctx := runtime.WithCycleID(context.Background(), "cycle-1")
	_, err := eng.Dispatch(ctx, domain.NewAction("A", nil), nil, nil)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, client, got.Client)
	assert.Equal(t, []string{"A"}, got.Path)
	assert.Equal(t, 1, got.Depth())
	assert.Equal(t, "cycle-1", got.CycleID)
}

func TestDispatch_Hooks(t *testing.T) {
	var dispatched, completed []string
	var depths []int
	hooks := domain.LifecycleHooks{
		OnActionDispatch: func(_ context.Context, e *domain.ActionEvent) {
			dispatched = append(dispatched, e.Action)
			depths = append(depths, e.Depth)
		},
		OnActionComplete: func(_ context.Context, e *domain.ActionEvent) {
			completed = append(completed, e.Action)
		},
	}
	reg, eng := setup(t, nil, runtime.WithLifecycleHooks(hooks))
	on(t, reg, "A", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{Actions: []domain.Action{domain.NewAction("B", nil)}}
	}))
	on(t, reg, "B", handler(func(*registry.CallableState, domain.Args) domain.Result {
		return domain.Result{}
	}))

	_, err := eng.Dispatch(context.Background(), domain.NewAction("A", nil), nil, nil)
	require.NoError(t, err)

	if len(dispatched) != 2 || dispatched[0] != "A" || dispatched[1] != "B" {
		t.Errorf("Expected dispatch [A, B], got: %v", dispatched)
	}
	if len(completed) != 2 || completed[0] != "B" || completed[1] != "A" {
		t.Errorf("Expected complete [B, A], got: %v", completed)
	}
	assert.Equal(t, []int{0, 1}, depths)
}
