package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(result domain.Result) registry.HandlerFunc {
	return func(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
		return result, nil
	}
}

type structHandler struct{ name string }

func (h *structHandler) Handle(context.Context, *registry.CallableState, *registry.HandlerContext, domain.Args) (domain.Result, error) {
	return domain.Result{}, nil
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := registry.NewRegistry()

	_, err := reg.Resolve("NOT_REGISTERED")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)

	var unknown *domain.UnknownActionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "NOT_REGISTERED", unknown.Action)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := registry.NewRegistry()
	h := noop(domain.Result{})

	_, err := reg.Register("SELECT", h)
	require.NoError(t, err)

	_, err = reg.Register("SELECT", h)
	assert.ErrorIs(t, err, domain.ErrDuplicateHandler)
	assert.Equal(t, 1, reg.Len("SELECT"), "registry keeps exactly one")

	// The same handler under another name is fine.
	_, err = reg.Register("HOVER", h)
	assert.NoError(t, err)
}

func TestRegistry_DistinctClosuresAreDistinct(t *testing.T) {
	reg := registry.NewRegistry()

	_, err := reg.Register("A", noop(domain.Result{}))
	require.NoError(t, err)
	_, err = reg.Register("A", noop(domain.Result{}))
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len("A"))
}

func TestRegistry_PointerHandlers(t *testing.T) {
	reg := registry.NewRegistry()
	h := &structHandler{name: "x"}

	_, err := reg.Register("A", h)
	require.NoError(t, err)

	_, err = reg.Register("A", h)
	assert.ErrorIs(t, err, domain.ErrDuplicateHandler)

	_, err = reg.Register("A", &structHandler{name: "x"})
	assert.NoError(t, err, "a different pointer is a different handler")
}

func TestRegistry_NilHandler(t *testing.T) {
	reg := registry.NewRegistry()

	_, err := reg.Register("A", nil)
	assert.ErrorIs(t, err, domain.ErrNilHandler)

	var fn registry.HandlerFunc
	_, err = reg.Register("A", fn)
	assert.ErrorIs(t, err, domain.ErrNilHandler)

	assert.False(t, reg.Has("A"))
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	reg := registry.NewRegistry()
	first := noop(domain.Result{State: domain.State{domain.SlicePage: 1}})
	second := noop(domain.Result{State: domain.State{domain.SlicePage: 2}})

	off, err := reg.Register("A", first)
	require.NoError(t, err)
	_, err = reg.Register("A", second)
	require.NoError(t, err)

	assert.True(t, off())
	assert.False(t, off(), "second call is a no-op")

	handlers, err := reg.Resolve("A")
	require.NoError(t, err)
	require.Len(t, handlers, 1)

	res, err := handlers[0].Handle(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.State[domain.SlicePage])
}

func TestRegistry_EmptyGroupStillResolves(t *testing.T) {
	reg := registry.NewRegistry()
	off, err := reg.Register("A", noop(domain.Result{}))
	require.NoError(t, err)
	require.True(t, off())

	handlers, err := reg.Resolve("A")
	require.NoError(t, err)
	assert.Empty(t, handlers)
	assert.True(t, reg.Has("A"))
}

func TestRegistry_OrderSurvivesUnregistration(t *testing.T) {
	reg := registry.NewRegistry()

	var offs []registry.UnregisterFunc
	for i := 0; i < 4; i++ {
		off, err := reg.Register("A", noop(domain.Result{State: domain.State{domain.SlicePage: i}}))
		require.NoError(t, err)
		offs = append(offs, off)
	}
	offs[1]()

	handlers, err := reg.Resolve("A")
	require.NoError(t, err)

	var got []any
	for _, h := range handlers {
		res, err := h.Handle(context.Background(), nil, nil, nil)
		require.NoError(t, err)
		got = append(got, res.State[domain.SlicePage])
	}
	assert.Equal(t, []any{0, 2, 3}, got)
}

func TestRegistry_Names(t *testing.T) {
	reg := registry.NewRegistry()
	for _, name := range []string{"C", "A", "B"} {
		_, err := reg.Register(name, noop(domain.Result{}))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"A", "B", "C"}, reg.Names())
}

func TestRegistry_Concurrency(t *testing.T) {
	reg := registry.NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = reg.Register("A", noop(domain.Result{}))
		}()
		go func() {
			defer wg.Done()
			_, _ = reg.Resolve("A")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, reg.Len("A"))
}

func TestCallableState_WithoutLookup(t *testing.T) {
	state := registry.NewCallableState(domain.State{
		domain.SliceElements: domain.Elements{"a": {ID: "a", Type: "text"}},
	}, nil)

	el, err := state.GetElementByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "text", el.Type)

	_, err = state.GetElementByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrElementNotFound)
}
