package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Merge(t *testing.T) {
	base := domain.State{domain.SlicePage: "p1", domain.SliceUI: "u1"}
	next := domain.State{domain.SliceUI: "u2", domain.SliceSidebar: "s"}

	merged := base.Merge(next)

	assert.Equal(t, domain.State{
		domain.SlicePage:    "p1",
		domain.SliceUI:      "u2",
		domain.SliceSidebar: "s",
	}, merged)
	assert.Equal(t, "u1", base[domain.SliceUI], "receiver must not be modified")
}

func TestState_Touches(t *testing.T) {
	s := domain.State{domain.SliceActiveElement: nil}
	assert.True(t, s.Touches(domain.SliceActiveElement), "a present nil slice still counts")
	assert.False(t, s.Touches(domain.SliceElements))
}

func TestState_Sets(t *testing.T) {
	assert.False(t, domain.State{domain.SliceElements: nil}.Sets(domain.SliceElements))
	assert.False(t, domain.State{domain.SliceElements: domain.Elements(nil)}.Sets(domain.SliceElements))
	assert.True(t, domain.State{domain.SliceElements: domain.Elements{}}.Sets(domain.SliceElements))
	assert.True(t, domain.State{domain.SlicePage: "p"}.Sets(domain.SliceElements, domain.SlicePage))
	assert.False(t, domain.State{}.Sets(domain.SliceElements))
}

func TestMergeElement_ParentPrecedence(t *testing.T) {
	prev := domain.Element{ID: "a", Type: "text", Parent: domain.ParentRef("root"), Elements: []string{"x"}}

	t.Run("Keeps previous parent when unset", func(t *testing.T) {
		got := domain.MergeElement(prev, domain.Element{ID: "a", Data: map[string]any{"k": 1}})
		assert.Equal(t, "root", got.ParentID())
		assert.Equal(t, "text", got.Type)
		assert.Equal(t, []string{"x"}, got.Elements)
		assert.Equal(t, map[string]any{"k": 1}, got.Data)
	})

	t.Run("Explicit parent wins", func(t *testing.T) {
		got := domain.MergeElement(prev, domain.Element{ID: "a", Parent: domain.ParentRef("other")})
		assert.Equal(t, "other", got.ParentID())
	})

	t.Run("Explicit empty parent detaches", func(t *testing.T) {
		got := domain.MergeElement(prev, domain.Element{ID: "a", Parent: domain.ParentRef("")})
		require.NotNil(t, got.Parent)
		assert.Equal(t, "", got.ParentID())
	})
}

func TestAsElements_FromJSON(t *testing.T) {
	raw := `{"a": {"type": "block", "parent": "root", "elements": ["b"], "data": {"width": 10}}}`
	var loose map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &loose))

	els, err := domain.AsElements(loose)
	require.NoError(t, err)
	require.Contains(t, els, "a")

	el := els["a"]
	assert.Equal(t, "a", el.ID, "id defaults to the map key")
	assert.Equal(t, "block", el.Type)
	assert.Equal(t, "root", el.ParentID())
	assert.Equal(t, []string{"b"}, el.Elements)
	assert.EqualValues(t, 10, el.Data["width"])
}

func TestAsElements_Invalid(t *testing.T) {
	_, err := domain.AsElements("not-a-map")
	assert.Error(t, err)
}

func TestArgs_Decode(t *testing.T) {
	var target struct {
		ID       string `mapstructure:"id"`
		Position int    `mapstructure:"position"`
	}
	args := domain.Args{"id": "el-1", "position": "3"}

	require.NoError(t, args.Decode(&target))
	assert.Equal(t, "el-1", target.ID)
	assert.Equal(t, 3, target.Position)
}

func TestNewAction_CopiesArgs(t *testing.T) {
	args := domain.Args{"id": "a"}
	action := domain.NewAction("SELECT", args)
	args["id"] = "b"

	assert.Equal(t, "a", action.Args["id"])
}

func TestErrors_Unwrap(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{&domain.DuplicateHandlerError{Action: "A"}, domain.ErrDuplicateHandler},
		{&domain.UnknownActionError{Action: "A"}, domain.ErrUnknownAction},
		{&domain.MaxNestingExceededError{Max: 2, Path: []string{"A", "A"}}, domain.ErrMaxNestingExceeded},
		{&domain.ElementNotFoundError{ID: "x"}, domain.ErrElementNotFound},
		{&domain.PanicError{Action: "A", Value: "boom"}, domain.ErrHandlerPanic},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.target, tt.err.Error())
	}

	inner := errors.New("network down")
	assert.ErrorIs(t, &domain.HandlerError{Action: "A", Err: inner}, inner)

	nesting := &domain.MaxNestingExceededError{Max: 2, Path: []string{"A", "B"}}
	assert.Contains(t, nesting.Error(), "A -> B")
}

func TestSnapshot_Normalize(t *testing.T) {
	snap := &domain.Snapshot{
		Seq: 1,
		Slices: domain.State{
			domain.SliceElements: map[string]any{"a": map[string]any{"id": "a", "type": "text"}},
		},
	}

	require.NoError(t, snap.Normalize())
	els, ok := snap.Slices[domain.SliceElements].(domain.Elements)
	require.True(t, ok)
	assert.Equal(t, "text", els["a"].Type)
}
