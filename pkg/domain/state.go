package domain

import (
	"reflect"
	"sort"
)

// SliceName identifies one independently mergeable part of the editor state.
type SliceName string

const (
	SliceElements         SliceName = "elements"
	SlicePage             SliceName = "page"
	SliceUI               SliceName = "ui"
	SliceSidebar          SliceName = "sidebar"
	SliceActiveElement    SliceName = "activeElement"
	SliceHighlightElement SliceName = "highlightElement"
	SlicePlugins          SliceName = "plugins"
	SliceRevisions        SliceName = "revisions"
	SliceRootElement      SliceName = "rootElement"
)

var knownSlices = map[SliceName]bool{
	SliceElements:         true,
	SlicePage:             true,
	SliceUI:               true,
	SliceSidebar:          true,
	SliceActiveElement:    true,
	SliceHighlightElement: true,
	SlicePlugins:          true,
	SliceRevisions:        true,
	SliceRootElement:      true,
}

// KnownSlice reports whether name belongs to the fixed slice set.
func KnownSlice(name SliceName) bool {
	return knownSlices[name]
}

// Nullable reports whether a slice may be explicitly cleared with a nil value.
// Every other slice ignores nil on commit.
func Nullable(name SliceName) bool {
	return name == SliceActiveElement || name == SliceHighlightElement
}

// State is a (possibly partial) set of slice values.
// Slice values are opaque to the core, except for the elements slice.
type State map[SliceName]any

// Merge returns a new State where every slice present in other
// replaces the receiver's value for that slice. Neither input is modified.
func (s State) Merge(other State) State {
	out := make(State, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (s State) Clone() State {
	return State{}.Merge(s)
}

// Touches reports whether any of the named slices is present.
func (s State) Touches(names ...SliceName) bool {
	for _, n := range names {
		if _, ok := s[n]; ok {
			return true
		}
	}
	return false
}

// Sets reports whether any of the named slices carries a non-nil value.
// A nil slice value proposes nothing, so it does not count.
func (s State) Sets(names ...SliceName) bool {
	for _, n := range names {
		if v, ok := s[n]; ok && !isNil(v) {
			return true
		}
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Slices returns the slice names present, sorted.
func (s State) Slices() []SliceName {
	names := make([]SliceName, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Elements returns the elements slice, normalising loosely typed values.
// A missing slice yields (nil, nil).
func (s State) Elements() (Elements, error) {
	v, ok := s[SliceElements]
	if !ok || v == nil {
		return nil, nil
	}
	return AsElements(v)
}

// String returns a string slice value, or "" when absent or not a string.
func (s State) String(name SliceName) string {
	v, _ := s[name].(string)
	return v
}
