package domain

import (
	"reflect"
	"sort"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// Slices holds the new value of every added or modified slice.
	// For deletions, the slice is present with a nil value.
	Slices State `json:"slices,omitempty"`

	// Elements lists ids of elements added, modified or removed
	// inside the elements slice.
	Elements []string `json:"elements,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, every slice of newState counts as a change.
// It returns nil when nothing changed.
func Diff(oldState, newState State) *StateDiff {
	diff := &StateDiff{
		Slices: diffSlices(oldState, newState),
	}
	diff.Elements = diffElements(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffSlices(old, new State) State {
	delta := make(State)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffElements compares the elements slices element by element.
// Unreadable slices are treated as empty.
func diffElements(old, new State) []string {
	oldEls, _ := old.Elements()
	newEls, _ := new.Elements()

	var changed []string
	for id, el := range newEls {
		prev, ok := oldEls[id]
		if !ok || !reflect.DeepEqual(prev, el) {
			changed = append(changed, id)
		}
	}
	for id := range oldEls {
		if _, ok := newEls[id]; !ok {
			changed = append(changed, id)
		}
	}
	sort.Strings(changed)
	return changed
}

// Changed returns the changed slice names, sorted.
func (d *StateDiff) Changed() []SliceName {
	if d == nil {
		return nil
	}
	return d.Slices.Slices()
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d == nil || (len(d.Slices) == 0 && len(d.Elements) == 0)
}
