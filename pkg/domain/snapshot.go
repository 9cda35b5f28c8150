package domain

import (
	"fmt"
	"time"
)

// Snapshot is a point-in-time capture of every state slice.
// Only the snapshot store knows how to produce or apply one; everything else
// treats it as an opaque handle.
type Snapshot struct {
	Seq     uint64    `json:"seq"`
	TakenAt time.Time `json:"taken_at"`
	Slices  State     `json:"slices"`
}

// Normalize re-types slice values that lost their Go types in transit
// (e.g. after a JSON round-trip through a session repository).
func (s *Snapshot) Normalize() error {
	if s == nil || s.Slices == nil {
		return nil
	}
	els, err := s.Slices.Elements()
	if err != nil {
		return fmt.Errorf("snapshot %d: %w", s.Seq, err)
	}
	if els != nil {
		s.Slices[SliceElements] = els
	}
	return nil
}

// HistoryRecord is the undo/redo bookkeeping of an editor.
type HistoryRecord struct {
	Past       []*Snapshot
	Future     []*Snapshot
	Present    *Snapshot
	Busy       bool
	IsBatching bool
	IsDisabled bool
}
