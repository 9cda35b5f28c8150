package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventActionDispatch EventType = "action_dispatch"
	EventActionComplete EventType = "action_complete"
	EventCommit         EventType = "commit"
	EventSnapshot       EventType = "history_snapshot"
	EventUndo           EventType = "history_undo"
	EventRedo           EventType = "history_redo"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	CycleID   string    `json:"cycle_id,omitempty"`
}

// ActionEvent describes one dispatch of an action within a cycle.
type ActionEvent struct {
	EventBase
	Action   string        `json:"action"`
	Depth    int           `json:"depth"`
	Handlers int           `json:"handlers"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// CommitEvent describes state written into the snapshot store.
type CommitEvent struct {
	EventBase
	Slices  []SliceName `json:"slices"`
	Changed []SliceName `json:"changed"`
}

// HistoryEvent describes a snapshot, undo or redo.
type HistoryEvent struct {
	EventBase
	Past   int `json:"past"`
	Future int `json:"future"`
}

// LifecycleHooks defines callbacks for editor observability.
type LifecycleHooks struct {
	OnActionDispatch func(context.Context, *ActionEvent)
	OnActionComplete func(context.Context, *ActionEvent)
	OnCommit         func(context.Context, *CommitEvent)
	OnHistory        func(context.Context, *HistoryEvent)
}

// ComposeHooks fans every callback out to each of the given hook sets in order.
func ComposeHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnActionDispatch: func(ctx context.Context, e *ActionEvent) {
			for _, h := range all {
				if h.OnActionDispatch != nil {
					h.OnActionDispatch(ctx, e)
				}
			}
		},
		OnActionComplete: func(ctx context.Context, e *ActionEvent) {
			for _, h := range all {
				if h.OnActionComplete != nil {
					h.OnActionComplete(ctx, e)
				}
			}
		},
		OnCommit: func(ctx context.Context, e *CommitEvent) {
			for _, h := range all {
				if h.OnCommit != nil {
					h.OnCommit(ctx, e)
				}
			}
		},
		OnHistory: func(ctx context.Context, e *HistoryEvent) {
			for _, h := range all {
				if h.OnHistory != nil {
					h.OnHistory(ctx, e)
				}
			}
		},
	}
}
