package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/easel/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that write every event to logger.
// Dispatches log at debug; completions, commits and history changes at info;
// failed actions at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActionDispatch: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_dispatch",
				"action", e.Action,
				"depth", e.Depth,
				"handlers", e.Handlers,
				"cycle_id", e.CycleID,
			)
		},
		OnActionComplete: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "action_failed",
					"action", e.Action,
					"depth", e.Depth,
					"cycle_id", e.CycleID,
					"err", e.Err,
				)
				return
			}
			logger.InfoContext(ctx, "action_complete",
				"action", e.Action,
				"depth", e.Depth,
				"duration", e.Duration,
				"cycle_id", e.CycleID,
			)
		},
		OnCommit: func(ctx context.Context, e *domain.CommitEvent) {
			logger.InfoContext(ctx, "commit",
				"slices", e.Slices,
				"changed", e.Changed,
				"cycle_id", e.CycleID,
			)
		},
		OnHistory: func(ctx context.Context, e *domain.HistoryEvent) {
			logger.InfoContext(ctx, string(e.Type),
				"past", e.Past,
				"future", e.Future,
			)
		},
	}
}
