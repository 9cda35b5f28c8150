package ports

import (
	"context"

	"github.com/aretw0/easel/pkg/domain"
)

// Editor is the surface outer adapters (HTTP, CLI) drive.
// *easel.Editor implements it.
type Editor interface {
	Trigger(ctx context.Context, action domain.Action) (domain.State, error)
	Undo() bool
	Redo() bool
	StartBatch()
	EndBatch()
	EnableHistory()
	DisableHistory()

	// GetElementTree resolves the tree under rootID; "" means the current root.
	GetElementTree(ctx context.Context, rootID string) (*domain.ElementTree, error)
	State() domain.State
	History() domain.HistoryRecord
	Snapshot() *domain.Snapshot
	Load(snap *domain.Snapshot) error
}
