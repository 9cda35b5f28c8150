package ports

import (
	"context"

	"github.com/aretw0/easel/pkg/domain"
)

// SnapshotRepository persists editor checkpoints per session.
// It lets a host close an editing session and reopen it later, on this
// process or another replica.
type SnapshotRepository interface {
	// Save persists the snapshot for a given session ID, replacing any previous one.
	Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
