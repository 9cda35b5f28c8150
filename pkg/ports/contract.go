package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractSnapshot builds the snapshot the contract suite saves and loads.
func ContractSnapshot(seq uint64) *domain.Snapshot {
	return &domain.Snapshot{
		Seq:     seq,
		TakenAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Slices: domain.State{
			domain.SliceRootElement:   "root",
			domain.SliceActiveElement: "title",
			domain.SlicePage:          map[string]any{"title": "Home"},
			domain.SliceElements: domain.Elements{
				"root":  {ID: "root", Type: "document", Parent: domain.ParentRef(""), Elements: []string{"title"}},
				"title": {ID: "title", Type: "heading", Parent: domain.ParentRef("root"), Elements: []string{}, Data: map[string]any{"text": "Hello"}},
			},
		},
	}
}

// RunSnapshotRepositoryContract runs a suite of tests to verify that a
// SnapshotRepository implementation adheres to the interface contract.
func RunSnapshotRepositoryContract(t *testing.T, repo SnapshotRepository) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := ContractSnapshot(7)

		err := repo.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := repo.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, uint64(7), loaded.Seq)
		assert.True(t, snap.TakenAt.Equal(loaded.TakenAt))
		assert.Equal(t, "root", loaded.Slices.String(domain.SliceRootElement))
		assert.Equal(t, "title", loaded.Slices.String(domain.SliceActiveElement))

		// Elements must come back typed, whatever the wire format.
		els, ok := loaded.Slices[domain.SliceElements].(domain.Elements)
		require.True(t, ok, "elements slice should be domain.Elements, got %T", loaded.Slices[domain.SliceElements])
		assert.Equal(t, "root", els["title"].ParentID())
		assert.Equal(t, []string{"title"}, els["root"].Elements)
		assert.Equal(t, "Hello", els["title"].Data["text"])
	})

	t.Run("Saved snapshot is isolated", func(t *testing.T) {
		snap := ContractSnapshot(8)
		require.NoError(t, repo.Save(ctx, sessionID, snap))

		snap.Slices[domain.SliceRootElement] = "mutated"

		loaded, err := repo.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "root", loaded.Slices.String(domain.SliceRootElement))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := repo.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, sessionID, ContractSnapshot(1)))

		err := repo.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = repo.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, repo.Save(ctx, id1, ContractSnapshot(1)))
		require.NoError(t, repo.Save(ctx, id2, ContractSnapshot(2)))

		defer func() {
			_ = repo.Delete(ctx, id1)
			_ = repo.Delete(ctx, id2)
		}()

		sessions, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
