package ports_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
)

// jsonRepo keeps snapshots as raw JSON, the way remote backends do.
type jsonRepo struct {
	data map[string][]byte
}

func newJSONRepo() *jsonRepo {
	return &jsonRepo{data: make(map[string][]byte)}
}

func (r *jsonRepo) Save(_ context.Context, sessionID string, snap *domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	r.data[sessionID] = raw
	return nil
}

func (r *jsonRepo) Load(_ context.Context, sessionID string) (*domain.Snapshot, error) {
	raw, ok := r.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, snap.Normalize()
}

func (r *jsonRepo) Delete(_ context.Context, sessionID string) error {
	delete(r.data, sessionID)
	return nil
}

func (r *jsonRepo) List(context.Context) ([]string, error) {
	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestSnapshotRepository_Contract(t *testing.T) {
	ports.RunSnapshotRepositoryContract(t, newJSONRepo())
}

func TestContractSnapshot_Fresh(t *testing.T) {
	a := ports.ContractSnapshot(1)
	b := ports.ContractSnapshot(1)
	a.Slices[domain.SliceRootElement] = "changed"

	if b.Slices.String(domain.SliceRootElement) != "root" {
		t.Errorf("Expected independent fixtures, got %v", b.Slices[domain.SliceRootElement])
	}
}
