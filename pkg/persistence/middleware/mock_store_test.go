package middleware_test

import (
	"context"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
)

// MockStore is a simple map-based repository for testing middleware.
// It keeps the pointers it is given, so tests can inspect exactly what was saved.
type MockStore struct {
	data map[string]*domain.Snapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Snapshot),
	}
}

func (s *MockStore) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	s.data[sessionID] = snap
	return nil
}

func (s *MockStore) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	snap, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return snap, nil
}

func (s *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SnapshotRepository = (*MockStore)(nil)

func newSnapshot(text string) *domain.Snapshot {
	return &domain.Snapshot{
		Seq: 1,
		Slices: domain.State{
			domain.SliceRootElement: "root",
			domain.SliceElements: domain.Elements{
				"root":  {ID: "root", Elements: []string{"title"}},
				"title": {ID: "title", Parent: domain.ParentRef("root"), Elements: []string{}, Data: map[string]any{"text": text}},
			},
		},
	}
}

func titleText(t interface{ Fatalf(string, ...any) }, snap *domain.Snapshot) any {
	els, err := snap.Slices.Elements()
	if err != nil {
		t.Fatalf("elements: %v", err)
	}
	return els["title"].Data["text"]
}
