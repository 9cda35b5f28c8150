// Package snapshot holds the live editor state and produces immutable
// point-in-time copies of it.
package snapshot

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Store keeps the current value of every state slice.
// Safe for concurrent use. Published slice values are never mutated:
// Commit builds new maps and swaps them in.
type Store struct {
	mu     sync.RWMutex
	slices domain.State
	seq    uint64
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report ignored slices.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store seeded with a deep copy of initial.
func NewStore(initial domain.State, opts ...Option) *Store {
	s := &Store{
		slices: copyState(initial),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live value of one slice.
func (s *Store) Get(name domain.SliceName) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slices[name]
	return v, ok
}

// Current returns a shallow copy of the live state.
// Slice values are shared and must be treated as read-only.
func (s *Store) Current() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slices.Clone()
}

// Element returns one element from the live elements slice.
func (s *Store) Element(id string) (domain.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	els, err := s.slices.Elements()
	if err != nil {
		return domain.Element{}, false
	}
	el, ok := els[id]
	return el, ok
}

// RootElement returns the id of the current root element, if any.
func (s *Store) RootElement() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slices.String(domain.SliceRootElement)
}

// Commit writes a partial state into the store and returns the names of
// the slices it wrote.
//
// Elements are merged one by one onto the existing ones. The active and
// highlighted element slices are written whenever present, so nil clears
// them. Every other known slice is replaced only by a non-nil value.
// Unknown slices are ignored.
func (s *Store) Commit(partial domain.State) []domain.SliceName {
	if len(partial) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.slices.Clone()
	var written []domain.SliceName

	for _, name := range partial.Slices() {
		value := partial[name]

		switch {
		case !domain.KnownSlice(name):
			s.logger.Debug("Ignoring unknown slice", "slice", name)
			continue
		case name == domain.SliceElements:
			if value == nil {
				continue
			}
			merged, err := mergeElements(s.slices, value)
			if err != nil {
				s.logger.Warn("Ignoring malformed elements slice", "error", err)
				continue
			}
			next[name] = merged
		case domain.Nullable(name):
			next[name] = value
		default:
			if value == nil {
				continue
			}
			next[name] = value
		}
		written = append(written, name)
	}

	s.slices = next
	return written
}

func mergeElements(current domain.State, value any) (domain.Elements, error) {
	incoming, err := domain.AsElements(value)
	if err != nil {
		return nil, err
	}
	prev, err := current.Elements()
	if err != nil {
		return nil, err
	}

	out := make(domain.Elements, len(prev)+len(incoming))
	for id, el := range prev {
		out[id] = el
	}
	for id, el := range incoming {
		if el.ID == "" {
			el.ID = id
		}
		if old, ok := prev[id]; ok {
			el = domain.MergeElement(old, el)
		}
		out[id] = el
	}
	return out, nil
}

// Take returns a deep copy of the live state.
func (s *Store) Take() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	return &domain.Snapshot{
		Seq:     s.seq,
		TakenAt: time.Now(),
		Slices:  copyState(s.slices),
	}
}

// Restore replaces every slice with a deep copy of the snapshot.
// A nil snapshot is ignored.
func (s *Store) Restore(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	slices := copyState(snap.Slices)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slices = slices
}

// Replace installs state as the new baseline.
func (s *Store) Replace(state domain.State) {
	slices := copyState(state)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slices = slices
}

func copyState(state domain.State) domain.State {
	if state == nil {
		return domain.State{}
	}
	out, _ := deepcopy.Copy(state).(domain.State)
	if out == nil {
		return domain.State{}
	}
	return out
}
