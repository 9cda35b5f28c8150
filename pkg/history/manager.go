package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/domain"
)

// Snapshotter produces and applies snapshots of the live state.
// The snapshot store is the production implementation.
type Snapshotter interface {
	Take() *domain.Snapshot
	Restore(*domain.Snapshot)
}

// Manager keeps the undo/redo stacks of one editor.
//
// Snapshot, Undo and Redo are guarded by a busy flag: a call arriving while
// another one is in flight is dropped, not queued.
type Manager struct {
	store Snapshotter

	mu      sync.Mutex
	past    []*domain.Snapshot
	future  []*domain.Snapshot
	present *domain.Snapshot

	busy          atomic.Bool
	batching      atomic.Bool
	batchCaptured atomic.Bool
	disabled      atomic.Bool

	tracked []domain.SliceName
	limit   int
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
}

// Option configures a Manager.
type Option func(*Manager)

// WithTrackedSlices sets the slices whose change triggers a snapshot.
// Defaults to the elements slice.
func WithTrackedSlices(names ...domain.SliceName) Option {
	return func(m *Manager) {
		if len(names) > 0 {
			m.tracked = append([]domain.SliceName(nil), names...)
		}
	}
}

// WithLimit caps the undo stack; the oldest entries are dropped first.
// Zero or less means unlimited.
func WithLimit(n int) Option {
	return func(m *Manager) {
		m.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHooks registers the OnHistory hook.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// New creates a Manager over store.
func New(store Snapshotter, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		tracked: []domain.SliceName{domain.SliceElements},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tracked returns the slices that trigger snapshots.
func (m *Manager) Tracked() []domain.SliceName {
	return append([]domain.SliceName(nil), m.tracked...)
}

// MaybeSnapshot records the live state before proposed is committed, when
// proposed touches a tracked slice and history is enabled.
//
// Inside a batch only the first tracked change is recorded, so the whole
// batch undoes in one step.
func (m *Manager) MaybeSnapshot(proposed domain.State) bool {
	if len(proposed) == 0 || m.disabled.Load() || !proposed.Sets(m.tracked...) {
		return false
	}
	if m.batching.Load() {
		if !m.batchCaptured.CompareAndSwap(false, true) {
			return false
		}
		if !m.Snapshot() {
			m.batchCaptured.Store(false)
			return false
		}
		return true
	}
	return m.Snapshot()
}

// Snapshot unconditionally records the live state as a new starting point:
// the future is discarded and the present cleared.
func (m *Manager) Snapshot() bool {
	if !m.busy.CompareAndSwap(false, true) {
		m.logger.Debug("History busy, snapshot dropped")
		return false
	}
	defer m.busy.Store(false)

	snap := m.store.Take()

	m.mu.Lock()
	m.future = nil
	m.past = append(m.past, snap)
	if m.limit > 0 && len(m.past) > m.limit {
		excess := len(m.past) - m.limit
		m.past = append([]*domain.Snapshot(nil), m.past[excess:]...)
	}
	m.present = nil
	past, future := len(m.past), len(m.future)
	m.mu.Unlock()

	m.logger.Debug("History snapshot", "seq", snap.Seq, "past", past)
	m.emit(domain.EventSnapshot, past, future)
	return true
}

// Undo restores the most recent past snapshot. It reports whether
// anything happened; an empty past or a busy manager are no-ops.
func (m *Manager) Undo() bool {
	if !m.busy.CompareAndSwap(false, true) {
		m.logger.Debug("History busy, undo dropped")
		return false
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	if len(m.past) == 0 {
		m.mu.Unlock()
		return false
	}
	prev := m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]

	current := m.present
	if current == nil {
		current = m.store.Take()
	}
	m.future = append([]*domain.Snapshot{current}, m.future...)
	m.present = prev
	m.store.Restore(prev)
	past, future := len(m.past), len(m.future)
	m.mu.Unlock()

	m.logger.Debug("History undo", "seq", prev.Seq, "past", past, "future", future)
	m.emit(domain.EventUndo, past, future)
	return true
}

// Redo re-applies the next future snapshot. An empty future clears the
// present and does nothing else.
func (m *Manager) Redo() bool {
	if !m.busy.CompareAndSwap(false, true) {
		m.logger.Debug("History busy, redo dropped")
		return false
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	if len(m.future) == 0 {
		m.present = nil
		m.mu.Unlock()
		return false
	}
	next := m.future[0]
	m.future = m.future[1:]
	if m.present != nil {
		m.past = append(m.past, m.present)
	}
	m.present = next
	m.store.Restore(next)
	past, future := len(m.past), len(m.future)
	m.mu.Unlock()

	m.logger.Debug("History redo", "seq", next.Seq, "past", past, "future", future)
	m.emit(domain.EventRedo, past, future)
	return true
}

// StartBatch suppresses further snapshots until EndBatch.
func (m *Manager) StartBatch() {
	if m.batching.CompareAndSwap(false, true) {
		m.batchCaptured.Store(false)
	}
}

// EndBatch ends the current batch.
func (m *Manager) EndBatch() {
	m.batching.Store(false)
	m.batchCaptured.Store(false)
}

// Enable turns snapshot capture back on.
func (m *Manager) Enable() { m.disabled.Store(false) }

// Disable turns snapshot capture off. Undo and redo keep working.
func (m *Manager) Disable() { m.disabled.Store(true) }

// Clear drops both stacks and the present, keeping the flags.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = nil
	m.future = nil
	m.present = nil
}

// CanUndo reports whether the past holds a snapshot.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 0
}

// CanRedo reports whether the future holds a snapshot.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future) > 0
}

// Record returns a copy of the bookkeeping. Snapshots are shared.
func (m *Manager) Record() domain.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.HistoryRecord{
		Past:       append([]*domain.Snapshot(nil), m.past...),
		Future:     append([]*domain.Snapshot(nil), m.future...),
		Present:    m.present,
		Busy:       m.busy.Load(),
		IsBatching: m.batching.Load(),
		IsDisabled: m.disabled.Load(),
	}
}

func (m *Manager) emit(t domain.EventType, past, future int) {
	if m.hooks.OnHistory == nil {
		return
	}
	m.hooks.OnHistory(context.Background(), &domain.HistoryEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: t},
		Past:      past,
		Future:    future,
	})
}
