package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
	"github.com/mohae/deepcopy"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// sessionLock serialises editor access for one session. waiters counts the
// callers holding or queued on mu, so the table only keeps live sessions.
type sessionLock struct {
	mu      sync.Mutex
	waiters int
}

// Manager serialises access to editor sessions and their checkpoints.
// The HTTP and MCP pools route every editor call through WithLock, so a
// session sees one cycle at a time within a process, and across processes
// when a distributed locker is configured.
type Manager struct {
	store ports.SnapshotRepository

	tableMu sync.Mutex
	table   map[string]*sessionLock

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL passed to the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given snapshot repository.
func NewManager(store ports.SnapshotRepository, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		table:   make(map[string]*sessionLock),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// enter registers the caller on the session's lock; the caller then locks
// it and must call leave once unlocked.
func (m *Manager) enter(sessionID string) *sessionLock {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()

	l := m.table[sessionID]
	if l == nil {
		l = &sessionLock{}
		m.table[sessionID] = l
	}
	l.waiters++
	return l
}

// leave drops the caller and forgets the session once nobody waits on it.
func (m *Manager) leave(sessionID string) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()

	if l := m.table[sessionID]; l != nil {
		if l.waiters--; l.waiters <= 0 {
			delete(m.table, sessionID)
		}
	}
}

// Load retrieves an existing session snapshot from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snap, err
}

// LoadOrStart tries to load a session. If not found, it persists a new
// session whose snapshot holds a copy of initial.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string, initial domain.State) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}

		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		slices, _ := deepcopy.Copy(initial).(domain.State)
		if slices == nil {
			slices = domain.State{}
		}
		snap = &domain.Snapshot{TakenAt: time.Now(), Slices: slices}

		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, sessionID, snap); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		m.logger.Debug("session started", "session_id", sessionID)
		return nil
	})
	return snap, err
}

// Save persists the session snapshot.
func (m *Manager) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, snap)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot repository.
func (m *Manager) Store() ports.SnapshotRepository {
	return m.store
}

// WithLock runs fn while holding the session's in-process lock, then the
// distributed lock when one is configured. fn must not call back into the
// Manager for the same session; use Store for repository access inside it.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	l := m.enter(sessionID)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		m.leave(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Release even when ctx was canceled mid-operation.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
