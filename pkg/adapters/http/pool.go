package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
	"github.com/aretw0/easel/pkg/session"
)

// EditorFactory builds a fresh editor for a session that has no live editor yet.
type EditorFactory func(sessionID string) (ports.Editor, error)

// Pool keeps one live editor per session. Editors are created on first use
// and seeded from the last checkpoint in the session repository, if any.
// Undo history lives only in the pool; checkpoints persist state alone.
type Pool struct {
	factory  EditorFactory
	sessions *session.Manager
	logger   *slog.Logger

	mu      sync.Mutex
	editors map[string]ports.Editor

	autoCheckpoint bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithAutoCheckpoint saves a checkpoint after every request that changed state.
func WithAutoCheckpoint(enabled bool) PoolOption {
	return func(p *Pool) {
		p.autoCheckpoint = enabled
	}
}

// WithPoolLogger sets the pool logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a pool backed by the given session manager.
func NewPool(factory EditorFactory, sessions *session.Manager, opts ...PoolOption) *Pool {
	p := &Pool{
		factory:  factory,
		sessions: sessions,
		logger:   logging.NewNop(),
		editors:  make(map[string]ports.Editor),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do runs fn against the session's editor while holding the session lock.
func (p *Pool) Do(ctx context.Context, sessionID string, fn func(context.Context, ports.Editor) error) error {
	return p.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		ed, err := p.editor(ctx, sessionID)
		if err != nil {
			return err
		}
		return fn(ctx, ed)
	})
}

// Mutate is Do for requests that may change state. It reports the diff the
// call produced, and checkpoints it when auto-checkpointing is enabled.
func (p *Pool) Mutate(ctx context.Context, sessionID string, fn func(context.Context, ports.Editor) error) (*domain.StateDiff, error) {
	var diff *domain.StateDiff
	err := p.Do(ctx, sessionID, func(ctx context.Context, ed ports.Editor) error {
		before := ed.State()
		if err := fn(ctx, ed); err != nil {
			return err
		}
		diff = domain.Diff(before, ed.State())
		if diff != nil && p.autoCheckpoint {
			return p.save(ctx, sessionID, ed)
		}
		return nil
	})
	return diff, err
}

// Checkpoint persists the session's current state.
func (p *Pool) Checkpoint(ctx context.Context, sessionID string) error {
	return p.Do(ctx, sessionID, func(ctx context.Context, ed ports.Editor) error {
		return p.save(ctx, sessionID, ed)
	})
}

// Sessions lists the checkpointed sessions.
func (p *Pool) Sessions(ctx context.Context) ([]string, error) {
	return p.sessions.List(ctx)
}

// Forget drops the live editor, so the next request reloads the checkpoint.
func (p *Pool) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.editors, sessionID)
}

func (p *Pool) save(ctx context.Context, sessionID string, ed ports.Editor) error {
	if err := p.sessions.Store().Save(ctx, sessionID, ed.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint %q: %w", sessionID, err)
	}
	p.logger.Debug("session checkpointed", "session_id", sessionID)
	return nil
}

// editor must be called under the session lock.
func (p *Pool) editor(ctx context.Context, sessionID string) (ports.Editor, error) {
	p.mu.Lock()
	ed, ok := p.editors[sessionID]
	p.mu.Unlock()
	if ok {
		return ed, nil
	}

	ed, err := p.factory(sessionID)
	if err != nil {
		return nil, fmt.Errorf("create editor for %q: %w", sessionID, err)
	}

	snap, err := p.sessions.Store().Load(ctx, sessionID)
	switch {
	case err == nil:
		if err := ed.Load(snap); err != nil {
			return nil, fmt.Errorf("restore session %q: %w", sessionID, err)
		}
		p.logger.Debug("session restored", "session_id", sessionID, "seq", snap.Seq)
	case errors.Is(err, domain.ErrSessionNotFound):
		p.logger.Debug("session started", "session_id", sessionID)
	default:
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}

	p.mu.Lock()
	p.editors[sessionID] = ed
	p.mu.Unlock()
	return ed, nil
}
