package easel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/internal/runtime"
	"github.com/aretw0/easel/pkg/config"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/history"
	"github.com/aretw0/easel/pkg/registry"
	"github.com/aretw0/easel/pkg/snapshot"
	"github.com/google/uuid"
)

// Editor is the high-level entry point of the library. It owns one
// registry, state store, history and dispatch engine, so several editors
// can live side by side in one process.
type Editor struct {
	registry *registry.Registry
	store    *snapshot.Store
	history  *history.Manager
	engine   *runtime.Engine
	config   config.Config

	providers    []config.Provider
	maxNesting   int
	rootElement  string
	initial      domain.State
	tracked      []domain.SliceName
	historyLimit int
	client       any
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	Name         string
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithConfigProviders adds plugin configuration fragments, merged in order.
func WithConfigProviders(providers ...config.Provider) Option {
	return func(e *Editor) {
		e.providers = append(e.providers, providers...)
	}
}

// WithMaxNesting overrides the configured nesting bound.
func WithMaxNesting(n int) Option {
	return func(e *Editor) {
		e.maxNesting = n
	}
}

// WithRootElement sets the root id used when the state has none.
func WithRootElement(id string) Option {
	return func(e *Editor) {
		e.rootElement = id
	}
}

// WithInitialState seeds the live state.
func WithInitialState(state domain.State) Option {
	return func(e *Editor) {
		e.initial = state
	}
}

// WithTrackedSlices sets the slices whose change is recorded in history.
func WithTrackedSlices(names ...domain.SliceName) Option {
	return func(e *Editor) {
		e.tracked = names
	}
}

// WithHistoryLimit caps the undo stack.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) {
		e.historyLimit = n
	}
}

// WithClient hands an opaque host service, such as an API client, to handlers.
func WithClient(client any) Option {
	return func(e *Editor) {
		e.client = client
	}
}

// WithName labels the editor, typically with a session id.
func WithName(name string) Option {
	return func(e *Editor) {
		e.Name = name
	}
}

// New initializes an Editor.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{}
	for _, opt := range opts {
		opt(e)
	}

	cfg, err := config.Merge(e.providers...)
	if err != nil {
		return nil, err
	}
	if e.maxNesting != 0 {
		cfg.MaxEventActionsNesting = e.maxNesting
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	e.config = cfg

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.Name != "" {
		e.logger = e.logger.With("editor", e.Name)
	}

	e.registry = registry.NewRegistry()
	e.store = snapshot.NewStore(e.initial, snapshot.WithLogger(e.logger))

	historyOpts := []history.Option{
		history.WithLogger(e.logger),
		history.WithHooks(e.hooks),
		history.WithLimit(e.historyLimit),
	}
	if len(e.tracked) > 0 {
		historyOpts = append(historyOpts, history.WithTrackedSlices(e.tracked...))
	}
	e.history = history.New(e.store, historyOpts...)

	e.engine = runtime.NewEngine(e.registry, e.store,
		runtime.WithMaxNesting(cfg.MaxEventActionsNesting),
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithClient(e.client),
		runtime.WithEditor(e),
		runtime.WithDefaultRoot(e.rootElement),
	)

	return e, nil
}

// On registers a handler for an action name. The returned func removes
// exactly this registration.
func (e *Editor) On(name string, h registry.Handler) (registry.UnregisterFunc, error) {
	return e.registry.Register(name, h)
}

// OnFunc is On for plain functions.
func (e *Editor) OnFunc(name string, fn registry.HandlerFunc) (registry.UnregisterFunc, error) {
	return e.registry.Register(name, fn)
}

// Actions returns every action name with a handler group.
func (e *Editor) Actions() []string {
	return e.registry.Names()
}

// Trigger runs one full dispatch cycle for action and commits the merged
// result. On failure nothing is committed.
func (e *Editor) Trigger(ctx context.Context, action domain.Action) (domain.State, error) {
	cycleID := uuid.NewString()
	ctx = runtime.WithCycleID(ctx, cycleID)

	res, err := e.engine.Dispatch(ctx, action, domain.State{}, nil)
	if err != nil {
		e.logger.Warn("trigger failed", "action", action.Name, "cycle", cycleID, "error", err)
		return nil, fmt.Errorf("trigger %q: %w", action.Name, err)
	}

	state := res.State
	if state == nil {
		state = domain.State{}
	}
	e.commit(ctx, cycleID, state)
	return state, nil
}

func (e *Editor) commit(ctx context.Context, cycleID string, state domain.State) {
	if len(state) == 0 {
		return
	}

	e.history.MaybeSnapshot(state)

	before := e.store.Current()
	written := e.store.Commit(state)
	diff := domain.Diff(before, e.store.Current())

	e.logger.Debug("state committed", "cycle", cycleID, "slices", written, "changed", diff.Changed())

	if e.hooks.OnCommit != nil {
		e.hooks.OnCommit(ctx, &domain.CommitEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCommit, CycleID: cycleID},
			Slices:    written,
			Changed:   diff.Changed(),
		})
	}
}

// Undo steps back one snapshot. It reports whether anything changed.
func (e *Editor) Undo() bool { return e.history.Undo() }

// Redo re-applies the next snapshot. It reports whether anything changed.
func (e *Editor) Redo() bool { return e.history.Redo() }

// StartBatch groups the following tracked changes into one undo step.
func (e *Editor) StartBatch() { e.history.StartBatch() }

// EndBatch closes the current batch.
func (e *Editor) EndBatch() { e.history.EndBatch() }

// EnableHistory resumes snapshot capture.
func (e *Editor) EnableHistory() { e.history.Enable() }

// DisableHistory stops snapshot capture, for changes that must never be undoable.
func (e *Editor) DisableHistory() { e.history.Disable() }

// CanUndo reports whether Undo would do something.
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether Redo would do something.
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// History returns a copy of the undo/redo bookkeeping.
func (e *Editor) History() domain.HistoryRecord { return e.history.Record() }

// GetElementTree materialises the element tree under rootID from the
// committed state. An empty rootID means the current root element.
func (e *Editor) GetElementTree(ctx context.Context, rootID string) (*domain.ElementTree, error) {
	return runtime.NewResolver(e.store, e.rootElement).GetTree(ctx, rootID)
}

// State returns the live state. Slice values must be treated as read-only.
func (e *Editor) State() domain.State { return e.store.Current() }

// Snapshot returns a deep copy of the live state.
func (e *Editor) Snapshot() *domain.Snapshot { return e.store.Take() }

// Reset installs state as a new starting point and forgets all history.
func (e *Editor) Reset(state domain.State) {
	e.store.Replace(state)
	e.history.Clear()
}

// Load restores a previously saved snapshot as a new starting point.
func (e *Editor) Load(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("load: nil snapshot")
	}
	if err := snap.Normalize(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	e.store.Restore(snap)
	e.history.Clear()
	return nil
}

// Config returns the merged configuration.
func (e *Editor) Config() config.Config { return e.config }
