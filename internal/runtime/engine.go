package runtime

import (
	"context"
	"fmt"
	"log/slog"
	rtdebug "runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/registry"
)

// DefaultMaxNesting bounds follow-up chains when no configuration says otherwise.
const DefaultMaxNesting = 5

// LiveState is the read side of the snapshot store.
type LiveState interface {
	Current() domain.State
	Element(id string) (domain.Element, bool)
	RootElement() string
}

// Engine routes actions to their handlers and folds the results.
// It never writes the live state; committing is the caller's job.
type Engine struct {
	registry *registry.Registry
	live     LiveState
	resolver *Resolver

	maxNesting int
	client     any
	editor     registry.EditorAPI
	logger     *slog.Logger
	hooks      domain.LifecycleHooks

	cacheMu sync.RWMutex
	cache   domain.Elements
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxNesting sets the deepest allowed follow-up chain.
func WithMaxNesting(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxNesting = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers dispatch hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClient hands an opaque host service to every handler.
func WithClient(client any) EngineOption {
	return func(e *Engine) {
		e.client = client
	}
}

// WithEditor exposes the editor API to handlers.
func WithEditor(editor registry.EditorAPI) EngineOption {
	return func(e *Engine) {
		e.editor = editor
	}
}

// WithDefaultRoot sets the root id used by tree lookups when the live
// state has no root element.
func WithDefaultRoot(id string) EngineOption {
	return func(e *Engine) {
		e.resolver.defaultRoot = id
	}
}

// NewEngine creates an engine over a registry and the live state.
func NewEngine(reg *registry.Registry, live LiveState, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:   reg,
		live:       live,
		maxNesting: DefaultMaxNesting,
		logger:     logging.NewNop(),
	}
	e.resolver = &Resolver{live: live, cache: e.cached}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxNesting returns the configured nesting bound.
func (e *Engine) MaxNesting() int { return e.maxNesting }

// Resolver returns the element resolver bound to this engine's cycle cache.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Dispatch runs every handler of action, then every follow-up action they
// queued, and returns the merged partial state.
//
// path lists the actions that led here; it is empty for a top-level
// dispatch, which also resets the element cache.
func (e *Engine) Dispatch(ctx context.Context, action domain.Action, initial domain.State, path []string) (domain.Result, error) {
	if len(path) >= e.maxNesting {
		chain := append([]string(nil), path...)
		return domain.Result{}, &domain.MaxNestingExceededError{Max: e.maxNesting, Path: chain}
	}
	if len(path) == 0 {
		e.resetCache()
	}

	handlers, err := e.registry.Resolve(action.Name)
	if err != nil {
		return domain.Result{}, err
	}

	start := time.Now()
	e.emitDispatch(ctx, action.Name, len(path), len(handlers))
	e.logger.Debug("dispatching action", "action", action.Name, "depth", len(path), "handlers", len(handlers))

	result, err := e.dispatch(ctx, action, initial, path, handlers)
	e.emitComplete(ctx, action.Name, len(path), len(handlers), time.Since(start), err)
	if err != nil {
		e.logger.Debug("action failed", "action", action.Name, "depth", len(path), "error", err)
		return domain.Result{}, err
	}
	return result, nil
}

func (e *Engine) dispatch(ctx context.Context, action domain.Action, initial domain.State, path []string, handlers []registry.Handler) (domain.Result, error) {
	if initial == nil {
		initial = domain.State{}
	}
	accumulated := domain.State{}
	var queue []domain.Action

	hctx := &registry.HandlerContext{
		Client:  e.client,
		Editor:  e.editor,
		Path:    path,
		CycleID: CycleIDFrom(ctx),
	}

	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, fmt.Errorf("dispatch of %q interrupted: %w", action.Name, err)
		}

		view := e.live.Current().Merge(initial).Merge(accumulated)
		state := registry.NewCallableState(view, e.resolver)

		res, err := e.invoke(ctx, h, state, hctx, action)
		if err != nil {
			return domain.Result{}, err
		}
		accumulated = accumulated.Merge(res.State)
		queue = append(queue, res.Actions...)
	}

	e.cacheElements(accumulated)

	for _, next := range queue {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, fmt.Errorf("dispatch of %q interrupted: %w", next.Name, err)
		}
		chain := append(append([]string(nil), path...), action.Name)
		res, err := e.Dispatch(ctx, next, initial.Merge(accumulated), chain)
		if err != nil {
			return domain.Result{}, err
		}
		accumulated = accumulated.Merge(res.State)
	}

	return domain.Result{State: accumulated, Actions: queue}, nil
}

// invoke calls one handler, turning panics and errors into typed errors.
func (e *Engine) invoke(ctx context.Context, h registry.Handler, state *registry.CallableState, hctx *registry.HandlerContext, action domain.Action) (res domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("handler panicked", "action", action.Name, "panic", r)
			res = domain.Result{}
			err = &domain.PanicError{Action: action.Name, Value: r, Stack: string(rtdebug.Stack())}
		}
	}()

	res, err = h.Handle(ctx, state, hctx, action.Args)
	if err != nil {
		return domain.Result{}, &domain.HandlerError{Action: action.Name, Err: err}
	}
	return res, nil
}

func (e *Engine) resetCache() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = nil
}

// cacheElements folds the elements an action produced into the cycle cache.
// Partial elements are completed from the cache or the live state.
func (e *Engine) cacheElements(state domain.State) {
	els, err := state.Elements()
	if err != nil || len(els) == 0 {
		return
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	next := make(domain.Elements, len(e.cache)+len(els))
	for id, el := range e.cache {
		next[id] = el
	}
	for id, el := range els {
		if el.ID == "" {
			el.ID = id
		}
		prev, ok := next[id]
		if !ok {
			prev, ok = e.live.Element(id)
		}
		if ok {
			el = domain.MergeElement(prev, el)
		}
		next[id] = el
	}
	e.cache = next
}

func (e *Engine) cached(id string) (domain.Element, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	el, ok := e.cache[id]
	return el, ok
}

func (e *Engine) emitDispatch(ctx context.Context, name string, depth, handlers int) {
	if e.hooks.OnActionDispatch == nil {
		return
	}
	e.hooks.OnActionDispatch(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventActionDispatch, CycleID: CycleIDFrom(ctx)},
		Action:    name,
		Depth:     depth,
		Handlers:  handlers,
	})
}

func (e *Engine) emitComplete(ctx context.Context, name string, depth, handlers int, d time.Duration, err error) {
	if e.hooks.OnActionComplete == nil {
		return
	}
	e.hooks.OnActionComplete(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventActionComplete, CycleID: CycleIDFrom(ctx)},
		Action:    name,
		Depth:     depth,
		Handlers:  handlers,
		Duration:  d,
		Err:       err,
	})
}
