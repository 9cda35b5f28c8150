package registry

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"unsafe"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/google/uuid"
)

// Handler reacts to one action name and proposes state changes
// and/or follow-up actions.
type Handler interface {
	Handle(ctx context.Context, state *CallableState, hctx *HandlerContext, args domain.Args) (domain.Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, state *CallableState, hctx *HandlerContext, args domain.Args) (domain.Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, state *CallableState, hctx *HandlerContext, args domain.Args) (domain.Result, error) {
	return f(ctx, state, hctx, args)
}

// UnregisterFunc removes exactly one registration.
// It reports whether something was removed; calling it again returns false.
type UnregisterFunc func() bool

type entry struct {
	token   string
	handler Handler
}

// Registry maps action names to ordered handler lists.
// Registration order is invocation order.
type Registry struct {
	mu     sync.RWMutex
	groups map[string][]entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string][]entry),
	}
}

// Register appends a handler to the group of the given action name.
// Registering the identical handler twice under one name fails with
// a *domain.DuplicateHandlerError.
func (r *Registry) Register(name string, h Handler) (UnregisterFunc, error) {
	if isNil(h) {
		return nil, domain.ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.groups[name]
	for _, e := range group {
		if sameHandler(e.handler, h) {
			return nil, &domain.DuplicateHandlerError{Action: name}
		}
	}

	token := uuid.NewString()
	r.groups[name] = append(group, entry{token: token, handler: h})

	return func() bool {
		return r.unregister(name, token)
	}, nil
}

func (r *Registry) unregister(name, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.groups[name]
	for i, e := range group {
		if e.token != token {
			continue
		}
		next := make([]entry, 0, len(group)-1)
		next = append(next, group[:i]...)
		next = append(next, group[i+1:]...)
		// The group itself survives so the name stays known.
		r.groups[name] = next
		return true
	}
	return false
}

// Resolve returns the handlers registered under name, in registration order.
// It returns a *domain.UnknownActionError if the name was never registered.
func (r *Registry) Resolve(name string) ([]Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.groups[name]
	if !ok {
		return nil, &domain.UnknownActionError{Action: name}
	}

	handlers := make([]Handler, len(group))
	for i, e := range group {
		handlers[i] = e.handler
	}
	return handlers, nil
}

// Has reports whether a handler group exists for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[name]
	return ok
}

// Len returns the number of handlers currently registered under name.
func (r *Registry) Len(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[name])
}

// Names returns all known action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sameHandler compares handlers by reference.
// Func values are compared by closure identity; other handlers with a
// comparable dynamic type are compared with ==.
func sameHandler(a, b Handler) bool {
	fa, aok := a.(HandlerFunc)
	fb, bok := b.(HandlerFunc)
	if aok || bok {
		return aok && bok && funcIdentity(fa) == funcIdentity(fb)
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// funcIdentity returns the address of the closure behind a func value.
func funcIdentity(f HandlerFunc) uintptr {
	return *(*uintptr)(unsafe.Pointer(&f))
}

func isNil(h Handler) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
