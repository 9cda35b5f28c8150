package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the repository.
var ErrSessionNotFound = errors.New("session not found")

var (
	// ErrDuplicateHandler is returned when the identical handler is registered twice under one action.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrUnknownAction is returned when no handler group exists for an action name.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMaxNestingExceeded is returned when follow-up actions nest deeper than allowed.
	ErrMaxNestingExceeded = errors.New("max nesting exceeded")

	// ErrElementNotFound is returned when an element id cannot be resolved.
	ErrElementNotFound = errors.New("element not found")

	// ErrCyclicTree is returned when an element appears among its own ancestors.
	ErrCyclicTree = errors.New("cyclic element tree")

	// ErrNilHandler is returned when a nil handler is registered.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// DuplicateHandlerError reports a second registration of the same handler.
type DuplicateHandlerError struct {
	Action string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("you cannot register event action %q with identical function that already is registered", e.Action)
}

func (e *DuplicateHandlerError) Unwrap() error { return ErrDuplicateHandler }

// UnknownActionError reports an action with no registered handler group.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("there is no event action that is registered with name %q", e.Action)
}

func (e *UnknownActionError) Unwrap() error { return ErrUnknownAction }

// MaxNestingExceededError reports a runaway chain of follow-up actions.
type MaxNestingExceededError struct {
	Max  int
	Path []string
}

func (e *MaxNestingExceededError) Error() string {
	return fmt.Sprintf("max (%d) allowed levels of nesting actions reached: %s", e.Max, strings.Join(e.Path, " -> "))
}

func (e *MaxNestingExceededError) Unwrap() error { return ErrMaxNestingExceeded }

// ElementNotFoundError reports an element id that could not be resolved.
type ElementNotFoundError struct {
	ID string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %q not found", e.ID)
}

func (e *ElementNotFoundError) Unwrap() error { return ErrElementNotFound }

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	Action string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %q failed: %v", e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Action string
	Value  any
	Stack  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler for %q panicked: %v", e.Action, e.Value)
}

func (e *PanicError) Unwrap() error { return ErrHandlerPanic }
