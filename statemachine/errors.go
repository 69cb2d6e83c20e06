package statemachine

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrInvalidArgument is the parent of every argument validation error.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNilState indicates that a nil state was passed where one is required.
	ErrNilState = fmt.Errorf("%w: state is nil", ErrInvalidArgument)
	// ErrNotChild indicates that a state is not a direct child of the receiver.
	ErrNotChild = fmt.Errorf("%w: state is not a child", ErrInvalidArgument)
	// ErrCycle indicates that a parent assignment would make a state its own ancestor.
	ErrCycle = fmt.Errorf("%w: parent assignment would create a cycle", ErrInvalidArgument)

	// ErrTransitionDepthExceeded indicates too many nested ChangeState calls.
	ErrTransitionDepthExceeded = errors.New("maximum transition depth exceeded")
	// ErrNoPreviousState indicates that there is no previous state to revert to.
	ErrNoPreviousState = errors.New("no previous state")

	// ErrInvalidPolicy indicates that a policy failed validation.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrBehaviorRequired indicates that a state was declared without a behavior.
	ErrBehaviorRequired = errors.New("state behavior is required")
	// ErrParentNotFound indicates that a declared parent state does not exist.
	ErrParentNotFound = errors.New("parent state does not exist")
	// ErrInitialStateNotFound indicates that the initial state does not exist.
	ErrInitialStateNotFound = errors.New("initial state does not exist")
)

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	Machine string
	From    string
	To      string
	Err     error
}

func (e *TransitionError) Error() string {
	prefix := ""
	if e.Machine != "" {
		prefix = e.Machine + ": "
	}

	if e.To == "" {
		return fmt.Sprintf("%stransition from %s: %v", prefix, displayName(e.From), e.Err)
	}

	return fmt.Sprintf("%stransition %s -> %s: %v", prefix, displayName(e.From), e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(machine, from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		Machine: machine,
		From:    from,
		To:      to,
		Err:     err,
	}
}

func displayName(name string) string {
	if name == "" {
		return "<none>"
	}

	return name
}
