// Package statemachine implements a hierarchical finite state machine for
// game objects and other tick-driven actors.
//
// A State wraps a Behavior supplied by the host and tracks whether it is
// executing and for how long. States form a tree through their parent
// reference; a state without its own transition checks defers to its parent.
// A Machine owns the current and previous state, swaps them in ChangeState,
// and runs one update cycle per Tick: the current state's transition checks
// first, then Execute on whatever state is current afterwards.
//
// Everything runs synchronously on the caller's goroutine. Hooks and
// listeners may call ChangeState again; Policy.MaxTransitionDepth bounds how
// deep such chains may nest.
package statemachine
