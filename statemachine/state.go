package statemachine

import "fmt"

// State is a single unit of behavior with an enter/execute/exit lifecycle.
//
// States are compared by identity. A state may have a parent, which is a
// non-owning reference used to delegate transition checks upward, and a
// current child, which records the active sub-mode while this state is active.
//
// Parents must never be made descendants of their own children. NewState with
// WithParent cannot create a cycle because the new state has no descendants;
// SetParent checks the invariant at runtime.
type State struct {
	name     string
	behavior Behavior

	parent       *State
	currentChild *State

	executing         bool
	executionDuration float64

	entered event
	exited  event
}

// StateOption configures a State at construction time.
type StateOption func(*State)

// WithParent sets the parent of the state being constructed.
func WithParent(parent *State) StateOption {
	return func(s *State) {
		s.parent = parent
	}
}

// NewState creates a new, inactive state. Behavior must not be nil.
func NewState(name string, behavior Behavior, opts ...StateOption) *State {
	if behavior == nil {
		panic(fmt.Sprintf("statemachine: state %q created with nil behavior", name))
	}

	s := &State{
		name:     name,
		behavior: behavior,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *State) Name() string {
	return s.name
}

func (s *State) String() string {
	return s.name
}

// Behavior returns the behavior supplied at construction.
func (s *State) Behavior() Behavior { //nolint:ireturn
	return s.behavior
}

// Parent returns the enclosing state, or nil for a top-level state.
func (s *State) Parent() *State {
	return s.parent
}

// CurrentChild returns the active sub-state, or nil.
func (s *State) CurrentChild() *State {
	return s.currentChild
}

// IsExecuting reports whether the state has been entered and not yet exited.
func (s *State) IsExecuting() bool {
	return s.executing
}

// ExecutionDuration returns the time accumulated by Execute since the most
// recent enter. It stays frozen after exit until the next enter.
func (s *State) ExecutionDuration() float64 {
	return s.executionDuration
}

// CheckTransitions runs the behavior's transition checks. Behaviors that do
// not implement TransitionChecker delegate to the parent, if any.
func (s *State) CheckTransitions() {
	if checker, ok := s.behavior.(TransitionChecker); ok {
		checker.CheckTransitions(s)

		return
	}

	s.CheckParentTransitions()
}

// CheckParentTransitions delegates to the parent's CheckTransitions. It is a
// no-op for top-level states. TransitionChecker implementations call it to keep
// hierarchical fallback.
func (s *State) CheckParentTransitions() {
	if s.parent != nil {
		s.parent.CheckTransitions()
	}
}

// Execute runs one step of the behavior and advances the execution duration
// by deltaTime. It does nothing unless the state is executing. deltaTime is
// not validated.
func (s *State) Execute(deltaTime float64) {
	if !s.executing {
		return
	}

	s.behavior.Execute(s, deltaTime)
	s.executionDuration += deltaTime
}

// SetCurrentChild records child as the active sub-state. The child's parent
// must be s.
func (s *State) SetCurrentChild(child *State) error {
	if child == nil {
		return WrapStateError(s.name, ErrNilState)
	}

	if child.parent != s {
		return WrapStateError(s.name, fmt.Errorf("%w: %s", ErrNotChild, child.name))
	}

	s.currentChild = child

	return nil
}

// ClearCurrentChild forgets the active sub-state.
func (s *State) ClearCurrentChild() {
	s.currentChild = nil
}

// SubscribeEntered registers a listener fired after every enter, once the
// state is executing. The returned func unsubscribes.
func (s *State) SubscribeEntered(listener Listener) func() {
	return s.entered.subscribe(listener)
}

// SubscribeExited registers a listener fired after every exit, once the
// state has stopped executing. The returned func unsubscribes.
func (s *State) SubscribeExited(listener Listener) func() {
	return s.exited.subscribe(listener)
}

// enter activates the state. Only the Machine calls it. There is no guard
// against double entry: entering again re-runs the hook and resets duration.
func (s *State) enter() {
	if enterer, ok := s.behavior.(Enterer); ok {
		enterer.OnEnter(s)
	}

	s.executionDuration = 0
	s.executing = true

	s.entered.fire()
}

// exit deactivates the state. Only the Machine calls it. There is no guard
// against double exit.
func (s *State) exit() {
	if exiter, ok := s.behavior.(Exiter); ok {
		exiter.OnExit(s)
	}

	s.executing = false

	s.exited.fire()
}
