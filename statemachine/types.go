package statemachine

// Behavior supplies the per-tick execution logic of a State.
// Every concrete state must implement it.
type Behavior interface {
	Execute(s *State, deltaTime float64)
}

// Enterer is implemented by behaviors that need to run logic when their
// state becomes active. OnEnter runs before the execution duration is reset,
// so s.ExecutionDuration() still reports the previous activation.
type Enterer interface {
	OnEnter(s *State)
}

// Exiter is implemented by behaviors that need to run logic when their
// state stops being active.
type Exiter interface {
	OnExit(s *State)
}

// TransitionChecker is implemented by behaviors that inspect their own
// conditions and request transitions on the owning Machine.
//
// Implementing it replaces the default delegation to the parent state. An
// implementation that still wants the parent's checks must call
// s.CheckParentTransitions() itself.
type TransitionChecker interface {
	CheckTransitions(s *State)
}

// Listener is notified of lifecycle events. Events carry no payload;
// listeners read whatever they need through accessors.
type Listener func()

// Funcs adapts plain functions to a Behavior. Nil fields fall back to the
// default behavior: no-op hooks and parent delegation for transition checks.
type Funcs struct {
	ExecuteFunc          func(s *State, deltaTime float64)
	EnterFunc            func(s *State)
	ExitFunc             func(s *State)
	CheckTransitionsFunc func(s *State)
}

var (
	_ Behavior          = Funcs{}
	_ Enterer           = Funcs{}
	_ Exiter            = Funcs{}
	_ TransitionChecker = Funcs{}
)

func (f Funcs) Execute(s *State, deltaTime float64) {
	if f.ExecuteFunc != nil {
		f.ExecuteFunc(s, deltaTime)
	}
}

func (f Funcs) OnEnter(s *State) {
	if f.EnterFunc != nil {
		f.EnterFunc(s)
	}
}

func (f Funcs) OnExit(s *State) {
	if f.ExitFunc != nil {
		f.ExitFunc(s)
	}
}

func (f Funcs) CheckTransitions(s *State) {
	if f.CheckTransitionsFunc != nil {
		f.CheckTransitionsFunc(s)

		return
	}

	s.CheckParentTransitions()
}

// Idle is a Behavior that does nothing on each tick. It is useful for
// composite parent states whose only job is to hold shared transition checks.
type Idle struct{}

func (Idle) Execute(*State, float64) {}
