package fsmtest

import (
	"fmt"

	"github.com/amp-labs/amp-hsm/statemachine"
)

// Log entry suffixes written by recording behaviors and watchers.
const (
	SuffixEnter   = ".enter"
	SuffixExit    = ".exit"
	SuffixExecute = ".execute"
	SuffixCheck   = ".check"
	SuffixEntered = ".entered"
	SuffixExited  = ".exited"
)

// RecordingBehavior writes its hooks to a Recorder. It does not implement
// TransitionChecker, so its state delegates transition checks to the parent.
type RecordingBehavior struct {
	Name string
	Rec  *Recorder

	// EnterDurations holds the execution duration observed by each OnEnter,
	// i.e. the duration left over from the previous activation.
	EnterDurations []float64
	// Deltas holds the deltaTime of each Execute call.
	Deltas []float64
}

func (b *RecordingBehavior) Execute(_ *statemachine.State, deltaTime float64) {
	b.Deltas = append(b.Deltas, deltaTime)
	b.Rec.Record(b.Name + SuffixExecute)
}

func (b *RecordingBehavior) OnEnter(s *statemachine.State) {
	b.EnterDurations = append(b.EnterDurations, s.ExecutionDuration())
	b.Rec.Record(b.Name + SuffixEnter)
}

func (b *RecordingBehavior) OnExit(_ *statemachine.State) {
	b.Rec.Record(b.Name + SuffixExit)
}

// CheckingBehavior is a RecordingBehavior that also owns transition checks.
// Check may call s.CheckParentTransitions() to keep hierarchical fallback.
type CheckingBehavior struct {
	RecordingBehavior

	Check func(s *statemachine.State)
}

func (b *CheckingBehavior) CheckTransitions(s *statemachine.State) {
	b.Rec.Record(b.Name + SuffixCheck)

	if b.Check != nil {
		b.Check(s)
	}
}

// NewRecordingState creates a state backed by a RecordingBehavior.
func NewRecordingState(
	rec *Recorder, name string, opts ...statemachine.StateOption,
) (*statemachine.State, *RecordingBehavior) {
	b := &RecordingBehavior{Name: name, Rec: rec}

	return statemachine.NewState(name, b, opts...), b
}

// NewCheckingState creates a state backed by a CheckingBehavior.
func NewCheckingState(
	rec *Recorder, name string, check func(s *statemachine.State), opts ...statemachine.StateOption,
) (*statemachine.State, *CheckingBehavior) {
	b := &CheckingBehavior{
		RecordingBehavior: RecordingBehavior{Name: name, Rec: rec},
		Check:             check,
	}

	return statemachine.NewState(name, b, opts...), b
}

// WatchStates records the entered and exited notifications of each state.
// The returned func removes the subscriptions.
func WatchStates(rec *Recorder, states ...*statemachine.State) func() {
	var cancels []func()

	for _, s := range states {
		name := s.Name()
		cancels = append(cancels,
			s.SubscribeEntered(func() { rec.Record(name + SuffixEntered) }),
			s.SubscribeExited(func() { rec.Record(name + SuffixExited) }),
		)
	}

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// WatchMachine records every state-changed notification as
// "changed:<previous>-><current>", read at notification time.
func WatchMachine(rec *Recorder, m *statemachine.Machine) func() {
	return m.SubscribeStateChanged(func() {
		rec.Record(ChangedEntry(m.PreviousState(), m.CurrentState()))
	})
}

// ChangedEntry formats the log entry written by WatchMachine.
func ChangedEntry(previous, current *statemachine.State) string {
	return fmt.Sprintf("changed:%s->%s", nameOrNil(previous), nameOrNil(current))
}

func nameOrNil(s *statemachine.State) string {
	if s == nil {
		return "<nil>"
	}

	return s.Name()
}
