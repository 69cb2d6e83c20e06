package statemachine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/atomic"
)

// Machine holds the current and previous state of one actor and orchestrates
// state swaps and per-tick execution.
//
// A Machine is driven by a single goroutine. Hooks and listeners run
// synchronously inside ChangeState and Tick and may call ChangeState again;
// such nested calls are bounded by Policy.MaxTransitionDepth.
type Machine struct {
	id     uuid.UUID
	name   string
	policy Policy
	logger Logger

	current  *State
	previous *State

	stateChanged event

	// depth counts ChangeState calls currently on the stack.
	depth int
	// ctx is the context of the innermost in-flight Tick or ChangeState,
	// handed to nested ChangeState calls made from hooks.
	ctx context.Context //nolint:containedctx
	ticking bool
	// tickErr holds the first transition error raised during the running tick.
	tickErr error

	stats machineStats
	ticks prometheus.Counter
}

type machineStats struct {
	transitions atomic.Uint64
	reentries   atomic.Uint64
	failures    atomic.Uint64
	ticks       atomic.Uint64
}

// Stats is a snapshot of machine counters. Unlike the rest of the Machine,
// Stats may be read from any goroutine.
type Stats struct {
	Transitions       uint64
	Reentries         uint64
	FailedTransitions uint64
	// Ticks counts every tick run while a state was current, executing or not.
	Ticks uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithName sets the machine name used in logs, metrics and spans.
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}

// WithID overrides the randomly generated machine ID.
func WithID(id uuid.UUID) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithPolicy sets the same-state transition policy.
func WithPolicy(policy Policy) Option {
	return func(m *Machine) {
		m.policy = policy
	}
}

// WithLogger sets the logger for machine activity. Machines don't log by default.
func WithLogger(logger Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates a machine with no current state. Without WithPolicy the
// zero Policy is used: same-state transitions fire nothing.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		id: uuid.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.ticks = ticksTotal.WithLabelValues(sanitizeMachine(m.name))

	return m
}

func (m *Machine) ID() uuid.UUID {
	return m.id
}

func (m *Machine) Name() string {
	return m.name
}

func (m *Machine) Policy() Policy {
	return m.policy
}

// CurrentState returns the active state, or nil before the first transition.
func (m *Machine) CurrentState() *State {
	return m.current
}

// PreviousState returns the state that was current before the most recent
// transition, or nil.
func (m *Machine) PreviousState() *State {
	return m.previous
}

// IsInState reports whether s is the current state or an ancestor of it.
func (m *Machine) IsInState(s *State) bool {
	if m.current == nil || s == nil {
		return false
	}

	return m.current == s || m.current.IsDescendantOf(s)
}

// Stats returns a snapshot of the machine counters.
func (m *Machine) Stats() Stats {
	return Stats{
		Transitions:       m.stats.transitions.Load(),
		Reentries:         m.stats.reentries.Load(),
		FailedTransitions: m.stats.failures.Load(),
		Ticks:             m.stats.ticks.Load(),
	}
}

// SubscribeStateChanged registers a listener fired at the end of a
// transition, after the new state was entered. Listeners observe the fully
// updated current and previous states. The returned func unsubscribes.
func (m *Machine) SubscribeStateChanged(listener Listener) func() {
	return m.stateChanged.subscribe(listener)
}

// ChangeState makes next the current state. See ChangeStateContext.
// When called from a hook during Tick or another ChangeState, it continues
// the caller's context.
func (m *Machine) ChangeState(next *State) error {
	return m.ChangeStateContext(m.activeContext(), next)
}

// ChangeStateContext makes next the current state.
//
// In order, and only for an actual change unless the matching Policy switch
// is on: the current state is exited, previous and current are reassigned
// (previous is always updated, even for a same-state transition), next is
// entered, and state-changed listeners are notified.
//
// A nil next is rejected with ErrNilState and changes nothing.
func (m *Machine) ChangeStateContext(ctx context.Context, next *State) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if next == nil {
		return m.fail(ctx, "", ErrNilState)
	}

	if limit := m.policy.maxDepth(); limit >= 0 && m.depth >= limit {
		return m.fail(ctx, next.name, fmt.Errorf("%w (%d)", ErrTransitionDepthExceeded, limit))
	}

	from := m.current
	actual := next != from

	ctx, span := startTransitionSpan(ctx, m, from, next)
	defer span.End()

	outer := m.ctx
	m.ctx = ctx
	m.depth++

	defer func() {
		m.depth--
		m.ctx = outer
	}()

	if actual || m.policy.ExitOnReenter {
		if exiting := m.current; exiting != nil {
			exiting.exit()
			m.recordExit(ctx, exiting)
		}
	}

	m.previous = m.current
	m.current = next

	if actual || m.policy.EnterOnReenter {
		next.enter()

		if m.logger != nil {
			m.logger.StateEntered(ctx, m.name, next.name)
		}
	}

	m.recordTransition(ctx, from, next, actual)

	if actual || m.policy.NotifyOnReenter {
		m.stateChanged.fire()
	}

	span.SetStatus(codes.Ok, "completed")

	return nil
}

// RevertToPreviousState transitions back to the previous state. Only one step
// of history is kept, so reverting twice toggles between two states.
func (m *Machine) RevertToPreviousState() error {
	if m.previous == nil {
		return m.fail(m.activeContext(), "", ErrNoPreviousState)
	}

	return m.ChangeState(m.previous)
}

// Tick runs one update cycle. See TickContext.
func (m *Machine) Tick(deltaTime float64) error {
	return m.TickContext(context.Background(), deltaTime)
}

// TickContext runs one update cycle: the current state's transition checks,
// then Execute on whatever state is current afterwards. A transition
// requested during the checks therefore executes the new state in the same
// tick. It does nothing before the first transition.
//
// Hooks cannot return errors, so TickContext returns the first transition
// error raised while it ran.
func (m *Machine) TickContext(ctx context.Context, deltaTime float64) error {
	if m.current == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := startTickSpan(ctx, m, deltaTime)
	defer span.End()

	outerCtx, outerTicking, outerErr := m.ctx, m.ticking, m.tickErr
	m.ctx, m.ticking, m.tickErr = ctx, true, nil

	defer func() {
		m.ctx, m.ticking, m.tickErr = outerCtx, outerTicking, outerErr
	}()

	m.current.CheckTransitions()

	executed := m.current.IsExecuting()
	m.current.Execute(deltaTime)

	m.stats.ticks.Inc()

	if executed {
		m.ticks.Inc()
	}

	err := m.tickErr
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

// activeContext returns the context of the in-flight Tick or ChangeState.
func (m *Machine) activeContext() context.Context {
	if m.ctx != nil {
		return m.ctx
	}

	return context.Background()
}

// fail wraps, records and returns a rejected transition.
func (m *Machine) fail(ctx context.Context, to string, cause error) error {
	from := nameOf(m.current)
	err := WrapTransitionError(m.name, from, to, cause)

	m.stats.failures.Inc()
	transitionFailuresTotal.WithLabelValues(sanitizeMachine(m.name), failureReason(cause)).Inc()

	if m.logger != nil {
		m.logger.TransitionFailed(ctx, m.name, from, to, err)
	}

	if m.ticking && m.tickErr == nil {
		m.tickErr = err
	}

	return err
}

func (m *Machine) recordExit(ctx context.Context, s *State) {
	stateExecutionSeconds.WithLabelValues(sanitizeMachine(m.name), sanitizeState(s.name)).Observe(s.executionDuration)

	if m.logger != nil {
		m.logger.StateExited(ctx, m.name, s.name, s.executionDuration)
	}
}

func (m *Machine) recordTransition(ctx context.Context, from, to *State, actual bool) {
	kind := kindChange

	m.stats.transitions.Inc()

	if !actual {
		kind = kindReentry

		m.stats.reentries.Inc()
	}

	transitionsTotal.WithLabelValues(
		sanitizeMachine(m.name),
		sanitizeState(nameOf(from)),
		sanitizeState(to.name),
		kind,
	).Inc()

	if m.logger != nil {
		m.logger.TransitionExecuted(ctx, m.name, nameOf(from), to.name, !actual)
	}
}
