package statemachine_test

import (
	"testing"

	"github.com/amp-labs/amp-hsm/statemachine"
	"github.com/amp-labs/amp-hsm/statemachine/fsmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeStateOrdering(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	a, _ := fsmtest.NewRecordingState(rec, "a")
	b, _ := fsmtest.NewRecordingState(rec, "b")

	m := statemachine.NewMachine(statemachine.WithName(t.Name()))
	fsmtest.WatchStates(rec, a, b)
	fsmtest.WatchMachine(rec, m)

	require.NoError(t, m.ChangeState(a))
	rec.Reset()

	// Record the machine fields as the exit and enter hooks see them.
	a.SubscribeExited(func() {
		rec.Record("exit-sees:" + m.CurrentState().Name())
	})
	b.SubscribeEntered(func() {
		rec.Record("enter-sees:" + m.PreviousState().Name() + "->" + m.CurrentState().Name())
	})

	require.NoError(t, m.ChangeState(b))

	fsmtest.AssertLog(t, rec,
		"a.exit",
		"a.exited",
		"exit-sees:a",
		"b.enter",
		"b.entered",
		"enter-sees:a->b",
		"changed:a->b",
	)
	fsmtest.AssertStates(t, m, b, a)
}

func TestFirstTransitionHasNothingToExit(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	idle, _ := fsmtest.NewRecordingState(rec, "idle")

	m := statemachine.NewMachine()
	fsmtest.WatchMachine(rec, m)

	assert.Nil(t, m.CurrentState())
	assert.Nil(t, m.PreviousState())

	require.NoError(t, m.ChangeState(idle))

	fsmtest.AssertLog(t, rec, "idle.enter", "changed:<nil>->idle")
	fsmtest.AssertStates(t, m, idle, nil)
}

func TestSameStateTransitionIsIdempotentByDefault(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	other, _ := fsmtest.NewRecordingState(rec, "other")
	s, _ := fsmtest.NewRecordingState(rec, "s")

	m := statemachine.NewMachine()
	fsmtest.WatchMachine(rec, m)

	require.NoError(t, m.ChangeState(other))
	require.NoError(t, m.ChangeState(s))
	fsmtest.AssertStates(t, m, s, other)
	rec.Reset()

	require.NoError(t, m.ChangeState(s))

	fsmtest.AssertLog(t, rec)
	fsmtest.AssertNotRecorded(t, rec, "s.exit", "s.enter", fsmtest.ChangedEntry(s, s))
	// previous still moves: it is now s itself.
	fsmtest.AssertStates(t, m, s, s)
	assert.True(t, s.IsExecuting())

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.Transitions)
	assert.Equal(t, uint64(1), stats.Reentries)
}

func TestReenterFlagsAreIndependent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy statemachine.Policy
		want   []string
	}{
		{
			name:   "none",
			policy: statemachine.Policy{},
			want:   nil,
		},
		{
			name:   "enter only",
			policy: statemachine.Policy{EnterOnReenter: true},
			want:   []string{"s.enter"},
		},
		{
			name:   "exit only",
			policy: statemachine.Policy{ExitOnReenter: true},
			want:   []string{"s.exit"},
		},
		{
			name:   "notify only",
			policy: statemachine.Policy{NotifyOnReenter: true},
			want:   []string{"changed:s->s"},
		},
		{
			name:   "all",
			policy: statemachine.ReenterAll(),
			want:   []string{"s.exit", "s.enter", "changed:s->s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := fsmtest.NewRecorder()
			s, _ := fsmtest.NewRecordingState(rec, "s")

			m := statemachine.NewMachine(statemachine.WithPolicy(tt.policy))
			fsmtest.WatchMachine(rec, m)

			require.NoError(t, m.ChangeState(s))
			rec.Reset()

			require.NoError(t, m.ChangeState(s))

			fsmtest.AssertLog(t, rec, tt.want...)
			fsmtest.AssertStates(t, m, s, s)
		})
	}
}

func TestExitOnlyReentryLeavesStateInactive(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	s, b := fsmtest.NewRecordingState(rec, "s")

	m := statemachine.NewMachine(statemachine.WithPolicy(statemachine.Policy{ExitOnReenter: true}))
	require.NoError(t, m.ChangeState(s))
	require.NoError(t, m.ChangeState(s))

	// Exited but still current, so ticks no longer execute it.
	assert.False(t, s.IsExecuting())
	fsmtest.Tick(t, m, 2, 0.5)
	assert.Empty(t, b.Deltas)
}

func TestEnterOnReenterResetsDuration(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	s, b := fsmtest.NewRecordingState(rec, "s")

	m := statemachine.NewMachine(statemachine.WithPolicy(statemachine.Policy{EnterOnReenter: true}))
	require.NoError(t, m.ChangeState(s))
	fsmtest.Tick(t, m, 3, 0.5)
	assert.InDelta(t, 1.5, s.ExecutionDuration(), 1e-9)

	require.NoError(t, m.ChangeState(s))
	assert.Zero(t, s.ExecutionDuration())
	assert.Equal(t, []float64{0, 1.5}, b.EnterDurations)
}

func TestChangeStateNilIsRejected(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	idle, _ := fsmtest.NewRecordingState(rec, "idle")

	m := statemachine.NewMachine(statemachine.WithName("guard"))
	fsmtest.WatchMachine(rec, m)
	require.NoError(t, m.ChangeState(idle))
	rec.Reset()

	err := m.ChangeState(nil)
	require.ErrorIs(t, err, statemachine.ErrNilState)
	require.ErrorIs(t, err, statemachine.ErrInvalidArgument)

	var transErr *statemachine.TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, "guard", transErr.Machine)
	assert.Equal(t, "idle", transErr.From)

	fsmtest.AssertLog(t, rec)
	fsmtest.AssertStates(t, m, idle, nil)
	assert.Equal(t, uint64(1), m.Stats().FailedTransitions)
}

func TestTickBeforeFirstTransition(t *testing.T) {
	t.Parallel()

	m := statemachine.NewMachine()
	require.NoError(t, m.Tick(1))
	assert.Zero(t, m.Stats().Ticks)
}

func TestTickChecksThenExecutes(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	s, b := fsmtest.NewCheckingState(rec, "s", nil)

	m := statemachine.NewMachine()
	require.NoError(t, m.ChangeState(s))
	rec.Reset()

	fsmtest.Tick(t, m, 2, 0.1)

	fsmtest.AssertLog(t, rec, "s.check", "s.execute", "s.check", "s.execute")
	assert.Equal(t, []float64{0.1, 0.1}, b.Deltas)
	assert.Equal(t, uint64(2), m.Stats().Ticks)
}

func TestInTickTransitionExecutesNewState(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	m := statemachine.NewMachine()

	switchNow := false

	b, bBehavior := fsmtest.NewRecordingState(rec, "b")
	a, aBehavior := fsmtest.NewCheckingState(rec, "a", func(*statemachine.State) {
		if switchNow {
			require.NoError(t, m.ChangeState(b))
		}
	})

	require.NoError(t, m.ChangeState(a))
	fsmtest.Tick(t, m, 1, 0.5)

	switchNow = true

	rec.Reset()
	require.NoError(t, m.Tick(0.25))

	fsmtest.AssertLog(t, rec, "a.check", "a.exit", "b.enter", "b.execute")
	fsmtest.AssertStates(t, m, b, a)

	assert.Equal(t, []float64{0.5}, aBehavior.Deltas, "a only executed on the first tick")
	assert.Equal(t, []float64{0.25}, bBehavior.Deltas)
	assert.InDelta(t, 0.25, b.ExecutionDuration(), 1e-9)
	assert.InDelta(t, 0.5, a.ExecutionDuration(), 1e-9)
}

func TestTickDelegatesChecksUpTheHierarchy(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()

	root, _ := fsmtest.NewCheckingState(rec, "root", nil)
	mid, _ := fsmtest.NewRecordingState(rec, "mid", statemachine.WithParent(root))
	leaf, _ := fsmtest.NewRecordingState(rec, "leaf", statemachine.WithParent(mid))

	m := statemachine.NewMachine()
	require.NoError(t, m.ChangeState(leaf))
	rec.Reset()

	fsmtest.Tick(t, m, 1, 1)

	// Parents are consulted for transitions but never entered or executed.
	fsmtest.AssertLog(t, rec, "root.check", "leaf.execute")
	assert.Equal(t, 1, rec.Count("root.check"))
	assert.False(t, root.IsExecuting())
	assert.True(t, m.IsInState(root))
	assert.True(t, m.IsInState(mid))
	assert.True(t, m.IsInState(leaf))
}

func TestParentCheckCanLeaveTheSubtree(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	m := statemachine.NewMachine()

	dead, _ := fsmtest.NewRecordingState(rec, "dead")

	health := 10

	alive, _ := fsmtest.NewCheckingState(rec, "alive", func(*statemachine.State) {
		if health <= 0 {
			require.NoError(t, m.ChangeState(dead))
		}
	})
	idle, _ := fsmtest.NewCheckingState(rec, "idle", func(s *statemachine.State) {
		s.CheckParentTransitions()
	}, statemachine.WithParent(alive))

	require.NoError(t, m.ChangeState(idle))
	fsmtest.Tick(t, m, 1, 0.1)
	assert.Same(t, idle, m.CurrentState())

	health = 0
	rec.Reset()
	fsmtest.Tick(t, m, 1, 0.1)

	fsmtest.AssertLog(t, rec, "idle.check", "alive.check", "idle.exit", "dead.enter", "dead.execute")
	assert.False(t, m.IsInState(alive))
}

func TestIdleMovingScenario(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	idle, _ := fsmtest.NewRecordingState(rec, "idle")
	moving, _ := fsmtest.NewRecordingState(rec, "moving")

	m := statemachine.NewMachine(statemachine.WithName(t.Name()))
	fsmtest.WatchStates(rec, idle, moving)
	fsmtest.WatchMachine(rec, m)

	require.NoError(t, m.ChangeState(idle))
	require.NoError(t, m.Tick(0.5))
	assert.InDelta(t, 0.5, idle.ExecutionDuration(), 1e-9)

	rec.Reset()
	require.NoError(t, m.ChangeState(moving))

	assert.Equal(t, 1, rec.Count("idle.exited"))
	assert.Equal(t, 1, rec.Count("moving.entered"))
	assert.Equal(t, 1, rec.Count("changed:idle->moving"))
	fsmtest.AssertInOrder(t, rec, "idle.exit", "moving.enter", "changed:idle->moving")
	fsmtest.AssertStates(t, m, moving, idle)

	require.NoError(t, m.Tick(0.25))
	assert.InDelta(t, 0.25, moving.ExecutionDuration(), 1e-9)
	assert.InDelta(t, 0.5, idle.ExecutionDuration(), 1e-9, "idle duration is frozen at exit")
}

func TestRevertToPreviousState(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	a, _ := fsmtest.NewRecordingState(rec, "a")
	b, _ := fsmtest.NewRecordingState(rec, "b")

	m := statemachine.NewMachine()

	require.ErrorIs(t, m.RevertToPreviousState(), statemachine.ErrNoPreviousState)

	require.NoError(t, m.ChangeState(a))
	require.ErrorIs(t, m.RevertToPreviousState(), statemachine.ErrNoPreviousState)

	require.NoError(t, m.ChangeState(b))
	require.NoError(t, m.RevertToPreviousState())
	fsmtest.AssertStates(t, m, a, b)

	// One step of history: reverting again toggles back.
	require.NoError(t, m.RevertToPreviousState())
	fsmtest.AssertStates(t, m, b, a)
}

func TestNestedTransitionFromEnterHook(t *testing.T) {
	t.Parallel()

	rec := fsmtest.NewRecorder()
	m := statemachine.NewMachine()

	target, _ := fsmtest.NewRecordingState(rec, "target")
	bounce := statemachine.NewState("bounce", statemachine.Funcs{
		EnterFunc: func(*statemachine.State) {
			rec.Record("bounce.enter")
			require.NoError(t, m.ChangeState(target))
		},
	})

	fsmtest.WatchMachine(rec, m)
	require.NoError(t, m.ChangeState(bounce))

	// The nested transition completes, including its notification, before
	// the outer one fires its own.
	fsmtest.AssertLog(t, rec,
		"bounce.enter",
		"target.enter",
		"changed:bounce->target",
		"changed:bounce->target",
	)
	fsmtest.AssertStates(t, m, target, bounce)
}

func TestTransitionDepthIsBounded(t *testing.T) {
	t.Parallel()

	m := statemachine.NewMachine(statemachine.WithPolicy(statemachine.Policy{MaxTransitionDepth: 8}))

	var (
		ping, pong *statemachine.State
		nestedErr  error
	)

	bounceTo := func(target **statemachine.State) statemachine.Funcs {
		return statemachine.Funcs{EnterFunc: func(*statemachine.State) {
			err := m.ChangeState(*target)
			if err != nil && nestedErr == nil {
				nestedErr = err
			}
		}}
	}

	ping = statemachine.NewState("ping", bounceTo(&pong))
	pong = statemachine.NewState("pong", bounceTo(&ping))

	require.NoError(t, m.ChangeState(ping), "the outermost call itself succeeds")
	require.ErrorIs(t, nestedErr, statemachine.ErrTransitionDepthExceeded)
	assert.Equal(t, uint64(8), m.Stats().Transitions)
	assert.Equal(t, uint64(1), m.Stats().FailedTransitions)

	// Depth is unwound: a fresh transition works again.
	require.NoError(t, m.ChangeState(statemachine.NewState("rest", statemachine.Idle{})))
}

func TestTickReportsNestedTransitionErrors(t *testing.T) {
	t.Parallel()

	m := statemachine.NewMachine()

	s := statemachine.NewState("s", statemachine.Funcs{
		CheckTransitionsFunc: func(*statemachine.State) {
			// The hook ignores the error; Tick still reports it.
			_ = m.ChangeState(nil)
		},
	})

	require.NoError(t, m.ChangeState(s))

	err := m.Tick(0.1)
	require.ErrorIs(t, err, statemachine.ErrNilState)
	assert.InDelta(t, 0.1, s.ExecutionDuration(), 1e-9, "the tick still executes")

	// Errors do not leak into the next tick.
	s2 := statemachine.NewState("s2", statemachine.Idle{})
	require.NoError(t, m.ChangeState(s2))
	require.NoError(t, m.Tick(0.1))
}

func TestUnboundedDepthPolicy(t *testing.T) {
	t.Parallel()

	m := statemachine.NewMachine(statemachine.WithPolicy(statemachine.Policy{MaxTransitionDepth: -1}))

	// Well past DefaultMaxTransitionDepth.
	remaining := 3 * statemachine.DefaultMaxTransitionDepth

	var spawn func() *statemachine.State

	spawn = func() *statemachine.State {
		return statemachine.NewState("chain", statemachine.Funcs{EnterFunc: func(*statemachine.State) {
			if remaining > 0 {
				remaining--

				require.NoError(t, m.ChangeState(spawn()))
			}
		}})
	}

	require.NoError(t, m.ChangeState(spawn()))
	assert.Zero(t, remaining)
	assert.Zero(t, m.Stats().FailedTransitions)
}

func TestUnsubscribeStateChanged(t *testing.T) {
	t.Parallel()

	calls := 0
	m := statemachine.NewMachine()
	cancel := m.SubscribeStateChanged(func() { calls++ })

	require.NoError(t, m.ChangeState(statemachine.NewState("a", statemachine.Idle{})))
	cancel()
	require.NoError(t, m.ChangeState(statemachine.NewState("b", statemachine.Idle{})))

	assert.Equal(t, 1, calls)
}

func TestMachineIdentity(t *testing.T) {
	t.Parallel()

	a := statemachine.NewMachine(statemachine.WithName("a"))
	b := statemachine.NewMachine(statemachine.WithName("a"))

	assert.Equal(t, "a", a.Name())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, statemachine.Policy{}, a.Policy())
	assert.False(t, a.IsInState(nil))
}
