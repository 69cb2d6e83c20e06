package fsmtest

import (
	"testing"

	"github.com/amp-labs/amp-hsm/statemachine"
	"github.com/stretchr/testify/require"
)

// AssertLog checks that the recorded log is exactly want.
func AssertLog(t *testing.T, rec *Recorder, want ...string) {
	t.Helper()

	if len(want) == 0 {
		require.Empty(t, rec.Entries(), "log should be empty")

		return
	}

	require.Equal(t, want, rec.Entries(), "unexpected lifecycle log")
}

// AssertInOrder checks that want appears in the log as a subsequence.
func AssertInOrder(t *testing.T, rec *Recorder, want ...string) {
	t.Helper()

	entries := rec.Entries()
	next := 0

	for _, e := range entries {
		if next < len(want) && e == want[next] {
			next++
		}
	}

	require.Equal(t, len(want), next,
		"entry %q not found in order; log: %v", safeIndex(want, next), entries)
}

// AssertNotRecorded checks that none of the entries were recorded.
func AssertNotRecorded(t *testing.T, rec *Recorder, entries ...string) {
	t.Helper()

	for _, e := range entries {
		require.Zero(t, rec.Count(e), "entry %q should not be recorded; log: %v", e, rec.Entries())
	}
}

// AssertStates checks the machine's current and previous states by identity.
func AssertStates(t *testing.T, m *statemachine.Machine, current, previous *statemachine.State) {
	t.Helper()

	require.Same(t, current, m.CurrentState(), "current state")

	if previous == nil {
		require.Nil(t, m.PreviousState(), "previous state")
	} else {
		require.Same(t, previous, m.PreviousState(), "previous state")
	}
}

// Tick runs n ticks of deltaTime and fails the test on any tick error.
func Tick(t *testing.T, m *statemachine.Machine, n int, deltaTime float64) {
	t.Helper()

	for i := range n {
		require.NoError(t, m.Tick(deltaTime), "tick %d", i)
	}
}

func safeIndex(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}

	return ""
}
