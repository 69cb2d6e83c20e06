package statemachine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any

	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))

		records = append(records, rec)
	}

	return records
}

func TestDefaultLoggerRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := NewMachine(WithName("guard"), WithLogger(NewSlogLogger(l)))
	idle := NewState("idle", Idle{})
	chase := NewState("chase", Idle{})

	require.NoError(t, m.ChangeState(idle))
	require.NoError(t, m.Tick(0.5))
	require.NoError(t, m.ChangeState(chase))
	require.Error(t, m.ChangeState(nil))

	records := decodeRecords(t, &buf)

	msgs := make([]string, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, rec["msg"].(string)) //nolint:forcetypeassert
	}

	assert.Equal(t, []string{
		"State entered",
		"Transition executed",
		"State exited",
		"State entered",
		"Transition executed",
		"Transition failed",
	}, msgs)

	first := records[1]
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "<none>", first["from"])
	assert.Equal(t, "idle", first["to"])
	assert.Equal(t, false, first["reentry"])

	exited := records[2]
	assert.Equal(t, "DEBUG", exited["level"])
	assert.InDelta(t, 0.5, exited["execution_duration"], 1e-9)

	failed := records[5]
	assert.Equal(t, "ERROR", failed["level"])
	assert.Equal(t, "chase", failed["from"])
	assert.Contains(t, failed["error"], "state is nil")
}

func TestDefaultLoggerFromContext(t *testing.T) {
	t.Parallel()

	// Routed through logger.Get; slogt only checks the call path doesn't panic.
	m := NewMachine(WithName(t.Name()), WithLogger(NewDefaultLogger()))
	require.NoError(t, m.ChangeStateContext(context.Background(), NewState("idle", Idle{})))

	m = NewMachine(WithName(t.Name()), WithLogger(NewSlogLogger(slogt.New(t))))
	require.NoError(t, m.ChangeState(NewState("idle", Idle{})))
	require.NoError(t, m.RevertToPreviousState())
}
