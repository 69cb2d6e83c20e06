package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/amp-hsm/statemachine"

// startTransitionSpan creates a span around one ChangeState call.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startTransitionSpan(ctx context.Context, m *Machine, from, to *State) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.transition")
	addMachineAttributes(span, m)
	span.SetAttributes(
		attribute.String("from_state", sanitizeState(nameOf(from))),
		attribute.String("to_state", sanitizeState(nameOf(to))),
		attribute.Bool("reentry", from == to),
	)

	return ctx, span
}

// startTickSpan creates a span around one Tick call.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startTickSpan(ctx context.Context, m *Machine, deltaTime float64) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.tick")
	addMachineAttributes(span, m)
	span.SetAttributes(
		attribute.String("state", nameOf(m.current)),
		attribute.Float64("delta_time", deltaTime),
	)

	return ctx, span
}

// addMachineAttributes adds machine identity to a span.
func addMachineAttributes(span trace.Span, m *Machine) {
	span.SetAttributes(
		attribute.String("machine", sanitizeMachine(m.name)),
		attribute.String("machine_id", m.id.String()),
	)
}

func nameOf(s *State) string {
	if s == nil {
		return ""
	}

	return s.name
}
