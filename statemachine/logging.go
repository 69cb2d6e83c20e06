package statemachine

import (
	"context"
	"log/slog"

	"github.com/amp-labs/amp-hsm/logger"
)

// Logger provides logging hooks for machine activity.
type Logger interface {
	StateEntered(ctx context.Context, machine, state string)
	StateExited(ctx context.Context, machine, state string, executionDuration float64)
	TransitionExecuted(ctx context.Context, machine, from, to string, reentry bool)
	TransitionFailed(ctx context.Context, machine, from, to string, err error)
}

// DefaultLogger implements Logger using slog.
//
// Enter and exit records are logged at debug level since a busy machine
// produces them every few frames; transitions are logged at info.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger that resolves its slog.Logger from the
// context of each call through logger.Get.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// NewSlogLogger creates a logger that always writes to the given slog.Logger.
func NewSlogLogger(l *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) get(ctx context.Context) *slog.Logger {
	if l.logger != nil {
		return l.logger
	}

	return logger.Get(ctx)
}

func (l *DefaultLogger) StateEntered(ctx context.Context, machine, state string) {
	l.get(ctx).DebugContext(ctx, "State entered",
		"machine", machine,
		"state", state,
	)
}

func (l *DefaultLogger) StateExited(ctx context.Context, machine, state string, executionDuration float64) {
	l.get(ctx).DebugContext(ctx, "State exited",
		"machine", machine,
		"state", state,
		"execution_duration", executionDuration,
	)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, machine, from, to string, reentry bool) {
	l.get(ctx).InfoContext(ctx, "Transition executed",
		"machine", machine,
		"from", displayName(from),
		"to", to,
		"reentry", reentry,
	)
}

func (l *DefaultLogger) TransitionFailed(ctx context.Context, machine, from, to string, err error) {
	l.get(ctx).ErrorContext(ctx, "Transition failed",
		"machine", machine,
		"from", displayName(from),
		"to", displayName(to),
		"error", err,
	)
}
