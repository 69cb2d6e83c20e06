package statemachine

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition kind label values.
const (
	kindChange  = "change"
	kindReentry = "reentry"
)

// Metric definitions with appropriate labels.
var (
	// transitionsTotal tracks accepted ChangeState calls.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hsm_transitions_total",
		Help: "Total number of state transitions by machine, from_state, to_state, and kind (change or reentry)",
	}, []string{"machine", "from_state", "to_state", "kind"})

	// transitionFailuresTotal tracks rejected ChangeState calls.
	transitionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hsm_transition_failures_total",
		Help: "Total number of rejected state transitions by machine and reason",
	}, []string{"machine", "reason"})

	// stateExecutionSeconds tracks how long a state ran before it was exited.
	stateExecutionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hsm_state_execution_seconds",
		Help:    "Accumulated execution time of a state at exit, by machine and state",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"machine", "state"})

	// ticksTotal tracks ticks whose current state was executing.
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hsm_ticks_total",
		Help: "Total number of ticks that executed a state, by machine",
	}, []string{"machine"})
)

// Helper functions for label sanitization. Label values must be valid UTF-8,
// otherwise WithLabelValues panics.
func sanitizeMachine(name string) string {
	if name == "" {
		return "unnamed"
	}

	return strings.ToValidUTF8(name, "\uFFFD")
}

func sanitizeState(name string) string {
	if name == "" {
		return "none"
	}

	return strings.ToValidUTF8(name, "\uFFFD")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNilState):
		return "nil_state"
	case errors.Is(err, ErrTransitionDepthExceeded):
		return "depth_exceeded"
	case errors.Is(err, ErrNoPreviousState):
		return "no_previous_state"
	default:
		return "other"
	}
}
