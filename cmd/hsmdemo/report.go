package main

import (
	"fmt"
	"io"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-hsm/statemachine"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// activeLabel renders the active state path for humans, e.g. "Alive / Patrol".
func activeLabel(s *statemachine.State) string {
	if s == nil {
		return "-"
	}

	caser := cases.Title(language.English)

	path := s.Path()
	for i, name := range path {
		path[i] = caser.String(strings.ReplaceAll(name, "_", " "))
	}

	return strings.Join(path, " / ")
}

// writeReport prints the machine counters and per-state visits, states in
// natural name order.
func writeReport(w io.Writer, g *Guard) error {
	stats := g.Machine().Stats()
	visits := g.Visits()

	names := make([]string, 0, len(visits))
	for _, s := range g.Hierarchy().States() {
		names = append(names, s.Name())
	}

	natsort.Sort(names)

	var sb strings.Builder

	fmt.Fprintf(&sb, "machine:     %s (%s)\n", g.Machine().Name(), g.Machine().ID())
	fmt.Fprintf(&sb, "final state: %s\n", activeLabel(g.Machine().CurrentState()))
	fmt.Fprintf(&sb, "health:      %.1f\n", g.Health)
	fmt.Fprintf(&sb, "ticks:       %d\n", stats.Ticks)
	fmt.Fprintf(&sb, "transitions: %d (%d reentries, %d failed)\n",
		stats.Transitions, stats.Reentries, stats.FailedTransitions)

	for _, name := range names {
		fmt.Fprintf(&sb, "  %-8s %d\n", name, visits[name])
	}

	_, err := io.WriteString(w, sb.String())

	return err
}
