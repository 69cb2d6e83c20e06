package main

import (
	"context"
	"math"

	"github.com/amp-labs/amp-hsm/logger"
	"github.com/amp-labs/amp-hsm/statemachine"
)

// State names of the guard hierarchy.
const (
	stateAlive  = "alive"
	stateIdle   = "idle"
	statePatrol = "patrol"
	stateChase  = "chase"
	stateDead   = "dead"
)

// GuardConfig tunes the guard. Distances are in world units, times in seconds.
type GuardConfig struct {
	MaxHealth    float64 `env:"MAX_HEALTH"    envDefault:"100"`
	Regen        float64 `env:"REGEN"         envDefault:"2"`
	SightRange   float64 `env:"SIGHT_RANGE"   envDefault:"6"`
	LoseRange    float64 `env:"LOSE_RANGE"    envDefault:"10"`
	AttackRange  float64 `env:"ATTACK_RANGE"  envDefault:"1"`
	BoredAfter   float64 `env:"BORED_AFTER"   envDefault:"3"`
	PatrolFor    float64 `env:"PATROL_FOR"    envDefault:"5"`
	PatrolRadius float64 `env:"PATROL_RADIUS" envDefault:"4"`
	PatrolSpeed  float64 `env:"PATROL_SPEED"  envDefault:"1.5"`
	ChaseSpeed   float64 `env:"CHASE_SPEED"   envDefault:"3"`
	// PlayerDPS is the damage per second the guard takes while in attack range.
	PlayerDPS float64 `env:"PLAYER_DPS" envDefault:"15"`
}

// Guard is a non-player character: alive{idle, patrol}, chase and dead.
// Idle and patrol share the alive parent's checks for danger and death.
type Guard struct {
	cfg GuardConfig

	Health   float64
	Position float64
	// Player is the position of the player the guard watches.
	Player float64

	patrolDir float64

	machine   *statemachine.Machine
	hierarchy *statemachine.Hierarchy
	visits    map[string]int
}

// NewGuard builds the guard hierarchy and enters idle.
func NewGuard(name string, cfg GuardConfig, policy statemachine.Policy, opts ...statemachine.Option) (*Guard, error) {
	g := &Guard{
		cfg:       cfg,
		Health:    cfg.MaxHealth,
		Player:    math.Inf(1),
		patrolDir: 1,
		visits:    make(map[string]int),
	}

	m, h, err := statemachine.NewBuilder(name).
		WithPolicy(policy).
		WithOptions(opts...).
		AddState(stateAlive, aliveBehavior{g}).
		AddChildState(stateIdle, idleBehavior{g}, stateAlive).
		AddChildState(statePatrol, &patrolBehavior{g}, stateAlive).
		AddState(stateChase, chaseBehavior{g}).
		AddState(stateDead, deadBehavior{g}).
		WithInitialState(stateIdle).
		Build()
	if err != nil {
		return nil, err
	}

	g.machine = m
	g.hierarchy = h

	for _, s := range h.States() {
		stateName := s.Name()
		s.SubscribeEntered(func() { g.visits[stateName]++ })
	}

	// Build already entered the initial state.
	g.visits[m.CurrentState().Name()]++

	return g, nil
}

// Machine returns the guard's state machine.
func (g *Guard) Machine() *statemachine.Machine {
	return g.machine
}

// Hierarchy returns the guard's states.
func (g *Guard) Hierarchy() *statemachine.Hierarchy {
	return g.hierarchy
}

// Visits returns how often each state was entered.
func (g *Guard) Visits() map[string]int {
	out := make(map[string]int, len(g.visits))
	for k, v := range g.visits {
		out[k] = v
	}

	return out
}

// Tick advances the guard by dt seconds.
func (g *Guard) Tick(ctx context.Context, dt float64) error {
	return g.machine.TickContext(ctx, dt)
}

// Damage applies an external hit. The transition to dead happens on the next tick.
func (g *Guard) Damage(amount float64) {
	g.Health = math.Max(0, g.Health-amount)
}

// Dead reports whether the guard reached its final state.
func (g *Guard) Dead() bool {
	return g.machine.CurrentState() == g.state(stateDead)
}

func (g *Guard) state(name string) *statemachine.State {
	return g.hierarchy.MustLookup(name)
}

func (g *Guard) distance() float64 {
	return math.Abs(g.Player - g.Position)
}

// changeTo requests a transition from inside a hook. Failures are reported by
// the surrounding Tick.
func (g *Guard) changeTo(name string) {
	_ = g.machine.ChangeState(g.state(name))
}

// current reports whether s is still the current state, i.e. no check up the
// hierarchy already moved the guard elsewhere.
func (g *Guard) current(s *statemachine.State) bool {
	return g.machine.CurrentState() == s
}

// markActive records s as the active child of its parent.
func markActive(s *statemachine.State) {
	if p := s.Parent(); p != nil {
		err := p.SetCurrentChild(s)
		if err != nil {
			logger.Get().Error("Failed to mark active child", "state", s.Name(), "error", err)
		}
	}
}

// aliveBehavior is never current itself; its children delegate their danger
// checks to it.
type aliveBehavior struct{ g *Guard }

func (aliveBehavior) Execute(*statemachine.State, float64) {}

func (b aliveBehavior) CheckTransitions(*statemachine.State) {
	switch {
	case b.g.Health <= 0:
		b.g.changeTo(stateDead)
	case b.g.distance() <= b.g.cfg.SightRange:
		b.g.changeTo(stateChase)
	}
}

type idleBehavior struct{ g *Guard }

func (b idleBehavior) Execute(_ *statemachine.State, dt float64) {
	b.g.Health = math.Min(b.g.cfg.MaxHealth, b.g.Health+b.g.cfg.Regen*dt)
}

func (idleBehavior) OnEnter(s *statemachine.State) {
	markActive(s)
}

func (b idleBehavior) CheckTransitions(s *statemachine.State) {
	s.CheckParentTransitions()

	if b.g.current(s) && s.ExecutionDuration() >= b.g.cfg.BoredAfter {
		b.g.changeTo(statePatrol)
	}
}

type patrolBehavior struct{ g *Guard }

func (b *patrolBehavior) Execute(_ *statemachine.State, dt float64) {
	g := b.g

	g.Position += g.patrolDir * g.cfg.PatrolSpeed * dt
	if math.Abs(g.Position) >= g.cfg.PatrolRadius {
		g.Position = math.Copysign(g.cfg.PatrolRadius, g.Position)
		g.patrolDir = -g.patrolDir
	}
}

func (*patrolBehavior) OnEnter(s *statemachine.State) {
	markActive(s)
}

func (b *patrolBehavior) CheckTransitions(s *statemachine.State) {
	s.CheckParentTransitions()

	if b.g.current(s) && s.ExecutionDuration() >= b.g.cfg.PatrolFor {
		b.g.changeTo(stateIdle)
	}
}

type chaseBehavior struct{ g *Guard }

func (b chaseBehavior) Execute(_ *statemachine.State, dt float64) {
	g := b.g

	if d := g.distance(); d > g.cfg.AttackRange {
		step := math.Min(d-g.cfg.AttackRange, g.cfg.ChaseSpeed*dt)
		g.Position += math.Copysign(step, g.Player-g.Position)
	}

	if g.distance() <= g.cfg.AttackRange {
		g.Damage(g.cfg.PlayerDPS * dt)
	}
}

func (b chaseBehavior) CheckTransitions(*statemachine.State) {
	g := b.g

	switch {
	case g.Health <= 0:
		g.changeTo(stateDead)
	case g.distance() > g.cfg.LoseRange:
		// Back to whatever the guard was doing before it spotted the player.
		_ = g.machine.RevertToPreviousState()
	}
}

type deadBehavior struct{ g *Guard }

func (deadBehavior) Execute(*statemachine.State, float64) {}

func (b deadBehavior) OnEnter(*statemachine.State) {
	logger.Get().Info("Guard died", "machine", b.g.machine.Name(), "position", b.g.Position)
}
