package main

import (
	"fmt"
	"math"

	"github.com/caarlos0/env/v11"
)

// ScriptedPlayer moves back and forth past the guard's post so that every
// state of the guard gets visited in a non-interactive run.
type ScriptedPlayer struct {
	// Center and Amplitude bound the player's path; Speed is in radians per second.
	Center    float64
	Amplitude float64
	Speed     float64

	elapsed float64
}

// DefaultPlayer starts far from the guard and swings in close to it.
func DefaultPlayer() *ScriptedPlayer {
	return &ScriptedPlayer{
		Center:    12,
		Amplitude: 16,
		Speed:     0.25,
	}
}

// Step advances the script and returns the new player position.
func (p *ScriptedPlayer) Step(dt float64) float64 {
	p.elapsed += dt

	return p.Position()
}

// Position returns the current player position.
func (p *ScriptedPlayer) Position() float64 {
	return p.Center + p.Amplitude*math.Cos(p.Speed*p.elapsed)
}

// loadGuardConfig reads GUARD_* variables; nil reads the process environment.
func loadGuardConfig(environment map[string]string) (GuardConfig, error) {
	opts := env.Options{Prefix: "GUARD_"}
	if environment != nil {
		opts.Environment = environment
	}

	cfg, err := env.ParseAsWithOptions[GuardConfig](opts)
	if err != nil {
		return GuardConfig{}, fmt.Errorf("failed to parse guard configuration: %w", err)
	}

	if cfg.LoseRange < cfg.SightRange {
		return GuardConfig{}, fmt.Errorf("%w: lose range %.2f is below sight range %.2f",
			errInvalidGuardConfig, cfg.LoseRange, cfg.SightRange)
	}

	return cfg, nil
}
