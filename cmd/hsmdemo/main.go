// Command hsmdemo drives a guard NPC through its hierarchical state machine
// with a fixed-step game loop. The player either follows a script or is
// controlled interactively, and /metrics exposes the machine metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/amp-labs/amp-hsm/build"
	"github.com/amp-labs/amp-hsm/cli"
	"github.com/amp-labs/amp-hsm/logger"
	"github.com/amp-labs/amp-hsm/script"
	"github.com/amp-labs/amp-hsm/shutdown"
	"github.com/amp-labs/amp-hsm/statemachine"
	"github.com/amp-labs/amp-hsm/telemetry"
	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const appName = "hsmdemo"

var errInvalidGuardConfig = errors.New("invalid guard configuration")

var (
	machineName = flag.String("name", "guard", "Machine name used in logs, metrics and spans")
	steps       = flag.Int("steps", 600, "Number of ticks to run; 0 runs until interrupted or the guard dies")
	deltaTime   = flag.Float64("dt", 0.1, "Simulated seconds per tick")
	interval    = flag.Duration("interval", 100*time.Millisecond, "Wall-clock time between ticks; 0 runs as fast as possible")
	interactive = flag.Bool("interactive", false, "Control the player from a menu instead of the script")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	policyFile  = flag.String("policy", "", "YAML file with the same-state transition policy; HSM_* variables otherwise")
)

func main() {
	script.New(appName).Run(run)
}

func run(ctx context.Context) error {
	logger.Get(ctx).Info("Starting", "build", build.Get())

	telemetryConfig, err := telemetry.LoadConfigFromEnv(appName)
	if err != nil {
		return err
	}

	err = telemetry.Initialize(ctx, telemetryConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	shutdown.OnShutdown("telemetry", telemetry.Shutdown)

	policy, err := loadPolicy(*policyFile)
	if err != nil {
		return err
	}

	guardConfig, err := loadGuardConfig(nil)
	if err != nil {
		return err
	}

	guard, err := NewGuard(*machineName, guardConfig, policy, statemachine.WithLogger(statemachine.NewDefaultLogger()))
	if err != nil {
		return fmt.Errorf("failed to build guard: %w", err)
	}

	ctx = logger.With(ctx, "machine_id", guard.Machine().ID().String())

	guard.Machine().SubscribeStateChanged(func() {
		logger.Get(ctx).Info("Guard state changed", "active", activeLabel(guard.Machine().CurrentState()))
	})

	if *metricsAddr != "" {
		startMetricsServer(ctx, *metricsAddr)
	}

	if *interactive {
		err = runInteractive(ctx, guard, *deltaTime)
	} else {
		err = simulate(ctx, guard, DefaultPlayer(), *steps, *deltaTime, *interval)
	}

	reportErr := writeReport(os.Stdout, guard)

	return errors.Join(err, reportErr)
}

func loadPolicy(path string) (statemachine.Policy, error) {
	if path != "" {
		return statemachine.LoadPolicy(path)
	}

	return statemachine.PolicyFromEnv()
}

// simulate runs the fixed-step loop until steps ticks ran, the guard died or
// ctx was canceled. A zero interval ticks without waiting.
func simulate(
	ctx context.Context,
	guard *Guard,
	player *ScriptedPlayer,
	steps int,
	dt float64,
	interval time.Duration,
) error {
	var tick <-chan time.Time

	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick = ticker.C
	}

	for step := 0; steps <= 0 || step < steps; step++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		guard.Player = player.Step(dt)

		err := guard.Tick(ctx, dt)
		if err != nil {
			return fmt.Errorf("tick %d: %w", step, err)
		}

		if guard.Dead() {
			logger.Get(ctx).Info("Simulation finished", "steps", step+1)

			return nil
		}
	}

	return nil
}

// Menu entries of the interactive mode.
const (
	actionTick      = "Tick"
	actionTickTen   = "Tick x10"
	actionApproach  = "Player approaches"
	actionLeave     = "Player leaves"
	actionHit       = "Hit guard"
	actionForceIdle = "Force idle"
	actionStatus    = "Status"
	actionQuit      = "Quit"
)

func runInteractive(ctx context.Context, guard *Guard, dt float64) error {
	actions := []string{
		actionTick, actionTickTen, actionApproach, actionLeave,
		actionHit, actionForceIdle, actionStatus, actionQuit,
	}

	for ctx.Err() == nil {
		label := fmt.Sprintf("%s [health %.0f, player %.1f away]",
			activeLabel(guard.Machine().CurrentState()), guard.Health, guard.distance())

		_, action, err := cli.Select(label, actions...)
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}

			return err
		}

		if action == actionQuit {
			quit, err := cli.PromptConfirm("Stop the simulation")
			if err != nil && !errors.Is(err, promptui.ErrInterrupt) && !errors.Is(err, promptui.ErrEOF) {
				return err
			}

			if quit || err != nil {
				return nil
			}

			continue
		}

		err = applyAction(ctx, guard, action, dt)
		if err != nil {
			return err
		}
	}

	return ctx.Err()
}

func applyAction(ctx context.Context, guard *Guard, action string, dt float64) error {
	switch action {
	case actionTick:
		return guard.Tick(ctx, dt)
	case actionTickTen:
		for range 10 {
			err := guard.Tick(ctx, dt)
			if err != nil {
				return err
			}
		}
	case actionApproach:
		guard.Player = guard.Position + guard.cfg.AttackRange
	case actionLeave:
		guard.Player = guard.Position + 2*guard.cfg.LoseRange
	case actionHit:
		damage, err := cli.PromptPositiveFloat("Damage", guard.cfg.MaxHealth/4)
		if err != nil {
			return err
		}

		guard.Damage(damage)
	case actionForceIdle:
		// External trigger: the host changes state directly.
		return guard.Machine().ChangeStateContext(ctx, guard.state(stateIdle))
	case actionStatus:
		return writeReport(os.Stdout, guard)
	}

	return nil
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Get(ctx).Info("Serving metrics", "addr", addr)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get(ctx).Error("Metrics server failed", "error", err)
		}
	}()

	shutdown.OnShutdown("metrics server", srv.Shutdown)
}
