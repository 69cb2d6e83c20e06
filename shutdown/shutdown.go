// Package shutdown turns SIGINT/SIGTERM into context cancellation and runs
// named cleanup hooks once the host loop has stopped.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []hook         //nolint:gochecknoglobals
	signals chan os.Signal //nolint:gochecknoglobals
)

// OnShutdown registers a cleanup function. Hooks run in reverse order of
// registration, so resources are released in the opposite order they were
// acquired.
func OnShutdown(name string, fn func(ctx context.Context) error) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, hook{name: name, fn: fn})
}

// Trigger requests shutdown as if a signal was received. It does nothing
// before SetupHandler or after shutdown already started.
func Trigger() {
	mut.Lock()
	ch := signals
	mut.Unlock()

	if ch == nil {
		return
	}

	select {
	case ch <- os.Interrupt:
	default:
	}
}

// SetupHandler returns a context that is canceled when SIGINT or SIGTERM is
// received, Trigger is called, or parent is done.
func SetupHandler(parent context.Context) context.Context {
	ch := make(chan os.Signal, 1)

	mut.Lock()
	signals = ch
	mut.Unlock()

	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer cancel()
		defer signal.Stop(ch)

		select {
		case sig := <-ch:
			slog.Warn("Received " + sig.String() + ", shutting down...")
		case <-ctx.Done():
		}

		mut.Lock()
		if signals == ch {
			signals = nil
		}
		mut.Unlock()
	}()

	return ctx
}

// Run executes every registered hook, last registered first, and clears the
// list. All hooks run even when some fail; their errors are joined.
func Run(ctx context.Context) error {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	var errs []error

	for i := len(pending) - 1; i >= 0; i-- {
		h := pending[i]

		err := h.fn(ctx)
		if err != nil {
			slog.Error("Shutdown hook failed", "hook", h.name, "error", err)

			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}
