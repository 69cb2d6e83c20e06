// Package script runs a command-line program with configured logging,
// signal-driven cancellation, shutdown hooks and exit code handling.
package script

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/amp-labs/amp-hsm/logger"
	"github.com/amp-labs/amp-hsm/shutdown"
)

const defaultShutdownTimeout = 5 * time.Second

// Option is a function that configures a Script.
type Option func(script *Script)

// Exit returns an error that will cause the script to exit with the given code.
// Use this to exit with a specific code without logging an error.
func Exit(code int) error {
	return &exitError{
		code: code,
	}
}

// ExitWithError returns an error that will cause the script to exit with code 1
// and log the provided error.
func ExitWithError(err error) error {
	return &exitError{
		err:  err,
		code: 1,
	}
}

// exitError is an error type that carries an exit code for script termination.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string {
	msg := "exit " + strconv.FormatInt(int64(e.code), 10)

	if e.err != nil {
		return msg + ": " + e.err.Error()
	}

	return msg
}

func (e *exitError) Unwrap() error {
	return e.err
}

// LogLevel sets the minimum log level for the script's logger.
func LogLevel(lvl slog.Level) Option {
	return func(script *Script) {
		script.loggerOpts = append(script.loggerOpts, logger.WithMinLevel(lvl))
	}
}

// LogOutput sets the output writer for the script's logger.
func LogOutput(writer io.Writer) Option {
	return func(script *Script) {
		script.loggerOpts = append(script.loggerOpts, logger.WithOutput(writer))
	}
}

// EnableFlagParse controls whether flag.Parse() is called before running the script.
// Defaults to true.
func EnableFlagParse(enabled bool) Option {
	return func(script *Script) {
		script.flagParseEnable = enabled
	}
}

// ShutdownTimeout bounds how long the registered shutdown hooks may take.
func ShutdownTimeout(d time.Duration) Option {
	return func(script *Script) {
		script.shutdownTimeout = d
	}
}

// Script represents a runnable script with configured logging and signal handling.
type Script struct {
	name            string
	flagParseEnable bool
	shutdownTimeout time.Duration
	loggerOpts      []logger.Option
}

// New creates a new Script with the given name and options.
// By default, flag parsing is enabled.
func New(scriptName string, opts ...Option) *Script {
	script := &Script{
		name:            scriptName,
		flagParseEnable: true,
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(script)
	}

	return script
}

// Run executes the script with the provided function and exits the process.
// The context passed to f is canceled on SIGINT or SIGTERM. Once f returns,
// hooks registered with shutdown.OnShutdown run before the exit.
func (r *Script) Run(f func(ctx context.Context) error) {
	os.Exit(r.run(f))
}

// run executes the callback and returns the exit code.
func (r *Script) run(callback func(ctx context.Context) error) int {
	if r.flagParseEnable {
		flag.Parse()
	}

	_, err := logger.ConfigureLogging(context.Background(), r.name, r.loggerOpts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to configure logging:", err)

		return 1
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ctx = shutdown.SetupHandler(ctx)
	log := logger.Get(ctx)

	if callback == nil {
		log.Error("callback is nil")

		return 1
	}

	code := exitCode(log, callback(ctx))

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.shutdownTimeout)
	defer cancel()

	err = shutdown.Run(shutdownCtx)
	if err != nil {
		log.Error("error during shutdown", "error", err)

		if code == 0 {
			code = 1
		}
	}

	return code
}

func exitCode(log *slog.Logger, err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exitError

	if errors.As(err, &exitErr) {
		if exitErr.code != 0 {
			log.Error("error running script", "error", err)
		}

		return exitErr.code
	}

	if errors.Is(err, context.Canceled) {
		log.Warn("script interrupted")

		return 0
	}

	log.Error("error running script", "error", err)

	return 1
}
