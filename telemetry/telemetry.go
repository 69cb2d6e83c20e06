// Package telemetry wires OpenTelemetry trace and log export for hosts that
// embed state machines. Machines always emit spans through the global tracer
// provider; until Initialize runs, that provider is a no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-hsm/build"
	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// ErrEndpointRequired is returned by Validate when telemetry is enabled without an endpoint.
var ErrEndpointRequired = errors.New("OTLP endpoint is required when telemetry is enabled")

var (
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
	loggerProvider *sdklog.LoggerProvider   //nolint:gochecknoglobals
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string        `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"`
	Environment    string        `env:"OTEL_ENVIRONMENT"                    envDefault:"local"`
	TraceEndpoint  string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogEndpoint    string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Enabled        bool          `env:"OTEL_ENABLED"                        envDefault:"false"`
	ExportLogs     bool          `env:"OTEL_EXPORT_LOGS"                    envDefault:"false"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT"          envDefault:"5s"`
}

// LoadConfigFromEnv loads OpenTelemetry configuration from environment
// variables. serviceName is used when OTEL_SERVICE_NAME is unset.
func LoadConfigFromEnv(serviceName string) (*Config, error) {
	return loadConfig(serviceName, nil)
}

func loadConfig(serviceName string, environment map[string]string) (*Config, error) {
	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}

	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse telemetry environment: %w", err)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}

	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = build.Get().Version
	}

	// A single collector usually takes both signals.
	if cfg.LogEndpoint == "" {
		cfg.LogEndpoint = cfg.TraceEndpoint
	}

	return &cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Enabled && c.TraceEndpoint == "" {
		return ErrEndpointRequired
	}

	return nil
}

// Initialize sets up OpenTelemetry tracing (and log export when ExportLogs is
// set) with the given configuration.
func Initialize(ctx context.Context, config *Config) error {
	if !config.Enabled {
		slog.Info("OpenTelemetry is disabled")

		return nil
	}

	err := config.Validate()
	if err != nil {
		return err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.TraceEndpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.ExportLogs {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(config.LogEndpoint),
			otlploghttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}

		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)

		global.SetLoggerProvider(loggerProvider)
	}

	slog.Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"trace_endpoint", config.TraceEndpoint,
		"export_logs", config.ExportLogs,
	)

	return nil
}

// Shutdown flushes and shuts down the providers created by Initialize.
func Shutdown(ctx context.Context) error {
	var errs []error

	if tracerProvider != nil {
		slog.Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, tracerProvider.Shutdown(ctx))
		tracerProvider = nil
	}

	if loggerProvider != nil {
		errs = append(errs, loggerProvider.Shutdown(ctx))
		loggerProvider = nil
	}

	return errors.Join(errs...)
}
