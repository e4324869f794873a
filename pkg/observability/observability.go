// Package observability wires the engine into OpenTelemetry tracing
// and metrics, adapted from the teacher's own observability provider:
// same Config/Provider/New shape and OTLP gRPC exporters, repurposed
// from HTTP RED metrics to the engine's transition/violation/rehash
// counters.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g. "localhost:4317" for gRPC
	SampleRate     float64
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns defaults suitable for a local engine run: OTLP
// export disabled unless the embedder opts in.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "thintesla",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       false,
	}
}

// Provider manages the trace/metric providers and the engine's own
// instruments.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	transitionsCounter metric.Int64Counter
	violationsCounter  metric.Int64Counter
	rehashCounter      metric.Int64Counter
	activeInstances    metric.Int64UpDownCounter
}

// New creates a Provider. A nil Config uses DefaultConfig; a disabled
// Config returns a Provider whose instruments are all no-ops (every
// Record*/Track* method nil-checks before touching an instrument).
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
			attribute.String("thintesla.component", "engine"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("thintesla.engine", trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter("thintesla.engine", metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initEngineMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init engine metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)

	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)

	otel.SetMeterProvider(p.meterProvider)
	return nil
}

// initEngineMetrics creates the three counters SPEC_FULL.md's
// observability section names: transitions, violations and
// teslahash's rehash events.
func (p *Provider) initEngineMetrics() error {
	var err error

	p.transitionsCounter, err = p.meter.Int64Counter("thintesla.transitions_total",
		metric.WithDescription("Total number of automaton transitions processed"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	p.violationsCounter, err = p.meter.Int64Counter("thintesla.violations_total",
		metric.WithDescription("Total number of reported assertion violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return err
	}

	p.rehashCounter, err = p.meter.Int64Counter("thintesla.rehash_total",
		metric.WithDescription("Total number of hash table grow operations"),
		metric.WithUnit("{rehash}"),
	)
	if err != nil {
		return err
	}

	p.activeInstances, err = p.meter.Int64UpDownCounter("thintesla.instances.active",
		metric.WithDescription("Number of currently active per-thread automaton instances"),
		metric.WithUnit("{instance}"),
	)
	return err
}

// Shutdown gracefully shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer, falling back to the global one
// if the provider was built disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer("thintesla.engine")
	}
	return p.tracer
}

// Meter returns the configured meter, falling back to the global one
// if the provider was built disabled.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter("thintesla.engine")
	}
	return p.meter
}

// StartSpan starts a span for an engine call.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, opts...)
}

// RecordTransition increments the transitions counter.
func (p *Provider) RecordTransition(ctx context.Context, attrs ...attribute.KeyValue) {
	if p.transitionsCounter != nil {
		p.transitionsCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordViolation increments the violations counter.
func (p *Provider) RecordViolation(ctx context.Context, automatonName, message string) {
	if p.violationsCounter != nil {
		p.violationsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("automaton", automatonName),
			attribute.String("reason", message),
		))
	}
}

// RecordRehash increments the rehash counter.
func (p *Provider) RecordRehash(ctx context.Context, automatonName string, newSize int) {
	if p.rehashCounter != nil {
		p.rehashCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("automaton", automatonName),
			attribute.Int("new_size", newSize),
		))
	}
}

// TrackCall spans and counts one ABI entry point call, returning a
// function to call on its return.
func (p *Provider) TrackCall(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if p.activeInstances != nil {
		p.activeInstances.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	ctx, span := p.StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
	p.RecordTransition(ctx, attrs...)

	return ctx, func() {
		if p.activeInstances != nil {
			p.activeInstances.Add(ctx, -1, metric.WithAttributes(attrs...))
		}
		span.End()
	}
}
