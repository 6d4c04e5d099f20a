// Package telemetry provides OpenTelemetry distributed tracing for semcache.
// It instruments the resolution pipeline with spans for each stage,
// supports W3C Trace Context propagation, and exports to OTLP or stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/semcache/semcache"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	// 1.0 = sample everything, 0.1 = sample 10%.
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "semcache",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes semcache-specific helpers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			tracer: noop.NewTracerProvider().Tracer(tracerName),
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return &Provider{
			tracer: noop.NewTracerProvider().Tracer(tracerName),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the semcache tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// --- Span helpers for resolution stages ---

// StartRequest creates a root span for an incoming HTTP request.
func (p *Provider) StartRequest(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.request",
		trace.WithAttributes(attribute.String("semcache.endpoint", endpoint)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartResolve creates a span covering one full query resolution.
func (p *Provider) StartResolve(ctx context.Context, queryHash string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.resolve",
		trace.WithAttributes(attribute.String("semcache.query.hash", queryHash)),
	)
}

// StartEmbedding creates a span for embedding generation.
func (p *Provider) StartEmbedding(ctx context.Context, model string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.embedding",
		trace.WithAttributes(attribute.String("semcache.embedding.model", model)),
	)
}

// StartIndexSearch creates a span for the vector-index similarity search.
func (p *Provider) StartIndexSearch(ctx context.Context, topK int, threshold float64) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.index.search",
		trace.WithAttributes(
			attribute.Int("semcache.index.top_k", topK),
			attribute.Float64("semcache.index.threshold", threshold),
		),
	)
}

// StartStore creates a span for storing a cache entry.
func (p *Provider) StartStore(ctx context.Context, queryHash string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.store",
		trace.WithAttributes(attribute.String("semcache.query.hash", queryHash)),
	)
}

// StartEviction creates a span for an eviction pass.
func (p *Provider) StartEviction(ctx context.Context, policy string, needBytes int64) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.eviction",
		trace.WithAttributes(
			attribute.String("semcache.eviction.policy", policy),
			attribute.Int64("semcache.eviction.need_bytes", needBytes),
		),
	)
}

// StartJournalFlush creates a span for draining the journal queue.
func (p *Provider) StartJournalFlush(ctx context.Context, depth int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "semcache.journal.flush",
		trace.WithAttributes(attribute.Int("semcache.journal.depth", depth)),
	)
}

// RecordDecision adds decision attributes to a resolve span.
func RecordDecision(span trace.Span, opType, strategy string, similarity float64, tokensSaved int, latency time.Duration) {
	span.SetAttributes(
		attribute.String("semcache.decision.type", opType),
		attribute.String("semcache.decision.strategy", strategy),
		attribute.Int("semcache.decision.tokens_saved", tokensSaved),
		attribute.Int64("semcache.decision.latency_us", latency.Microseconds()),
	)
	if similarity > 0 {
		span.SetAttributes(attribute.Float64("semcache.decision.similarity", similarity))
	}
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
