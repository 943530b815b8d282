package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider wires a tracer for the dispatch core. Production deployments
// swap the stdout exporter for an OTLP one at construction time via
// WithSpanExporter; the demo CLI uses the default so `run --demo` has
// visible spans without standing up a collector.
type Provider struct {
	tracer       trace.Tracer
	traceProvider *sdktrace.TracerProvider
	instruments  *Instruments
	shutdownOnce sync.Once
}

// Option configures a Provider at construction time.
type Option func(*providerConfig)

type providerConfig struct {
	exporter sdktrace.SpanExporter
}

// WithSpanExporter overrides the default stdout span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(c *providerConfig) { c.exporter = exp }
}

// NewProvider builds a Provider for serviceName, registering it as the
// process-wide tracer provider via otel.SetTracerProvider. No meter
// provider is registered.
func NewProvider(serviceName string, opts ...Option) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry: service name cannot be empty")
	}

	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.exporter == nil {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: create stdout exporter: %w", err)
		}
		cfg.exporter = exp
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(cfg.exporter),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tracer:        tp.Tracer(serviceName),
		traceProvider: tp,
		instruments:   NewInstruments(serviceName),
	}, nil
}

// Instruments returns the provider's metric instrument cache.
func (p *Provider) Instruments() *Instruments { return p.instruments }

// StartSpan starts a span under the provider's tracer.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// Shutdown flushes and tears down the underlying trace provider. Safe to
// call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		shutdownCtx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
		}
		err = p.traceProvider.Shutdown(shutdownCtx)
	})
	return err
}

// AddSpanEvent attaches a named event with attributes to the span active
// in ctx, if any. It is a no-op when ctx carries no span, so callers don't
// need to guard every call site with a span-presence check.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
