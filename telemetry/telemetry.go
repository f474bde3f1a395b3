// Package telemetry implements core.Telemetry with OpenTelemetry,
// exporting spans to stdout by default so the engine has working tracing
// without requiring an external collector. Grounded on the teacher's
// telemetry/otel.go OTelProvider, trimmed from its OTLP/HTTP exporter pair
// down to the stdouttrace exporter already in go.mod, and rewritten around
// core.Telemetry/core.Span instead of gomind's own core package.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/gomind-labs/debate-consensus/core"
)

// Provider implements core.Telemetry. Metrics are recorded as span events
// on a synthetic "metrics" span rather than a separate metrics pipeline,
// since the engine's only numeric signals (consensus score, round count,
// cache hit rate) are naturally attached to the debate span they occur in.
type Provider struct {
	tracer   trace.Tracer
	tp       *sdktrace.TracerProvider
	mu       sync.Mutex
	shutdown bool
}

// New builds a Provider exporting spans via stdouttrace, tagged with
// serviceName. Pass "" for serviceName to default to "debate-engine".
func New(serviceName string) (*Provider, error) {
	if serviceName == "" {
		serviceName = "debate-engine"
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry.New: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return &Provider{tracer: tp.Tracer(serviceName), tp: tp}, nil
}

// StartSpan begins a span named name, child of whatever span ctx carries.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric emits a short-lived span carrying value and labels as
// attributes. core.Telemetry's RecordMetric takes no context, so there is
// no ambient span to attach to; a dedicated span keeps the reading
// queryable in the same trace backend rather than needing a second
// metrics pipeline.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	_, span := p.tracer.Start(context.Background(), "metric."+name)
	defer span.End()

	attrs := make([]attribute.KeyValue, 0, len(labels)+1)
	attrs = append(attrs, attribute.Float64("value", value))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	span.SetAttributes(attrs...)
}

// Shutdown flushes and stops the exporter; safe to call multiple times.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true
	return p.tp.Shutdown(ctx)
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}
