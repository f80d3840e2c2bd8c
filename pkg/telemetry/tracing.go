package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName is the tracer used when none is configured.
const DefaultTracerName = "reactor"

// maxExpressionAttr bounds the expression text recorded on spans.
const maxExpressionAttr = 256

// Tracer starts kernel spans on an OpenTelemetry tracer.
// The zero value and a nil *Tracer are valid and use the global provider.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer resolves name from the global tracer provider.
func NewTracer(name string) *Tracer {
	if name == "" {
		name = DefaultTracerName
	}
	return &Tracer{tracer: otel.Tracer(name)}
}

// FromProvider resolves a tracer from an explicit provider.
func FromProvider(tp trace.TracerProvider, name string) *Tracer {
	if name == "" {
		name = DefaultTracerName
	}
	return &Tracer{tracer: tp.Tracer(name)}
}

func (t *Tracer) resolve() trace.Tracer {
	if t == nil || t.tracer == nil {
		return otel.Tracer(DefaultTracerName)
	}
	return t.tracer
}

// StartEvaluation starts a span for one sandbox evaluation.
func (t *Tracer) StartEvaluation(ctx context.Context, mode, expression string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(expression) > maxExpressionAttr {
		expression = expression[:maxExpressionAttr]
	}
	return t.resolve().Start(ctx,
		fmt.Sprintf("reactor.evaluate.%s", mode),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("reactor.mode", mode),
			attribute.String("reactor.expression", expression),
		),
	)
}

// StartSweep starts a span for one sweeper pass.
func (t *Tracer) StartSweep(ctx context.Context, tracked int) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return t.resolve().Start(ctx, "reactor.sweep",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("reactor.tracked", tracked)),
	)
}

// End records err on span, sets its status and ends it.
func End(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
