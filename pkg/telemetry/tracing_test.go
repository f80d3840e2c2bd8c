package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracerNilUsesGlobal(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.StartEvaluation(context.TODO(), "return", "a + b")
	if ctx == nil || span == nil {
		t.Fatal("expected a context and span from the global provider")
	}
	End(span, nil)
}

func TestTracerFromProvider(t *testing.T) {
	tr := FromProvider(noop.NewTracerProvider(), "")

	ctx, span := tr.StartSweep(context.Background(), 3)
	if !trace.SpanFromContext(ctx).SpanContext().Equal(span.SpanContext()) {
		t.Error("span should be stored on the returned context")
	}
	End(span, errors.New("boom"))
}

func TestStartEvaluationTruncatesExpression(t *testing.T) {
	tr := NewTracer("test")
	long := strings.Repeat("x", maxExpressionAttr*2)
	_, span := tr.StartEvaluation(context.Background(), "run", long)
	End(span, nil)
}
