package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("statekeeper")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartIngestSpan starts a span for one checkpoint ingestion,
	// including any wait for memory budget.
	StartIngestSpan(ctx context.Context, managerID, substream string) (context.Context, trace.Span)

	// StartFlushSpan starts a span for one flush pass.
	StartFlushSpan(ctx context.Context, managerID string) (context.Context, trace.Span)

	// StartConversionSpan starts a span for the one-time topology conversion.
	StartConversionSpan(ctx context.Context, managerID, topology string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before creating a manager:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartIngestSpan(ctx context.Context, managerID, substream string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "statekeeper.ingest",
		trace.WithAttributes(
			attribute.String("manager.id", managerID),
			attribute.String("substream", substream),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartFlushSpan(ctx context.Context, managerID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "statekeeper.flush",
		trace.WithAttributes(attribute.String("manager.id", managerID)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartConversionSpan(ctx context.Context, managerID, topology string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "statekeeper.topology",
		trace.WithAttributes(
			attribute.String("manager.id", managerID),
			attribute.String("topology", topology),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
