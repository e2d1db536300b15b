package ai

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "cooperative-ai/backend/internal/ai"

type instrumentedGateway struct {
	next     Gateway
	provider string
	tracer   trace.Tracer
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
}

// Instrument wraps next with a span per call and completion metrics taken
// from the global otel providers
func Instrument(next Gateway, provider string) Gateway {
	meter := otel.Meter(instrumentationName)

	// Instrument creation only fails on invalid names
	calls, _ := meter.Int64Counter("ai_completions_total",
		metric.WithDescription("AI completion calls by provider and outcome"))
	latency, _ := meter.Float64Histogram("ai_completion_duration_seconds",
		metric.WithDescription("AI completion latency"),
		metric.WithUnit("s"))

	return &instrumentedGateway{
		next:     next,
		provider: provider,
		tracer:   otel.Tracer(instrumentationName),
		calls:    calls,
		latency:  latency,
	}
}

func (g *instrumentedGateway) Complete(ctx context.Context, transcript []string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "ai.Complete", trace.WithAttributes(
		attribute.String("ai.provider", g.provider),
		attribute.Int("ai.transcript_len", len(transcript)),
	))
	defer span.End()

	start := time.Now()
	reply, err := g.next.Complete(ctx, transcript)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("provider", g.provider),
		attribute.String("outcome", outcome),
	)
	g.calls.Add(ctx, 1, attrs)
	g.latency.Record(ctx, time.Since(start).Seconds(), attrs)

	return reply, err
}
