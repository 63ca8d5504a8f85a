package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fyrsmithlabs/owera/internal/llm"

type instrumented struct {
	next     Client
	provider string
	tracer   trace.Tracer
}

// Instrument wraps c with an llm.Generate span and Prometheus metrics.
// A nil tracer uses the global provider.
func Instrument(c Client, provider string, tracer trace.Tracer) Client {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &instrumented{next: c, provider: provider, tracer: tracer}
}

func (i *instrumented) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, span := i.tracer.Start(ctx, "llm.Generate", trace.WithAttributes(
		attribute.String("llm.provider", i.provider),
		attribute.Int("llm.prompt_bytes", len(prompt)),
	))
	defer span.End()

	start := time.Now()
	out, err := i.next.Generate(ctx, prompt, opts)

	CallDuration.WithLabelValues(i.provider, outcome(err)).Observe(time.Since(start).Seconds())
	PromptBytes.WithLabelValues(i.provider).Observe(float64(len(prompt)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_bytes", len(out)))
	return out, nil
}
