package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if cycle, ok := CycleFromContext(ctx); ok {
		fields = append(fields, zap.Int("cycle", cycle))
	}
	if feature := FeatureFromContext(ctx); feature != "" {
		fields = append(fields, zap.String("feature", feature))
	}
	if taskID := TaskIDFromContext(ctx); taskID != "" {
		fields = append(fields, zap.String("task.id", taskID))
	}

	return fields
}

type runCtxKey struct{}
type cycleCtxKey struct{}
type featureCtxKey struct{}
type taskCtxKey struct{}
type loggerCtxKey struct{}

// WithRun tags the context with a run identifier.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run identifier, or "".
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithCycle tags the context with the current cycle number.
func WithCycle(ctx context.Context, cycle int) context.Context {
	return context.WithValue(ctx, cycleCtxKey{}, cycle)
}

// CycleFromContext returns the cycle number if one is set.
func CycleFromContext(ctx context.Context) (int, bool) {
	c, ok := ctx.Value(cycleCtxKey{}).(int)
	return c, ok
}

// WithFeature tags the context with the feature being worked on.
func WithFeature(ctx context.Context, feature string) context.Context {
	return context.WithValue(ctx, featureCtxKey{}, feature)
}

// FeatureFromContext returns the feature name, or "".
func FeatureFromContext(ctx context.Context) string {
	s, _ := ctx.Value(featureCtxKey{}).(string)
	return s
}

// WithTaskID tags the context with the task being dispatched.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskCtxKey{}, taskID)
}

// TaskIDFromContext returns the task id, or "".
func TaskIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(taskCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
