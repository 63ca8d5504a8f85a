// Package telemetry wires OpenTelemetry tracing and metrics for owera runs.
//
// Telemetry is off by default. When enabled, spans and metrics are exported
// over OTLP (gRPC or HTTP) to a local collector. Provider failures never
// abort a run; the instance reports itself degraded and falls back to the
// global no-op providers.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	loop := orchestrator.New(orchestrator.Options{Tracer: tt.Tracer("owera"), Meter: tt.Meter("owera")})
//	tt.AssertSpanExists(t, "orchestrator.cycle")
package telemetry
